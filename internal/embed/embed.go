// Package embed turns normalized school texts into vectors for similarity
// matching.
package embed

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
)

// Embedder produces one vector per input text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Options selects and configures an Embedder.
type Options struct {
	Provider   string // "ollama" or "ngram"
	OllamaURL  string
	Model      string
	Dimensions int
	BatchSize  int
	MaxRetries int
}

// New builds the Embedder named by opts.Provider.
func New(opts Options) (Embedder, error) {
	switch opts.Provider {
	case "", "ngram":
		return NewNgram(opts.Dimensions), nil
	case "ollama":
		if opts.OllamaURL == "" {
			return nil, eris.New("embed: ollama url is required")
		}
		return NewOllama(opts.OllamaURL, opts.Model,
			WithBatchSize(opts.BatchSize),
			WithMaxRetries(opts.MaxRetries),
		), nil
	default:
		return nil, eris.Errorf("embed: unknown provider %q", opts.Provider)
	}
}

// Cosine returns the cosine similarity of a and b. Mismatched lengths and
// zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Matrix returns the cosine similarity of every row in a against every row
// in b: out[i][j] = Cosine(a[i], b[j]).
func Matrix(a, b [][]float32) [][]float64 {
	out := make([][]float64, len(a))
	for i := range a {
		out[i] = make([]float64, len(b))
		for j := range b {
			out[i][j] = Cosine(a[i], b[j])
		}
	}
	return out
}
