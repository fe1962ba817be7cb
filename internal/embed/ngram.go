package embed

import (
	"context"
	"hash/fnv"
	"math"
)

const defaultDimensions = 384

// Ngram is a deterministic, offline embedder: character trigrams of each
// word (with boundary markers) are hashed into a fixed-size vector which is
// then L2-normalized. Texts sharing many trigrams get high cosine scores.
type Ngram struct {
	dims int
}

// NewNgram creates an Ngram embedder with the given dimensions.
func NewNgram(dims int) *Ngram {
	if dims <= 0 {
		dims = defaultDimensions
	}
	return &Ngram{dims: dims}
}

// Embed implements Embedder.
func (n *Ngram) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = n.vector(t)
	}
	return out, nil
}

func (n *Ngram) vector(text string) []float32 {
	v := make([]float32, n.dims)
	for _, gram := range trigrams(text) {
		h := fnv.New32a()
		h.Write([]byte(gram))
		sum := h.Sum32()
		idx := int(sum % uint32(n.dims))
		// The top bit picks the sign so collisions partly cancel.
		if sum&(1<<31) != 0 {
			v[idx]--
		} else {
			v[idx]++
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func trigrams(text string) []string {
	var grams []string
	word := make([]rune, 0, 32)
	flush := func() {
		if len(word) == 0 {
			return
		}
		padded := append([]rune{'^'}, append(word, '$')...)
		for i := 0; i+3 <= len(padded); i++ {
			grams = append(grams, string(padded[i:i+3]))
		}
		word = word[:0]
	}
	for _, r := range text {
		if r == ' ' {
			flush()
			continue
		}
		word = append(word, r)
	}
	flush()
	return grams
}
