package reconcile

import (
	"context"

	"github.com/rotisserie/eris"
)

// stubEmbedder returns fixed vectors keyed by normalized text.
type stubEmbedder map[string][]float32

func (s stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := s[t]
		if !ok {
			return nil, eris.Errorf("stub: no vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

func ptr[T any](v T) *T { return &v }
