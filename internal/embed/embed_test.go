package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 1}, []float32{-1, -1}), 1e-9)
}

func TestCosine_Degenerate(t *testing.T) {
	assert.Equal(t, 0.0, Cosine(nil, nil))
	assert.Equal(t, 0.0, Cosine([]float32{1, 2}, []float32{1}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestMatrix(t *testing.T) {
	m := Matrix([][]float32{{1, 0}, {0, 1}}, [][]float32{{1, 0}, {1, 1}, {0, 2}})
	require.Len(t, m, 2)
	require.Len(t, m[0], 3)
	assert.InDelta(t, 1.0, m[0][0], 1e-9)
	assert.InDelta(t, 0.7071, m[0][1], 1e-4)
	assert.InDelta(t, 1.0, m[1][2], 1e-9)
}

func TestNew(t *testing.T) {
	e, err := New(Options{Provider: "ngram", Dimensions: 64})
	require.NoError(t, err)
	assert.IsType(t, &Ngram{}, e)

	e, err = New(Options{Provider: "ollama", OllamaURL: "http://localhost:11434", Model: "m"})
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, e)

	_, err = New(Options{Provider: "ollama"})
	assert.Error(t, err)

	_, err = New(Options{Provider: "word2vec"})
	assert.Error(t, err)
}

func TestNgram_Deterministic(t *testing.T) {
	e := NewNgram(128)
	a, err := e.Embed(context.Background(), []string{"сош №5 ул московская 12"})
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), []string{"сош №5 ул московская 12"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a[0], 128)
}

func TestNgram_SimilarTextsScoreHigher(t *testing.T) {
	e := NewNgram(0)
	vecs, err := e.Embed(context.Background(), []string{
		"маоу сош №5 ул московская 12",
		"сош №5 московская 12",
		"гимназия №3 ул чапаева 40",
	})
	require.NoError(t, err)

	same := Cosine(vecs[0], vecs[1])
	other := Cosine(vecs[0], vecs[2])
	assert.Greater(t, same, other)
	assert.Greater(t, same, 0.5)
}

func TestNgram_EmptyText(t *testing.T) {
	vecs, err := NewNgram(16).Embed(context.Background(), []string{""})
	require.NoError(t, err)
	assert.Equal(t, 0.0, Cosine(vecs[0], vecs[0]))
}

func TestTrigrams(t *testing.T) {
	assert.Equal(t, []string{"^ab", "ab$", "^c$"}, trigrams("ab c"))
	assert.Empty(t, trigrams("   "))
}
