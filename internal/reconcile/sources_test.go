package reconcile

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/school-research-cli/internal/model"
)

func TestMergeSources(t *testing.T) {
	e := stubEmbedder{
		"школа 1 ул 1": {1, 0, 0},
		"школа 2 ул 2": {0.9, 0.1, 0},
		"школа 3 ул 3": {0, 0, 1},
		"ш1":           {1, 0, 0},
		"ш9":           {0, 1, 0},
	}
	twogis := []model.SourceSchool{
		{Name: "Школа 1", Address: "ул. 1", URL: "gis1", FullName: "МОУ Школа 1", CadastralNumber: "64:48:1"},
		{Name: "Школа 2", Address: "ул. 2", URL: "gis2"},
		{Name: "Школа 3", Address: "ул. 3", URL: "gis3"},
	}
	yandex := []model.SourceSchool{
		{Name: "Ш1", URL: "ym1", YandexID: "y1", ReviewsCount: ptr(5)},
		{Name: "Ш9", URL: "ym9", YandexID: "y9", Address: "ул. 9"},
	}

	out, stats, err := MergeSources(context.Background(), e, twogis, yandex, DefaultSourceThreshold)
	require.NoError(t, err)
	require.Len(t, out, 4)

	assert.Equal(t, SourceStats{Matched: 2, TwoGISOnly: 1, YandexOnly: 1}, stats)

	first := out[0]
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, "Школа 1", first.Name)
	assert.Equal(t, "МОУ Школа 1", first.FullName)
	assert.Equal(t, "gis1", first.TwoGISURL)
	assert.Equal(t, "ym1", first.YandexURL)
	assert.Equal(t, "y1", first.YandexID)
	assert.Equal(t, "64:48:1", first.CadastralNumber)
	require.NotNil(t, first.MatchScore)
	assert.InDelta(t, 1.0, *first.MatchScore, 1e-6)
	require.NotNil(t, first.ReviewsCount)
	assert.Equal(t, 5, *first.ReviewsCount)
	assert.Equal(t, []model.Source{model.SourceTwoGIS, model.SourceYandex}, first.Sources)

	// The same Yandex record may back several 2GIS rows.
	assert.Equal(t, "ym1", out[1].YandexURL)

	third := out[2]
	assert.Equal(t, 3, third.ID)
	assert.Equal(t, "gis3", third.TwoGISURL)
	assert.Empty(t, third.YandexURL)
	require.NotNil(t, third.MatchScore)
	assert.Zero(t, *third.MatchScore)
	assert.Equal(t, []model.Source{model.SourceTwoGIS}, third.Sources)

	last := out[3]
	assert.Equal(t, 4, last.ID)
	assert.Equal(t, "Ш9", last.Name)
	assert.Equal(t, "ул. 9", last.Address)
	assert.Equal(t, "ym9", last.YandexURL)
	assert.Equal(t, "y9", last.YandexID)
	assert.Empty(t, last.TwoGISURL)
	assert.Equal(t, []model.Source{model.SourceYandex}, last.Sources)
	assert.Nil(t, last.MatchScore)
}

func TestMergeSources_UnmatchedTwoGISWritesZeroScore(t *testing.T) {
	e := stubEmbedder{"школа 1": {1, 0}, "лицей": {0, 1}}
	out, _, err := MergeSources(context.Background(), e,
		[]model.SourceSchool{{Name: "Школа 1", URL: "gis1"}},
		[]model.SourceSchool{{Name: "Лицей", URL: "ym1"}}, DefaultSourceThreshold)
	require.NoError(t, err)
	require.Len(t, out, 2)

	gis, err := json.Marshal(out[0])
	require.NoError(t, err)
	assert.Contains(t, string(gis), `"match_score":0`)
	assert.Contains(t, string(gis), `"ym_url":""`)

	ym, err := json.Marshal(out[1])
	require.NoError(t, err)
	assert.NotContains(t, string(ym), "match_score")
}

func TestMergeSources_ThresholdIsExclusive(t *testing.T) {
	e := stubEmbedder{"a": {1, 0}, "b": {1, 0}}
	out, stats, err := MergeSources(context.Background(), e,
		[]model.SourceSchool{{Name: "a"}}, []model.SourceSchool{{Name: "b"}}, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TwoGISOnly)
	assert.Equal(t, 1, stats.YandexOnly)
	assert.Len(t, out, 2)
}

func TestMergeSources_EmptyYandex(t *testing.T) {
	e := stubEmbedder{"a": {1, 0}, "b": {0, 1}}
	out, stats, err := MergeSources(context.Background(), e,
		[]model.SourceSchool{{Name: "a"}, {Name: "b"}}, nil, DefaultSourceThreshold)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 2, stats.TwoGISOnly)
}

func TestMergeSources_EmptyTwoGIS(t *testing.T) {
	e := stubEmbedder{"a": {1, 0}}
	out, stats, err := MergeSources(context.Background(), e,
		nil, []model.SourceSchool{{Name: "a", URL: "ym"}}, DefaultSourceThreshold)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].ID)
	assert.Equal(t, "ym", out[0].YandexURL)
	assert.Equal(t, 1, stats.YandexOnly)
}

func TestMergeSources_EmbedError(t *testing.T) {
	_, _, err := MergeSources(context.Background(), stubEmbedder{},
		[]model.SourceSchool{{Name: "unknown"}}, nil, DefaultSourceThreshold)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed 2gis records")
}

func TestArgmax_TiesPickLowestIndex(t *testing.T) {
	idx, score := argmax([]float32{1, 0}, [][]float32{{0, 1}, {2, 0}, {1, 0}})
	assert.Equal(t, 1, idx)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestArgmax_NoCandidates(t *testing.T) {
	idx, _ := argmax([]float32{1}, nil)
	assert.Equal(t, -1, idx)
}
