package reviews

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/school-research-cli/internal/model"
)

func review(id, school, date, text string) model.Review {
	return model.Review{ReviewID: model.FlexID(id), SchoolID: model.FlexID(school), Date: date, Text: text}
}

func TestLoad_EnvelopeAndList(t *testing.T) {
	dir := t.TempDir()

	env := filepath.Join(dir, "env.json")
	require.NoError(t, os.WriteFile(env, []byte(`{"resource":"2gis","topic":"t","parse_date":"2025-01-01",
		"reviews":[{"review_id":1,"school_id":"3","date":"2024-01-02","text":"ok"}]}`), 0o644))
	f, err := Load(env)
	require.NoError(t, err)
	assert.Equal(t, "2gis", f.Resource)
	require.Len(t, f.Reviews, 1)
	assert.Equal(t, model.FlexID("1"), f.Reviews[0].ReviewID)

	list := filepath.Join(dir, "list.json")
	require.NoError(t, os.WriteFile(list, []byte(`{"review_id":1,"school_id":2,"text":"a"}
{"review_id":2,"school_id":2,"text":"b"}`), 0o644))
	f, err = Load(list)
	require.NoError(t, err)
	assert.Len(t, f.Reviews, 2)
	assert.Empty(t, f.Resource)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.json")
	require.NoError(t, Save(path, NewFile("yandex", "run-1", nil)))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "yandex", f.Resource)
	assert.Equal(t, "run-1", f.RunID)
	assert.NotEmpty(t, f.ParseDate)
	assert.Empty(t, f.Reviews)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.json"))
	assert.Error(t, err)
}

func TestIsEmptyAndDropEmpty(t *testing.T) {
	assert.True(t, IsEmpty(review("1", "1", " ", "")))
	assert.False(t, IsEmpty(review("1", "1", "2024-01-01", "")))
	assert.False(t, IsEmpty(review("1", "1", "", "текст")))

	out := DropEmpty([]model.Review{review("1", "1", "", ""), review("2", "1", "", "x")})
	require.Len(t, out, 1)
	assert.Equal(t, model.FlexID("2"), out[0].ReviewID)
}

func TestFilter(t *testing.T) {
	allowed, err := ParseIDList("1-3, 7")
	require.NoError(t, err)

	kept, removed := Filter([]model.Review{
		review("1", "1", "", "a"),
		review("2", "5", "", "b"),
		review("3", "7", "", "c"),
	}, allowed)

	assert.Equal(t, 1, removed)
	require.Len(t, kept, 2)
	assert.Equal(t, model.FlexID("7"), kept[1].SchoolID)
}

func TestParseIDList(t *testing.T) {
	ids, err := ParseIDList("1-3,110,,abc")
	require.NoError(t, err)
	assert.Len(t, ids, 5)
	assert.True(t, ids["2"])
	assert.True(t, ids["abc"])

	_, err = ParseIDList("5-1")
	assert.Error(t, err)
	_, err = ParseIDList("a-3")
	assert.Error(t, err)
}

func TestSplitBySchoolAndWriteSplit(t *testing.T) {
	in := []model.Review{
		review("1", "10", "", "a"),
		review("2", "2", "", "b"),
		review("3", "10", "", "c"),
	}

	ids, groups := SplitBySchool(in)
	assert.Equal(t, []model.FlexID{"2", "10"}, ids)
	assert.Len(t, groups["10"], 2)
	assert.Equal(t, model.FlexID("3"), groups["10"][1].ReviewID)

	dir := t.TempDir()
	paths, err := WriteSplit(dir, in)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "school_review_separately_2.json"),
		filepath.Join(dir, "school_review_separately_10.json"),
	}, paths)

	f, err := Load(paths[1])
	require.NoError(t, err)
	assert.Len(t, f.Reviews, 2)
}

func TestMergeAnalysis(t *testing.T) {
	in := []model.Review{review("1", "1", "", "a"), review("2", "1", "", "b")}
	in[1].Overall = "neg"

	out := MergeAnalysis(in, []model.Analysis{
		{ReviewID: "1", Topics: map[string]string{"еда": "neg"}, Overall: "neg", Tonality: "Отрицательный"},
		{Topics: map[string]string{"еда": "pos"}},
	})

	require.Len(t, out, 2)
	assert.Equal(t, map[string]string{"еда": "neg"}, out[0].Topics)
	assert.Equal(t, "Отрицательный", out[0].Tonality)
	assert.Nil(t, out[1].Topics)
	assert.Equal(t, "neg", out[1].Overall)
	assert.Nil(t, in[0].Topics)
}

func TestMergeDir(t *testing.T) {
	root := t.TempDir()
	revDir := filepath.Join(root, "rev")
	anaDir := filepath.Join(root, "ana")
	outDir := filepath.Join(root, "out")
	require.NoError(t, os.MkdirAll(revDir, 0o755))
	require.NoError(t, os.MkdirAll(anaDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(revDir, "school_reviews_separately_4.json"),
		[]byte(`[{"review_id":1,"school_id":4,"text":"Учителя супер"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(revDir, "school_reviews_separately_5.json"),
		[]byte(`[]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(anaDir, "school_reviews_separately_4_analyz.json"),
		[]byte(`{"review_id":"1","topics":{"учителя":"pos"},"overall":"pos"}`), 0o644))

	n, err := MergeDir(revDir, anaDir, outDir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f, err := Load(filepath.Join(outDir, "school_review_separately_4_final.json"))
	require.NoError(t, err)
	require.Len(t, f.Reviews, 1)
	assert.Equal(t, "pos", f.Reviews[0].Topics["учителя"])
}

func TestMergeDir_MissingDir(t *testing.T) {
	_, err := MergeDir(filepath.Join(t.TempDir(), "x"), t.TempDir(), t.TempDir())
	assert.Error(t, err)
}

func TestDedupe(t *testing.T) {
	out := Dedupe([]model.Review{
		review("1", "1", "", "Отличная школа"),
		review("2", "1", "", " Отличная школа "),
		review("3", "2", "", "Отличная школа"),
		review("4", "1", "2024-01-01", ""),
		review("5", "1", "2024-01-02", ""),
	})
	ids := make([]model.FlexID, len(out))
	for i, r := range out {
		ids[i] = r.ReviewID
	}
	assert.Equal(t, []model.FlexID{"1", "3", "4", "5"}, ids)
}

func TestCheckCounts(t *testing.T) {
	got := CheckCounts(map[model.FlexID]int{"1": 2, "2": 1, "10": 0}, []model.Review{
		review("a", "1", "", "x"),
		review("b", "1", "", "y"),
		review("c", "3", "", "z"),
	})
	assert.Equal(t, []CountMismatch{
		{SchoolID: "2", Expected: 1, Scraped: 0},
		{SchoolID: "3", Expected: 0, Scraped: 1},
	}, got)
}
