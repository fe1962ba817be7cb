//go:build !integration

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/school-research-cli/internal/checkpoint"
	"github.com/sells-group/school-research-cli/internal/fetcher"
	"github.com/sells-group/school-research-cli/internal/model"
	"github.com/sells-group/school-research-cli/internal/scrape"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadList_EnvelopeAndBare(t *testing.T) {
	env := writeFile(t, "env.json", `{"source":"2GIS","data":[{"name":"Школа №1","adres":"ул. Мира, 1"}]}`)
	got, err := readList[model.SourceSchool](env)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ул. Мира, 1", got[0].Address)

	bare := writeFile(t, "bare.json", `[{"name":"A"},{"name":"B"}]`)
	got, err = readList[model.SourceSchool](bare)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestReadList_Missing(t *testing.T) {
	_, err := readList[model.SourceSchool](filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)

	got, err := readListIfExists[model.SourceSchool](filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolvePort(t *testing.T) {
	assert.Equal(t, 9090, resolvePort(9090, 8000))
	assert.Equal(t, 8000, resolvePort(0, 8000))
}

func TestCollector_InOrder(t *testing.T) {
	c := newCollector[string]()
	c.put("b", []string{"b1"})
	c.put("a", []string{"a1", "a2"})
	assert.Equal(t, []string{"a1", "a2", "b1"}, c.inOrder([]string{"a", "b", "missing"}))
}

func TestMergeListItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.json")
	require.NoError(t, fetcher.WriteJSON(path, scrape.NewTwoGISListing([]scrape.ListItem{
		{ID: "1", Name: "Школа №1", URL: "https://2gis.ru/firm/1"},
	}, "")))

	got, err := mergeListItems(path, []scrape.ListItem{
		{Name: "Школа №1", URL: "https://2gis.ru/firm/1"},
		{Name: "Школа №2", URL: "https://2gis.ru/firm/2"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "2", got[1].ID)
	assert.Equal(t, "https://2gis.ru/firm/2", got[1].URL)
}

func TestMergeSourceSchools_FreshReplaces(t *testing.T) {
	prev := []model.SourceSchool{{Name: "old", URL: "u1"}, {Name: "keep", URL: "u2"}}
	fresh := []model.SourceSchool{{Name: "new", URL: "u1"}}
	got := mergeSourceSchools(prev, fresh)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].Name)
	assert.Equal(t, "keep", got[1].Name)
}

func TestAssignReviewIDs(t *testing.T) {
	list := []model.Review{{ReviewID: "7"}, {}, {ReviewID: "x"}, {}}
	assignReviewIDs(list)
	assert.Equal(t, model.FlexID("7"), list[0].ReviewID)
	assert.Equal(t, model.FlexID("8"), list[1].ReviewID)
	assert.Equal(t, model.FlexID("x"), list[2].ReviewID)
	assert.Equal(t, model.FlexID("9"), list[3].ReviewID)
}

func TestAddressQuery(t *testing.T) {
	assert.Equal(t, "город Саратов, ул. Мира, 1", addressQuery("Саратов", "ул. Мира, 1"))
	assert.Equal(t, "г. Саратов, ул. Мира, 1", addressQuery("Саратов", "г. Саратов, ул. Мира, 1"))
	assert.Equal(t, "", addressQuery("Саратов", "  "))
}

func TestRecordAddressAndCoords(t *testing.T) {
	rec := map[string]any{"school_adres": "ул. Мира, 1", "coords": "(51.5, 46.0)"}
	assert.Equal(t, "ул. Мира, 1", recordAddress(rec))
	lat, lon, ok := recordCoords(rec)
	require.True(t, ok)
	assert.Equal(t, 51.5, lat)
	assert.Equal(t, 46.0, lon)

	lat, lon, ok = recordCoords(map[string]any{"lat": 51.1, "lon": 45.9})
	require.True(t, ok)
	assert.Equal(t, 51.1, lat)
	assert.Equal(t, 45.9, lon)

	_, _, ok = recordCoords(map[string]any{"latitude": "51"})
	assert.False(t, ok)
}

func TestMetricsTable(t *testing.T) {
	share := 0.5
	year := 2024
	header, rows := metricsTable([]model.SchoolMetrics{
		{SchoolID: "1", ReviewsCount: 2, Topics: map[string]model.TopicMetric{
			"еда": {Count: 2, PosCount: 1, NegCount: 1, NegShare: &share, Sentiment: new(float64)},
		}},
		{SchoolID: "1", Year: &year, ReviewsCount: 1, Topics: map[string]model.TopicMetric{"еда": {}}},
	})
	assert.Equal(t, []string{"school_id", "year", "reviews_count", "еда_cnt", "еда_pos_cnt", "еда_neg_cnt", "еда_neg_share", "еда_sentiment"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "", "2", "2", "1", "1", "0.5", "0"}, rows[0])
	assert.Equal(t, []string{"1", "2024", "1", "0", "0", "0", "", ""}, rows[1])
}

func TestFormatTopics(t *testing.T) {
	assert.Equal(t, "еда: neg; учителя: pos", formatTopics(map[string]string{"учителя": "pos", "еда": "neg"}))
	assert.Empty(t, formatTopics(nil))
}

func TestReviewTable(t *testing.T) {
	rating := 4
	header, rows := reviewTable([]model.Review{{ReviewID: "1", SchoolID: "2", Date: "2024-01-01", Text: "ok", Rating: &rating}})
	assert.Len(t, header, 11)
	require.Len(t, rows, 1)
	assert.Equal(t, "4", rows[0][4])
	assert.Equal(t, "", rows[0][5])
}

func TestFormatRunsList(t *testing.T) {
	start := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	runs := []checkpoint.Run{
		{ID: "abc12345-6789", Stage: "2gis-list", Status: checkpoint.RunComplete, Items: 12, StartedAt: start, FinishedAt: &end},
		{ID: "def", Stage: "uchi", Status: checkpoint.RunRunning, StartedAt: start},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()
	assert.Contains(t, out, "STAGE")
	assert.Contains(t, out, "abc12345")
	assert.NotContains(t, out, "abc12345-6789")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "2025-06-15 10:30")
}

func TestReadNearList_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "near.csv")
	data := "Район,Название школы,Улица,Дома\n" +
		"Кировский,МОУ «СОШ № 1»,ул. Чапаева,\"1, 3\"\n" +
		"Кировский,МОУ «СОШ № 1»,ул. Рахова,все дома\n" +
		"Волжский,МОУ «Лицей № 2»,ул. Мира,5\n" +
		"Волжский,,ул. Мира,7\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	near, err := readNearList(t.Context(), path)
	require.NoError(t, err)
	require.Len(t, near, 2)
	assert.Equal(t, model.FlexID("1"), near[0].ID)
	assert.Equal(t, "Кировский", near[0].District)
	assert.Equal(t, "МОУ «СОШ № 1»", near[0].Name)
	assert.Equal(t, model.FlexID("2"), near[1].ID)
	assert.Equal(t, "МОУ «Лицей № 2»", near[1].Name)
}

func TestReadNearList_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "near.json")
	require.NoError(t, fetcher.WriteJSON(path, []model.NearSchool{{ID: "7", Name: "Гимназия № 3", District: "Фрунзенский"}}))

	near, err := readNearList(t.Context(), path)
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, model.FlexID("7"), near[0].ID)
}
