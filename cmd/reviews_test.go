//go:build !integration

package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/school-research-cli/internal/model"
	"github.com/sells-group/school-research-cli/internal/reviews"
)

func runRoot(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	return rootCmd.Execute()
}

func TestReviewsFilterAndDates(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "reviews.json")
	require.NoError(t, reviews.Save(in, reviews.NewFile("2GIS", "", []model.Review{
		{ReviewID: "1", SchoolID: "3", Date: "26 ноября 2015", Text: "хорошо"},
		{ReviewID: "2", SchoolID: "4", Date: "2024-01-01", Text: "плохо"},
		{ReviewID: "3", SchoolID: "3"},
		{ReviewID: "4", SchoolID: "200", Text: "чужая школа"},
	})))

	filtered := filepath.Join(dir, "filtered.json")
	require.NoError(t, runRoot(t, "reviews", "filter", "--in", in, "--out", filtered, "--ids", "1-10"))

	f, err := reviews.Load(filtered)
	require.NoError(t, err)
	require.Len(t, f.Reviews, 2)
	assert.Equal(t, "2GIS", f.Resource)

	dated := filepath.Join(dir, "dated.json")
	require.NoError(t, runRoot(t, "reviews", "dates", "--in", filtered, "--out", dated))

	f, err = reviews.Load(dated)
	require.NoError(t, err)
	assert.Equal(t, "2015-11-26", f.Reviews[0].Date)
	assert.Equal(t, "2024-01-01", f.Reviews[1].Date)
}

func TestReviewsSplit(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "reviews.json")
	require.NoError(t, reviews.Save(in, reviews.NewFile("", "", []model.Review{
		{ReviewID: "1", SchoolID: "2", Text: "a"},
		{ReviewID: "2", SchoolID: "1", Text: "b"},
		{ReviewID: "3", SchoolID: "2", Text: "c"},
	})))

	out := filepath.Join(dir, "split")
	require.NoError(t, runRoot(t, "reviews", "split", "--in", in, "--dir", out))

	f, err := reviews.Load(filepath.Join(out, reviews.SplitFileName("2")))
	require.NoError(t, err)
	assert.Len(t, f.Reviews, 2)
}
