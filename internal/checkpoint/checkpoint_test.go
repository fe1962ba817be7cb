package checkpoint

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), filepath.Join(t.TempDir(), "checkpoint.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func TestDoneMarkReset(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	url := "https://2gis.ru/saratov/firm/1"

	done, err := st.Done(ctx, "2gis-reviews", url)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, st.Mark(ctx, "2gis-reviews", url))
	require.NoError(t, st.Mark(ctx, "2gis-reviews", url))

	done, err = st.Done(ctx, "2gis-reviews", url)
	require.NoError(t, err)
	assert.True(t, done)

	done, err = st.Done(ctx, "yandex-reviews", url)
	require.NoError(t, err)
	assert.False(t, done, "stages are independent")

	n, err := st.Count(ctx, "2gis-reviews")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	removed, err := st.Reset(ctx, "2gis-reviews")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	done, err = st.Done(ctx, "2gis-reviews", url)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestReopenKeepsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.db")
	ctx := context.Background()

	st, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, st.Mark(ctx, "uchi", "page-1"))
	require.NoError(t, st.Close())

	st, err = Open(ctx, path)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	done, err := st.Done(ctx, "uchi", "page-1")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestRuns(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.StartRun(ctx, "google")
	require.NoError(t, err)
	assert.Len(t, id, 36)

	runs, err := st.Runs(ctx, "google")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunRunning, runs[0].Status)
	assert.Nil(t, runs[0].FinishedAt)

	require.NoError(t, st.FinishRun(ctx, id, RunComplete, 12, 1))

	runs, err = st.Runs(ctx, "")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunComplete, runs[0].Status)
	assert.Equal(t, 12, runs[0].Items)
	assert.Equal(t, 1, runs[0].Failed)
	assert.NotNil(t, runs[0].FinishedAt)

	err = st.FinishRun(ctx, "missing", RunFailed, 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestPageCache(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, ok, err := st.GetPage(ctx, "https://uchi.ru/a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.PutPage(ctx, "https://uchi.ru/a", []byte("<html>1</html>"), time.Hour))
	require.NoError(t, st.PutPage(ctx, "https://uchi.ru/a", []byte("<html>2</html>"), time.Hour))
	require.NoError(t, st.PutPage(ctx, "https://uchi.ru/old", []byte("old"), -time.Hour))

	body, ok, err := st.GetPage(ctx, "https://uchi.ru/a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "<html>2</html>", string(body))

	_, ok, err = st.GetPage(ctx, "https://uchi.ru/old")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := st.PurgePages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
