package scrape

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/school-research-cli/internal/checkpoint"
	"github.com/sells-group/school-research-cli/internal/resilience"
)

func openCheckpoint(t *testing.T) *checkpoint.Store {
	t.Helper()
	st, err := checkpoint.Open(context.Background(), filepath.Join(t.TempDir(), "cp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestRunner_SkipsDoneAndMarks(t *testing.T) {
	ctx := context.Background()
	cp := openCheckpoint(t)
	require.NoError(t, cp.Mark(ctx, "2gis-school", "u1"))

	f := &mockFetcher{name: "http", pages: map[string]string{"u1": "a", "u2": "b", "u3": "c"}}
	r := &Runner{Fetcher: f, Progress: cp, Stage: "2gis-school", Concurrency: 2}

	var mu sync.Mutex
	var handled []string
	stats, err := r.Run(ctx, []string{"u1", "u2", "u3"}, func(_ context.Context, p *Page) error {
		mu.Lock()
		handled = append(handled, p.URL)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	sort.Strings(handled)
	assert.Equal(t, []string{"u2", "u3"}, handled)
	assert.Equal(t, Stats{Total: 3, Skipped: 1, Done: 2}, stats)

	n, err := cp.Count(ctx, "2gis-school")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRunner_FailuresAreCountedNotMarked(t *testing.T) {
	ctx := context.Background()
	cp := openCheckpoint(t)
	f := &mockFetcher{name: "http", pages: map[string]string{"ok": "a", "bad-handler": "b"}}
	r := &Runner{Fetcher: f, Progress: cp, Stage: "s", Concurrency: 1}

	stats, err := r.Run(ctx, []string{"ok", "missing", "bad-handler"}, func(_ context.Context, p *Page) error {
		if p.URL == "bad-handler" {
			return errors.New("parse failed")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 3, Done: 1, Failed: 2}, stats)

	done, err := cp.Done(ctx, "s", "missing")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestRunner_BlockStopsPass(t *testing.T) {
	f := &mockFetcher{name: "http", err: blockedError("http", BlockCaptcha, "u")}
	r := &Runner{Fetcher: f, Stage: "s", Concurrency: 1}

	_, err := r.Run(context.Background(), []string{"u1", "u2", "u3"}, func(context.Context, *Page) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrBlocked))
	assert.Less(t, f.callCount(), 3)
}

func TestRunner_NoProgress(t *testing.T) {
	f := &mockFetcher{name: "http", pages: map[string]string{"u": "a"}}
	r := &Runner{Fetcher: f}

	stats, err := r.Run(context.Background(), []string{"u"}, func(context.Context, *Page) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Done)
}
