package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/school-research-cli/internal/fetcher"
	"github.com/sells-group/school-research-cli/internal/store"
)

// initStore connects to PostgreSQL after checking the config for mode.
func initStore(ctx context.Context, mode string) (*store.Store, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "connect store")
	}
	return st, nil
}

// readList reads a JSON file holding either a bare array of T or an
// envelope whose "data" (or "schools") key holds the array.
func readList[T any](path string) ([]T, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	var envelope map[string]json.RawMessage
	if json.Unmarshal(raw, &envelope) == nil {
		for _, key := range []string{"data", "schools"} {
			if inner, ok := envelope[key]; ok {
				raw = inner
				break
			}
		}
	}
	list, err := fetcher.ReadLenientObjects[T](bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrapf(err, "decode %s", path)
	}
	return list, nil
}

// readListIfExists is readList that returns nil for a missing file.
func readListIfExists[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return readList[T](path)
}

// resolvePort returns the flag port when set, else the configured one.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// collector gathers per-URL results from concurrent page handlers.
type collector[T any] struct {
	mu    sync.Mutex
	byURL map[string][]T
}

func newCollector[T any]() *collector[T] {
	return &collector[T]{byURL: make(map[string][]T)}
}

func (c *collector[T]) put(url string, items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byURL[url] = append(c.byURL[url], items...)
}

// inOrder returns the collected items following urls.
func (c *collector[T]) inOrder(urls []string) []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []T
	for _, u := range urls {
		out = append(out, c.byURL[u]...)
	}
	return out
}
