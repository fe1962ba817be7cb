package scrape

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/school-research-cli/internal/resilience"
)

// PageCache stores fetched pages between runs. *checkpoint.Store
// implements it.
type PageCache interface {
	GetPage(ctx context.Context, url string) ([]byte, bool, error)
	PutPage(ctx context.Context, url string, body []byte, ttl time.Duration) error
}

// Chain tries fetchers in order, returning the first success. A typical
// chain is HTTP first with the browser as fallback for blocked or
// JS-rendered pages.
type Chain struct {
	fetchers []Fetcher
	cache    PageCache
	cacheTTL time.Duration
}

// NewChain creates a Chain over fetchers.
func NewChain(fetchers ...Fetcher) *Chain {
	return &Chain{fetchers: fetchers}
}

// WithCache serves pages from cache when fresh and stores new ones for ttl.
func (c *Chain) WithCache(cache PageCache, ttl time.Duration) *Chain {
	c.cache = cache
	c.cacheTTL = ttl
	return c
}

// Name implements Fetcher.
func (c *Chain) Name() string { return "chain" }

// Fetch implements Fetcher. If every fetcher fails and at least one was
// blocked, the returned error wraps resilience.ErrBlocked.
func (c *Chain) Fetch(ctx context.Context, url string) (*Page, error) {
	if c.cache != nil {
		body, ok, err := c.cache.GetPage(ctx, url)
		if err != nil {
			zap.L().Warn("scrape: page cache read failed", zap.String("url", url), zap.Error(err))
		} else if ok {
			return &Page{URL: url, HTML: body, StatusCode: 200, Source: "cache"}, nil
		}
	}

	var lastErr, blockErr error
	for _, f := range c.fetchers {
		page, err := f.Fetch(ctx, url)
		if err == nil && page != nil {
			c.store(ctx, page)
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "scrape: cancelled")
		}
		if err != nil {
			zap.L().Debug("scrape: fetcher failed, trying next",
				zap.String("fetcher", f.Name()),
				zap.String("url", url),
				zap.Error(err),
			)
			if errors.Is(err, resilience.ErrBlocked) {
				blockErr = err
			}
			lastErr = err
		}
	}
	if blockErr != nil {
		return nil, blockErr
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all fetchers failed")
	}
	return nil, eris.Errorf("scrape: no fetcher for url: %s", url)
}

func (c *Chain) store(ctx context.Context, page *Page) {
	if c.cache == nil || page.Source == "cache" {
		return
	}
	if err := c.cache.PutPage(ctx, page.URL, page.HTML, c.cacheTTL); err != nil {
		zap.L().Warn("scrape: page cache write failed", zap.String("url", page.URL), zap.Error(err))
	}
}
