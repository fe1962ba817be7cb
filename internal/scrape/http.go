package scrape

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/school-research-cli/internal/resilience"
)

const maxBodyBytes = 8 << 20

// AdaptiveLimiter wraps a rate.Limiter that speeds up by 20% after each
// success (up to 2x the initial rate) and halves on 429 (down to 1/4).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive limiter starting at initialRate.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess raises the rate.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setLocked(min(a.currentRate*1.2, a.maxRate))
}

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setLocked(max(a.currentRate*0.5, a.minRate))
	zap.L().Warn("scrape: reducing rate after 429", zap.Float64("new_rate", float64(a.currentRate)))
}

func (a *AdaptiveLimiter) setLocked(r rate.Limit) {
	a.currentRate = r
	a.limiter.SetLimit(r)
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPOptions configures HTTPFetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	RateLimit  float64 // requests per second per host
	MaxRetries int
}

// HTTPFetcher fetches static pages with net/http. Requests are rate limited
// per host; transient statuses are retried and captcha pages fail with
// resilience.ErrBlocked.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; school-research-cli/1.0)"
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

// Name implements Fetcher.
func (f *HTTPFetcher) Name() string { return "http" }

func (f *HTTPFetcher) limiterFor(host string) *AdaptiveLimiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = NewAdaptiveLimiter(rate.Limit(f.opts.RateLimit), 1)
		f.limiters[host] = lim
	}
	return lim
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "http: parse url %s", rawURL)
	}
	lim := f.limiterFor(u.Host)

	retry := resilience.Retries(f.opts.MaxRetries)
	retry.OnRetry = resilience.LogRetries("http", "fetch")
	return resilience.Retry(ctx, retry, func(ctx context.Context) (*Page, error) {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "http: rate limiter wait")
		}
		page, status, err := f.get(ctx, rawURL)
		if status == http.StatusTooManyRequests {
			lim.OnRateLimit()
		} else if err == nil {
			lim.OnSuccess()
		}
		return page, err
	})
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*Page, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "http: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "http: fetch %s", rawURL)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "http: read body")
	}

	if blocked, bt := DetectBlock(resp, body); blocked {
		return nil, resp.StatusCode, blockedError("http", bt, rawURL)
	}
	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, resilience.HTTPStatusError("http", resp.StatusCode, string(body))
	}

	return &Page{
		URL:        rawURL,
		HTML:       body,
		StatusCode: resp.StatusCode,
		Source:     f.Name(),
	}, resp.StatusCode, nil
}
