// Package resilience provides retry and error classification for calls to
// map providers, geocoders and model APIs.
package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy is a doubling backoff retry policy.
type Policy struct {
	Attempts   int           // total tries, first included; default 3
	Backoff    time.Duration // delay before the first retry; default 1s
	MaxBackoff time.Duration // default 30s
	Jitter     float64       // +/- fraction applied to each delay

	// Retryable defaults to IsTransient.
	Retryable func(error) bool
	// OnRetry runs before each sleep with the number of the failed try.
	OnRetry func(try int, err error)
}

// DefaultPolicy is three tries, 1s doubling to 30s, 25% jitter.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Backoff: time.Second, MaxBackoff: 30 * time.Second, Jitter: 0.25}
}

// Retries is DefaultPolicy allowing n retries after the first try. n <= 0
// keeps the default.
func Retries(n int) Policy {
	p := DefaultPolicy()
	if n > 0 {
		p.Attempts = n + 1
	}
	return p
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.Backoff <= 0 {
		p.Backoff = def.Backoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// delay returns the sleep after the given zero-based failed try.
func (p Policy) delay(try int) time.Duration {
	d := p.Backoff
	for i := 0; i < try && d < p.MaxBackoff; i++ {
		d *= 2
	}
	d = min(d, p.MaxBackoff)
	if p.Jitter > 0 {
		d += time.Duration((rand.Float64()*2 - 1) * p.Jitter * float64(d))
	}
	return max(d, 0)
}

// Retry calls fn until it succeeds, fails with a non-retryable error, runs
// out of tries or ctx is done. The last error is returned.
func Retry[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	p = p.normalized()
	var zero T
	for try := 0; ; try++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if try == p.Attempts-1 || ctx.Err() != nil || !p.Retryable(err) {
			return zero, err
		}
		if p.OnRetry != nil {
			p.OnRetry(try+1, err)
		}

		t := time.NewTimer(p.delay(try))
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, err
		case <-t.C:
		}
	}
}

// LogRetries returns an OnRetry hook that logs at warn level.
func LogRetries(service, op string) func(int, error) {
	return func(try int, err error) {
		zap.L().Warn("resilience: retrying",
			zap.String("service", service),
			zap.String("op", op),
			zap.Int("try", try),
			zap.Error(err),
		)
	}
}
