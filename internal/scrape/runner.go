package scrape

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/school-research-cli/internal/resilience"
)

// Progress remembers which URLs a stage already processed.
// *checkpoint.Store implements it.
type Progress interface {
	Done(ctx context.Context, stage, url string) (bool, error)
	Mark(ctx context.Context, stage, url string) error
}

// Handler consumes a fetched page.
type Handler func(ctx context.Context, page *Page) error

// Stats counts the outcome of a Runner pass.
type Stats struct {
	Total   int
	Skipped int
	Done    int
	Failed  int
}

// Runner fetches a URL list with a bounded worker pool. URLs recorded in
// Progress are skipped; each URL handled without error is marked. A blocked
// fetch stops the whole pass so it can resume later.
type Runner struct {
	Fetcher     Fetcher
	Progress    Progress // optional
	Stage       string
	Concurrency int
}

// Run fetches urls and passes each page to handle, which may be called
// concurrently. Handler errors and
// non-block fetch errors are logged and counted as failures.
func (r *Runner) Run(ctx context.Context, urls []string, handle Handler) (Stats, error) {
	var skipped, done, failed atomic.Int64

	limit := r.Concurrency
	if limit < 1 {
		limit = 1
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, u := range urls {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gCtx.Err() != nil {
				return nil
			}
			if r.Progress != nil {
				ok, err := r.Progress.Done(gCtx, r.Stage, u)
				if err != nil {
					return eris.Wrap(err, "scrape: read checkpoint")
				}
				if ok {
					skipped.Add(1)
					return nil
				}
			}

			page, err := r.Fetcher.Fetch(gCtx, u)
			if err != nil {
				if errors.Is(err, resilience.ErrBlocked) {
					return err
				}
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				zap.L().Warn("scrape: fetch failed",
					zap.String("stage", r.Stage),
					zap.String("url", u),
					zap.Error(err),
				)
				failed.Add(1)
				return nil
			}

			if err := handle(gCtx, page); err != nil {
				zap.L().Warn("scrape: handle page failed",
					zap.String("stage", r.Stage),
					zap.String("url", u),
					zap.Error(err),
				)
				failed.Add(1)
				return nil
			}
			done.Add(1)

			if r.Progress != nil {
				if err := r.Progress.Mark(gCtx, r.Stage, u); err != nil {
					return eris.Wrap(err, "scrape: write checkpoint")
				}
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil && ctx.Err() != nil {
		err = eris.Wrap(ctx.Err(), "scrape: cancelled")
	}
	stats := Stats{
		Total:   len(urls),
		Skipped: int(skipped.Load()),
		Done:    int(done.Load()),
		Failed:  int(failed.Load()),
	}
	zap.L().Info("scrape: pass complete",
		zap.String("stage", r.Stage),
		zap.Int("total", stats.Total),
		zap.Int("done", stats.Done),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats, err
}
