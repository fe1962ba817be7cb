package sentiment

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/school-research-cli/internal/model"
)

// ClassifyAll tags every review in place with bounded concurrency. topics
// orders the main-idea phrases. A review the classifier fails on is logged
// and kept with a positive default; only cancellation aborts the run.
func ClassifyAll(ctx context.Context, cls Classifier, reviews []model.Review, topics []string, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range reviews {
		g.Go(func() error {
			r := &reviews[i]
			a, err := cls.Classify(gctx, r.Text, r.Rating)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				zap.L().Warn("sentiment: classify failed",
					zap.String("review_id", string(r.ReviewID)),
					zap.Error(err),
				)
				failed.Add(1)
				a = model.Analysis{Topics: map[string]string{}, Overall: model.LabelPos}
			}
			Apply(r, a, topics)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "sentiment: classify reviews")
	}

	zap.L().Info("classified reviews",
		zap.Int("reviews", len(reviews)),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}

// Apply copies an analysis onto a review and fills the derived
// main-idea and tonality fields.
func Apply(r *model.Review, a model.Analysis, topics []string) {
	if a.Topics == nil {
		a.Topics = map[string]string{}
	}
	if a.Overall == "" {
		a.Overall = model.LabelPos
	}
	r.Topics = a.Topics
	r.Overall = a.Overall
	r.MainIdea = MainIdea(a.Topics, a.Overall, topics)
	r.Tonality = Tonality(a.Overall)
}
