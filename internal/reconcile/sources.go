// Package reconcile matches school records across providers by the cosine
// similarity of their text embeddings.
package reconcile

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/school-research-cli/internal/embed"
	"github.com/sells-group/school-research-cli/internal/model"
	"github.com/sells-group/school-research-cli/internal/textnorm"
)

// DefaultSourceThreshold is the minimum cosine score for a 2GIS and a
// Yandex record to be treated as the same school.
const DefaultSourceThreshold = 0.78

// SourceStats summarizes a MergeSources run.
type SourceStats struct {
	Matched    int
	TwoGISOnly int
	YandexOnly int
}

// MergeSources reconciles 2GIS listings with Yandex Maps listings.
//
// Every 2GIS record produces one output row, in input order. Its best Yandex
// candidate (highest cosine score, lowest index on ties) is attached when the
// score exceeds threshold; unmatched 2GIS rows carry a score of 0. A Yandex
// record may be attached to several 2GIS rows. Yandex records never attached
// are appended afterwards without a score. Row ids are sequential from 1.
func MergeSources(ctx context.Context, e embed.Embedder, twogis, yandex []model.SourceSchool, threshold float64) ([]model.MergedSchool, SourceStats, error) {
	var stats SourceStats

	gisVecs, err := embedSources(ctx, e, twogis)
	if err != nil {
		return nil, stats, eris.Wrap(err, "reconcile: embed 2gis records")
	}
	ymVecs, err := embedSources(ctx, e, yandex)
	if err != nil {
		return nil, stats, eris.Wrap(err, "reconcile: embed yandex records")
	}

	out := make([]model.MergedSchool, 0, len(twogis)+len(yandex))
	used := make([]bool, len(yandex))

	for i, gis := range twogis {
		row := fromTwoGIS(len(out)+1, gis)

		best, score := argmax(gisVecs[i], ymVecs)
		if best >= 0 && score > threshold {
			ym := yandex[best]
			used[best] = true
			s := score
			row.MatchScore = &s
			row.YandexURL = ym.URL
			row.YandexID = ym.YandexID
			row.ReviewsCount = ym.ReviewsCount
			row.Sources = append(row.Sources, model.SourceYandex)
			stats.Matched++
		} else {
			row.MatchScore = new(float64)
			stats.TwoGISOnly++
		}
		out = append(out, row)
	}

	for j, ym := range yandex {
		if used[j] {
			continue
		}
		out = append(out, fromYandex(len(out)+1, ym))
		stats.YandexOnly++
	}

	zap.L().Info("reconciled sources",
		zap.Int("twogis", len(twogis)),
		zap.Int("yandex", len(yandex)),
		zap.Int("matched", stats.Matched),
		zap.Int("twogis_only", stats.TwoGISOnly),
		zap.Int("yandex_only", stats.YandexOnly),
	)

	return out, stats, nil
}

func fromTwoGIS(id int, s model.SourceSchool) model.MergedSchool {
	return model.MergedSchool{
		ID:              id,
		Name:            s.Name,
		FullName:        s.FullName,
		Address:         s.Address,
		TwoGISURL:       s.URL,
		CadastralNumber: s.CadastralNumber,
		Sources:         []model.Source{model.SourceTwoGIS},
	}
}

func fromYandex(id int, s model.SourceSchool) model.MergedSchool {
	return model.MergedSchool{
		ID:              id,
		Name:            s.Name,
		FullName:        s.FullName,
		Address:         s.Address,
		YandexURL:       s.URL,
		CadastralNumber: s.CadastralNumber,
		YandexID:        s.YandexID,
		ReviewsCount:    s.ReviewsCount,
		Sources:         []model.Source{model.SourceYandex},
	}
}

func sourceText(s model.SourceSchool) string {
	return textnorm.Join(s.Name, s.Address)
}

func embedSources(ctx context.Context, e embed.Embedder, recs []model.SourceSchool) ([][]float32, error) {
	texts := make([]string, len(recs))
	for i, r := range recs {
		texts[i] = sourceText(r)
	}
	return embedTexts(ctx, e, texts)
}

// argmax returns the index and score of the candidate most similar to v.
// Ties resolve to the lowest index; -1 means no candidates.
func argmax(v []float32, candidates [][]float32) (int, float64) {
	best, bestScore := -1, 0.0
	for j, c := range candidates {
		s := embed.Cosine(v, c)
		if best < 0 || s > bestScore {
			best, bestScore = j, s
		}
	}
	return best, bestScore
}
