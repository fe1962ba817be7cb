package reconcile

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/school-research-cli/internal/embed"
	"github.com/sells-group/school-research-cli/internal/model"
	"github.com/sells-group/school-research-cli/internal/textnorm"
	"github.com/sells-group/school-research-cli/pkg/geocode"
)

// NearOptions configures MatchNear.
type NearOptions struct {
	TopK int
	// Keep is the minimum score for a candidate to be listed.
	Keep float64
	// Used is the minimum score for a candidate to count as claimed.
	Used float64
}

// DefaultNearOptions returns the thresholds used for the near-list match.
func DefaultNearOptions() NearOptions {
	return NearOptions{TopK: 3, Keep: 0.65, Used: 0.75}
}

// MatchNear links schools to entries of the "schools near" reference list.
//
// Each school gets its TopK most similar near entries whose score exceeds
// Keep, ordered by score (ties by list order). Entries scoring above Used
// are claimed. Unclaimed near entries are appended as rows without a school
// and a single zero-score candidate.
func MatchNear(ctx context.Context, e embed.Embedder, schools []model.ListedSchool, near []model.NearSchool, opts NearOptions) ([]model.NearMatch, error) {
	if opts.TopK <= 0 {
		opts.TopK = DefaultNearOptions().TopK
	}

	schoolTexts := make([]string, len(schools))
	for i, s := range schools {
		schoolTexts[i] = textnorm.Join(s.Name, s.ShortName, s.Address)
	}
	nearTexts := make([]string, len(near))
	for i, n := range near {
		nearTexts[i] = textnorm.Join(n.Name, n.District)
	}

	schoolVecs, err := embedTexts(ctx, e, schoolTexts)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: embed schools")
	}
	nearVecs, err := embedTexts(ctx, e, nearTexts)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: embed near list")
	}

	sim := embed.Matrix(schoolVecs, nearVecs)
	claimed := make([]bool, len(near))
	out := make([]model.NearMatch, 0, len(schools)+len(near))

	for i, s := range schools {
		row := model.NearMatch{
			ID:         len(out) + 1,
			SchoolID:   &schools[i].SchoolID,
			SchoolName: &schools[i].Name,
			ShortName:  &schools[i].ShortName,
			Address:    &schools[i].Address,
			Neighbors:  []model.NearCandidate{},
		}

		for _, j := range topK(sim[i], opts.TopK) {
			score := sim[i][j]
			if score <= opts.Keep {
				continue
			}
			cand := candidate(near[j], score)
			cand.DistanceM = distance(s, near[j])
			row.Neighbors = append(row.Neighbors, cand)
			if score > opts.Used {
				claimed[j] = true
			}
		}
		out = append(out, row)
	}

	var unclaimed int
	for j, n := range near {
		if claimed[j] {
			continue
		}
		out = append(out, model.NearMatch{
			ID:        len(out) + 1,
			Neighbors: []model.NearCandidate{candidate(n, 0)},
		})
		unclaimed++
	}

	zap.L().Info("matched near list",
		zap.Int("schools", len(schools)),
		zap.Int("near", len(near)),
		zap.Int("unclaimed", unclaimed),
	)

	return out, nil
}

func candidate(n model.NearSchool, score float64) model.NearCandidate {
	return model.NearCandidate{
		NearID:   n.ID,
		NearName: n.Name,
		District: n.District,
		Score:    math.Round(score*10000) / 10000,
	}
}

func distance(s model.ListedSchool, n model.NearSchool) *float64 {
	if s.Lat == nil || s.Lon == nil || n.Lat == nil || n.Lon == nil {
		return nil
	}
	d := math.Round(geocode.HaversineMeters(*s.Lat, *s.Lon, *n.Lat, *n.Lon))
	return &d
}

// topK returns the indices of the k highest scores, highest first, ties by
// lower index.
func topK(scores []float64, k int) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	if len(idx) > k {
		idx = idx[:k]
	}
	return idx
}

func embedTexts(ctx context.Context, e embed.Embedder, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := e.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, eris.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}
