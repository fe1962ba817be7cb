package store

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/school-research-cli/internal/db"
	"github.com/sells-group/school-research-cli/internal/model"
)

const touchUpdatedAt = "updated_at = now()"

var (
	schoolUpsert = db.UpsertConfig{
		Table: "sa.school",
		Columns: []string{
			"school_id", "name_2gis", "name_ym", "school_address", "building_type",
			"floors", "floor_under", "material", "reconstruction_year", "year_built",
			"capacity", "building_info", "has_sports_complex", "has_pool", "has_stadium",
			"has_sports_ground", "location",
		},
		ConflictKeys: []string{"school_id"},
		ExtraSet:     []string{touchUpdatedAt},
	}
	ratingUpsert = db.UpsertConfig{
		Table:        "sa.rating",
		Columns:      []string{"school_id", "rating_2gis", "rating_yandex"},
		ConflictKeys: []string{"school_id"},
		ExtraSet:     []string{touchUpdatedAt},
	}
	linkUpsert = db.UpsertConfig{
		Table:        "sa.link",
		Columns:      []string{"school_id", "link_yandex", "review_link_ym", "link_2gis", "review_link_2gis"},
		ConflictKeys: []string{"school_id"},
		ExtraSet:     []string{touchUpdatedAt},
	}
	reviewUpsert = db.UpsertConfig{
		Table: "sa.review",
		Columns: []string{
			"review_id", "school_id", "review_date", "review_text", "likes_count",
			"dislikes_count", "review_rating", "topics", "overall", "main_idea", "tonality",
		},
		ConflictKeys: []string{"review_id"},
		ExtraSet:     []string{touchUpdatedAt},
	}
)

// EncodePoint returns a WGS84 point as EWKB for the location column.
func EncodePoint(lat, lon float64) ([]byte, error) {
	p := geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(4326)
	data, err := ewkb.Marshal(p, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode point")
	}
	return data, nil
}

type buildingInfo struct {
	AreaSqm         *float64 `json:"area_sqm"`
	CadastralNumber *string  `json:"cadastral_number"`
}

// SchoolRow converts a school to a sa.school row. Schools without
// coordinates cannot be stored and return ok=false.
func SchoolRow(s model.School) ([]any, bool, error) {
	lat, lon, ok := s.Coordinates()
	if !ok {
		return nil, false, nil
	}
	loc, err := EncodePoint(lat, lon)
	if err != nil {
		return nil, false, err
	}
	info, err := json.Marshal(buildingInfo{AreaSqm: s.AreaSqm, CadastralNumber: s.CadastralNumber})
	if err != nil {
		return nil, false, eris.Wrap(err, "store: encode building info")
	}
	return []any{
		s.ID, s.Name2GIS, s.ShortName, s.Address, s.BuildingType,
		s.Floors, s.UndergroundFloors, s.Material, s.ReconstructionYear, s.YearBuilt,
		s.Capacity, info, model.BoolFlag(s.HasSportsComplex), model.BoolFlag(s.HasPool), model.BoolFlag(s.HasStadium),
		model.BoolFlag(s.HasSportsGround), loc,
	}, true, nil
}

// UpsertSchools inserts or updates schools. Schools without coordinates are
// skipped with a warning.
func (s *Store) UpsertSchools(ctx context.Context, schools []model.School) (int64, error) {
	rows := make([][]any, 0, len(schools))
	for _, sc := range schools {
		row, ok, err := SchoolRow(sc)
		if err != nil {
			return 0, eris.Wrapf(err, "store: school %d", sc.ID)
		}
		if !ok {
			zap.L().Warn("store: skipping school without coordinates", zap.Int("school_id", sc.ID))
			continue
		}
		rows = append(rows, row)
	}
	n, err := db.BulkUpsert(ctx, s.pool, schoolUpsert, rows)
	return n, eris.Wrap(err, "store: upsert schools")
}

// UpsertRatings stores the 2GIS and Yandex ratings. Schools with neither
// rating are skipped.
func (s *Store) UpsertRatings(ctx context.Context, schools []model.School) (int64, error) {
	var rows [][]any
	for _, sc := range schools {
		if sc.Rating2GIS == nil && sc.RatingYandex == nil {
			continue
		}
		rows = append(rows, []any{sc.ID, sc.Rating2GIS, sc.RatingYandex})
	}
	n, err := db.BulkUpsert(ctx, s.pool, ratingUpsert, rows)
	return n, eris.Wrap(err, "store: upsert ratings")
}

// UpsertLinks stores the provider links. Schools without any link are
// skipped.
func (s *Store) UpsertLinks(ctx context.Context, schools []model.School) (int64, error) {
	var rows [][]any
	for _, sc := range schools {
		links := []*string{sc.LinkYandex, sc.ReviewsLinkYandex, sc.Link2GIS, sc.ReviewsLink2GIS}
		if !anyNonEmpty(links) {
			continue
		}
		rows = append(rows, []any{sc.ID, nonEmpty(sc.LinkYandex), nonEmpty(sc.ReviewsLinkYandex),
			nonEmpty(sc.Link2GIS), nonEmpty(sc.ReviewsLink2GIS)})
	}
	n, err := db.BulkUpsert(ctx, s.pool, linkUpsert, rows)
	return n, eris.Wrap(err, "store: upsert links")
}

// ReviewRow converts a review to a sa.review row. A date that is not
// YYYY-MM-DD is stored as NULL. Reviews left with neither date nor text, or
// with non-numeric ids, return ok=false.
func ReviewRow(r model.Review) ([]any, bool, error) {
	text := strings.TrimSpace(r.Text)
	var date *time.Time
	if t, err := time.Parse(time.DateOnly, strings.TrimSpace(r.Date)); err == nil {
		date = &t
	}
	if text == "" && date == nil {
		return nil, false, nil
	}
	reviewID, err := strconv.Atoi(string(r.ReviewID))
	if err != nil {
		return nil, false, nil
	}
	schoolID, err := strconv.Atoi(string(r.SchoolID))
	if err != nil {
		return nil, false, nil
	}

	topics := r.Topics
	if topics == nil {
		topics = map[string]string{}
	}
	topicsJSON, err := json.Marshal(topics)
	if err != nil {
		return nil, false, eris.Wrap(err, "store: encode topics")
	}

	return []any{
		reviewID, schoolID, date, nullString(text), r.LikesCount,
		r.DislikesCount, r.Rating, topicsJSON, nullString(r.Overall), nullString(r.MainIdea), nullString(r.Tonality),
	}, true, nil
}

// UpsertReviews inserts or updates reviews keyed by review_id. Empty
// reviews and reviews without numeric ids are skipped.
func (s *Store) UpsertReviews(ctx context.Context, reviews []model.Review) (int64, error) {
	rows := make([][]any, 0, len(reviews))
	skipped := 0
	for _, r := range reviews {
		row, ok, err := ReviewRow(r)
		if err != nil {
			return 0, eris.Wrapf(err, "store: review %s", r.ReviewID)
		}
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, row)
	}
	if skipped > 0 {
		zap.L().Info("store: skipped reviews", zap.Int("skipped", skipped), zap.Int("kept", len(rows)))
	}
	n, err := db.BulkUpsert(ctx, s.pool, reviewUpsert, rows)
	return n, eris.Wrap(err, "store: upsert reviews")
}

func nullString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func nonEmpty(p *string) *string {
	if p == nil {
		return nil
	}
	return nullString(*p)
}

func anyNonEmpty(ps []*string) bool {
	for _, p := range ps {
		if nonEmpty(p) != nil {
			return true
		}
	}
	return false
}
