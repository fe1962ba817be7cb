// Package store persists enriched schools and classified reviews in the
// PostgreSQL schema sa and serves the read queries behind the API.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/school-research-cli/internal/config"
	"github.com/sells-group/school-research-cli/internal/db"
)

// Store is the PostgreSQL store.
type Store struct {
	pool    db.Pool
	closeFn func()
}

// New connects to the database and verifies the connection.
func New(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "store: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 1
	if cfg.MaxConns > 0 {
		pgxCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pgxCfg.MinConns = cfg.MinConns
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "store: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "store: ping")
	}
	return &Store{pool: pool, closeFn: pool.Close}, nil
}

// NewWithPool wraps an existing pool.
func NewWithPool(pool db.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying pool, shared with the geocode cache.
func (s *Store) Pool() db.Pool {
	return s.pool
}

// Migrate applies the schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.pool)
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "store: ping")
}

// Close releases the pool.
func (s *Store) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SchoolSummary is one row of sa.get_schools().
type SchoolSummary struct {
	SchoolID     int      `json:"school_id"`
	Name2GIS     *string  `json:"name_2gis"`
	NameYandex   *string  `json:"name_ym"`
	Address      *string  `json:"school_address"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	YearBuilt    *int     `json:"year_built"`
	Capacity     *int     `json:"capacity"`
	Rating2GIS   *float64 `json:"rating_2gis"`
	RatingYandex *float64 `json:"rating_yandex"`
	LinkYandex   *string  `json:"link_yandex"`
	Link2GIS     *string  `json:"link_2gis"`
	ReviewsCount int64    `json:"reviews_count"`
}

// ListSchools returns every school with its ratings, links and review count.
func (s *Store) ListSchools(ctx context.Context) ([]SchoolSummary, error) {
	rows, err := s.pool.Query(ctx, `SELECT school_id, name_2gis, name_ym, school_address, latitude, longitude,
		year_built, capacity, rating_2gis, rating_yandex, link_yandex, link_2gis, reviews_count
		FROM sa.get_schools()`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list schools")
	}
	defer rows.Close()

	out := []SchoolSummary{}
	for rows.Next() {
		var r SchoolSummary
		if err := rows.Scan(&r.SchoolID, &r.Name2GIS, &r.NameYandex, &r.Address, &r.Latitude, &r.Longitude,
			&r.YearBuilt, &r.Capacity, &r.Rating2GIS, &r.RatingYandex, &r.LinkYandex, &r.Link2GIS, &r.ReviewsCount); err != nil {
			return nil, eris.Wrap(err, "store: scan school")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate schools")
}

// SchoolReviews returns the reviews of a school dated within [start, end]
// as a JSON array. A school without reviews yields "[]".
func (s *Store) SchoolReviews(ctx context.Context, schoolID int, start, end time.Time) (json.RawMessage, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT sa.get_school_reviews_json($1, $2, $3)`, schoolID, start, end).Scan(&raw)
	if err != nil {
		return nil, eris.Wrapf(err, "store: reviews of school %d", schoolID)
	}
	if len(raw) == 0 {
		return json.RawMessage("[]"), nil
	}
	return json.RawMessage(raw), nil
}
