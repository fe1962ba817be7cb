package geocode

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// cacheKey returns SHA-256 hex of the lowercased, single-spaced query.
func cacheKey(query string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

// checkCache looks up a cached result. Cached non-matches are returned too so
// the caller does not ask the geocoder again.
func (g *geocoder) checkCache(ctx context.Context, key string) (*Result, bool) {
	var r Result
	var address, precision *string

	err := g.pool.QueryRow(ctx,
		`SELECT latitude, longitude, address, precision, matched FROM sa.geocode_cache WHERE query_hash = $1`,
		key,
	).Scan(&r.Latitude, &r.Longitude, &address, &precision, &r.Matched)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			zap.L().Debug("geocode: cache read failed", zap.Error(err))
		}
		return nil, false
	}

	if address != nil {
		r.Address = *address
	}
	if precision != nil {
		r.Precision = *precision
	}
	r.Cached = true

	zap.L().Debug("geocode cache hit", zap.String("key", key[:12]), zap.Bool("matched", r.Matched))
	return &r, true
}

// storeCache upserts a result (match or non-match) into the cache.
func (g *geocoder) storeCache(ctx context.Context, key string, r *Result) error {
	_, err := g.pool.Exec(ctx, `
		INSERT INTO sa.geocode_cache (query_hash, query, latitude, longitude, address, precision, matched, cached_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (query_hash) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			address = EXCLUDED.address,
			precision = EXCLUDED.precision,
			matched = EXCLUDED.matched,
			cached_at = now()`,
		key, r.Query, r.Latitude, r.Longitude, nilIfEmpty(r.Address), nilIfEmpty(r.Precision), r.Matched,
	)
	if err != nil {
		return eris.Wrap(err, "geocode: store cache")
	}
	return nil
}

// nilIfEmpty returns nil for empty strings, allowing NULL storage in Postgres.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
