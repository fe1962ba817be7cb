// Package geocode resolves addresses to coordinates and coordinates back to
// addresses through the Yandex geocoder HTTP API.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/school-research-cli/internal/db"
	"github.com/sells-group/school-research-cli/internal/resilience"
)

// DefaultBaseURL is the Yandex geocoder endpoint.
const DefaultBaseURL = "https://geocode-maps.yandex.ru/1.x/"

// Client geocodes free-form Russian addresses.
type Client interface {
	// Geocode resolves a single address query.
	Geocode(ctx context.Context, query string) (*Result, error)

	// Reverse resolves the nearest house to a point.
	Reverse(ctx context.Context, lat, lon float64) (*ReverseResult, error)

	// BatchGeocode resolves queries concurrently. Results keep input order.
	BatchGeocode(ctx context.Context, queries []string) ([]Result, error)
}

// Result holds the forward geocoding output for one query.
type Result struct {
	Query     string  `json:"query"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
	Precision string  `json:"precision,omitempty"`
	Matched   bool    `json:"matched"`
	Cached    bool    `json:"-"`
}

// ReverseResult holds the address found for a point.
type ReverseResult struct {
	Address    string            `json:"address"`
	Components map[string]string `json:"components"`
	Latitude   float64           `json:"latitude"`
	Longitude  float64           `json:"longitude"`
	Precision  string            `json:"precision"`
	Matched    bool              `json:"matched"`
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithBaseURL overrides the geocoder endpoint.
func WithBaseURL(u string) Option {
	return func(g *geocoder) {
		if u != "" {
			g.baseURL = u
		}
	}
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		if rps > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

// WithCache enables the Postgres-backed result cache.
func WithCache(pool db.Pool) Option {
	return func(g *geocoder) {
		g.pool = pool
	}
}

// WithConcurrency caps in-flight requests for BatchGeocode.
func WithConcurrency(n int) Option {
	return func(g *geocoder) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) Option {
	return func(g *geocoder) {
		g.retry = resilience.Retries(n)
	}
}

type geocoder struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	pool        db.Pool
	concurrency int
	retry       resilience.Policy
}

// NewClient creates a Yandex geocoding Client.
func NewClient(apiKey string, opts ...Option) Client {
	g := &geocoder{
		apiKey:      apiKey,
		baseURL:     DefaultBaseURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(5, 5),
		concurrency: 4,
		retry:       resilience.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.retry.OnRetry = resilience.LogRetries("yandex-geocoder", "geocode")
	return g
}

// Geocode resolves query, consulting the cache first when one is configured.
// An address the geocoder does not know yields Matched=false, not an error.
func (g *geocoder) Geocode(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, eris.New("geocode: empty query")
	}

	key := cacheKey(query)
	if g.pool != nil {
		if cached, ok := g.checkCache(ctx, key); ok {
			cached.Query = query
			return cached, nil
		}
	}

	obj, err := g.lookup(ctx, url.Values{"geocode": {query}})
	if err != nil {
		return nil, err
	}

	result := &Result{Query: query}
	if obj != nil {
		lat, lon, ok := parsePos(obj.Point.Pos)
		if ok {
			meta := obj.MetaDataProperty.GeocoderMetaData
			result.Latitude = lat
			result.Longitude = lon
			result.Address = meta.Text
			result.Precision = meta.Precision
			result.Matched = true
		}
	}

	if g.pool != nil {
		if err := g.storeCache(ctx, key, result); err != nil {
			zap.L().Warn("geocode: cache write failed", zap.String("query", query), zap.Error(err))
		}
	}

	return result, nil
}

// Reverse finds the nearest house to (lat, lon). When the geocoder returns
// no point, the input coordinates are echoed back.
func (g *geocoder) Reverse(ctx context.Context, lat, lon float64) (*ReverseResult, error) {
	params := url.Values{
		"geocode": {formatFloat(lon) + "," + formatFloat(lat)},
		"kind":    {"house"},
		"results": {"1"},
	}

	obj, err := g.lookup(ctx, params)
	if err != nil {
		return nil, err
	}

	result := &ReverseResult{
		Components: map[string]string{},
		Latitude:   lat,
		Longitude:  lon,
	}
	if obj == nil {
		return result, nil
	}

	meta := obj.MetaDataProperty.GeocoderMetaData
	result.Address = meta.Text
	result.Precision = meta.Precision
	result.Matched = true
	for _, c := range meta.Address.Components {
		result.Components[c.Kind] = c.Name
	}
	if pLat, pLon, ok := parsePos(obj.Point.Pos); ok {
		result.Latitude = pLat
		result.Longitude = pLon
	}
	return result, nil
}

// BatchGeocode resolves queries with bounded concurrency. A failed query is
// logged and reported as unmatched; only context cancellation fails the batch.
func (g *geocoder) BatchGeocode(ctx context.Context, queries []string) ([]Result, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	results := make([]Result, len(queries))
	var (
		mu      sync.Mutex
		matched int
	)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)

	for i, q := range queries {
		eg.Go(func() error {
			r, err := g.Geocode(gctx, q)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				zap.L().Warn("geocode: query failed", zap.String("query", q), zap.Error(err))
				results[i] = Result{Query: q}
				return nil
			}
			results[i] = *r
			if r.Matched {
				mu.Lock()
				matched++
				mu.Unlock()
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return results, eris.Wrap(err, "geocode: batch")
	}

	zap.L().Info("geocoded batch",
		zap.Int("queries", len(queries)),
		zap.Int("matched", matched),
	)
	return results, nil
}

type yandexResponse struct {
	Response struct {
		GeoObjectCollection struct {
			FeatureMember []struct {
				GeoObject geoObject `json:"GeoObject"`
			} `json:"featureMember"`
		} `json:"GeoObjectCollection"`
	} `json:"response"`
}

type geoObject struct {
	MetaDataProperty struct {
		GeocoderMetaData struct {
			Text      string `json:"text"`
			Precision string `json:"precision"`
			Kind      string `json:"kind"`
			Address   struct {
				Components []struct {
					Kind string `json:"kind"`
					Name string `json:"name"`
				} `json:"Components"`
			} `json:"Address"`
		} `json:"GeocoderMetaData"`
	} `json:"metaDataProperty"`
	Point struct {
		Pos string `json:"pos"`
	} `json:"Point"`
}

// lookup calls the geocoder and returns its first feature, or nil when the
// collection is empty.
func (g *geocoder) lookup(ctx context.Context, params url.Values) (*geoObject, error) {
	if g.apiKey == "" {
		return nil, eris.New("geocode: yandex api key not configured")
	}
	params.Set("apikey", g.apiKey)
	params.Set("format", "json")
	reqURL := g.baseURL + "?" + params.Encode()

	return resilience.Retry(ctx, g.retry, func(ctx context.Context) (*geoObject, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "geocode: rate limit")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "geocode: build request")
		}

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "geocode: request")
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return nil, resilience.HTTPStatusError("geocode: yandex", resp.StatusCode, string(body))
		}

		var parsed yandexResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return nil, eris.Wrap(err, "geocode: parse response")
		}

		members := parsed.Response.GeoObjectCollection.FeatureMember
		if len(members) == 0 {
			return nil, nil
		}
		return &members[0].GeoObject, nil
	})
}

// parsePos reads a Yandex "lon lat" position string.
func parsePos(pos string) (lat, lon float64, ok bool) {
	parts := strings.Fields(pos)
	if len(parts) != 2 {
		return 0, 0, false
	}
	lon, errLon := strconv.ParseFloat(parts[0], 64)
	lat, errLat := strconv.ParseFloat(parts[1], 64)
	if errLon != nil || errLat != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
