package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/school-research-cli/internal/fetcher"
	"github.com/sells-group/school-research-cli/internal/model"
	"github.com/sells-group/school-research-cli/internal/store"
	"github.com/sells-group/school-research-cli/pkg/geocode"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Resolve school addresses and coordinates with the Yandex geocoder",
}

// newGeocoder builds the geocoder. When the cache is enabled and a database
// is configured the returned store backs the cache and must be closed.
func newGeocoder(ctx context.Context) (geocode.Client, *store.Store, error) {
	if err := cfg.Validate("geocode"); err != nil {
		return nil, nil, err
	}
	opts := []geocode.Option{
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithRateLimit(cfg.Geocode.RateLimit),
		geocode.WithConcurrency(cfg.Geocode.Concurrency),
	}

	var st *store.Store
	if cfg.Geocode.CacheEnabled && cfg.Store.DatabaseURL != "" {
		s, err := store.New(ctx, cfg.Store)
		if err != nil {
			zap.L().Warn("geocode: cache unavailable, continuing without it", zap.Error(err))
		} else {
			st = s
			opts = append(opts, geocode.WithCache(st.Pool()))
		}
	}
	return geocode.NewClient(cfg.Geocode.YandexAPIKey, opts...), st, nil
}

func closeStore(st *store.Store) {
	if st != nil {
		_ = st.Close()
	}
}

// addressQuery prefixes an address with the configured city unless it
// already names it.
func addressQuery(city, address string) string {
	address = strings.TrimSpace(address)
	if address == "" || city == "" || strings.Contains(strings.ToLower(address), strings.ToLower(city)) {
		return address
	}
	return "город " + city + ", " + address
}

var addressKeys = []string{"adres", "address", "school_adres", "school_address"}

func recordAddress(rec map[string]any) string {
	for _, k := range addressKeys {
		if s, ok := rec[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

var (
	geocodeQuery string
	geocodeIn    string
	geocodeOut   string
)

var geocodeForwardCmd = &cobra.Command{
	Use:   "forward",
	Short: "Add latitude and longitude to every record of a school file",
	Long:  "Reads a JSON list of school records, geocodes the adres/address field of each and writes latitude, longitude and coords. With --query a single address is resolved and printed.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		gc, st, err := newGeocoder(ctx)
		if err != nil {
			return err
		}
		defer closeStore(st)

		if geocodeQuery != "" {
			res, err := gc.Geocode(ctx, addressQuery(cfg.Geocode.City, geocodeQuery))
			if err != nil {
				return err
			}
			return printJSON(res)
		}
		if geocodeIn == "" || geocodeOut == "" {
			return eris.New("geocode forward: --in and --out are required without --query")
		}

		records, err := readList[map[string]any](geocodeIn)
		if err != nil {
			return err
		}
		queries := make([]string, len(records))
		for i, rec := range records {
			queries[i] = addressQuery(cfg.Geocode.City, recordAddress(rec))
		}
		results, err := gc.BatchGeocode(ctx, queries)
		if err != nil {
			return err
		}

		matched := 0
		for i, rec := range records {
			r := results[i]
			if !r.Matched {
				continue
			}
			matched++
			rec["latitude"] = r.Latitude
			rec["longitude"] = r.Longitude
			rec["coords"] = geocode.FormatCoords(r.Latitude, r.Longitude)
			rec["geo_precision"] = r.Precision
		}
		if err := fetcher.WriteJSON(geocodeOut, records); err != nil {
			return err
		}
		zap.L().Info("geocoded schools",
			zap.Int("records", len(records)),
			zap.Int("matched", matched),
			zap.String("out", geocodeOut),
		)
		return nil
	},
}

var (
	reverseLat float64
	reverseLon float64
)

var geocodeReverseCmd = &cobra.Command{
	Use:   "reverse",
	Short: "Find the address of a point, or of every record's coords in a file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		gc, st, err := newGeocoder(ctx)
		if err != nil {
			return err
		}
		defer closeStore(st)

		if geocodeIn == "" {
			if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
				return eris.New("geocode reverse: --lat and --lon, or --in, are required")
			}
			res, err := gc.Reverse(ctx, reverseLat, reverseLon)
			if err != nil {
				return err
			}
			return printJSON(res)
		}
		if geocodeOut == "" {
			return eris.New("geocode reverse: --out is required with --in")
		}

		records, err := readList[map[string]any](geocodeIn)
		if err != nil {
			return err
		}
		found := 0
		for i, rec := range records {
			lat, lon, ok := recordCoords(rec)
			if !ok {
				continue
			}
			res, err := gc.Reverse(ctx, lat, lon)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				zap.L().Warn("geocode: reverse failed", zap.Int("index", i), zap.Error(err))
				continue
			}
			if res.Matched {
				rec["reverse_address"] = res.Address
				found++
			}
		}
		if err := fetcher.WriteJSON(geocodeOut, records); err != nil {
			return err
		}
		zap.L().Info("reverse geocoded", zap.Int("records", len(records)), zap.Int("found", found))
		return nil
	},
}

// recordCoords reads a point from "coords" ("(lat, lon)") or from
// latitude/longitude (lat/lon) numbers.
func recordCoords(rec map[string]any) (lat, lon float64, ok bool) {
	if s, isStr := rec["coords"].(string); isStr {
		if lat, lon, ok := geocode.ParseCoords(s); ok {
			return lat, lon, true
		}
	}
	for _, keys := range [][2]string{{"latitude", "longitude"}, {"lat", "lon"}} {
		la, okLat := rec[keys[0]].(float64)
		lo, okLon := rec[keys[1]].(float64)
		if okLat && okLon {
			return la, lo, true
		}
	}
	return 0, 0, false
}

var geocodeNearCmd = &cobra.Command{
	Use:   "near",
	Short: "Geocode the \"schools near\" reference list",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		gc, st, err := newGeocoder(ctx)
		if err != nil {
			return err
		}
		defer closeStore(st)

		near, err := readNearList(ctx, geocodeIn)
		if err != nil {
			return err
		}
		queries := make([]string, len(near))
		for i, n := range near {
			queries[i] = geocode.NearQuery(cfg.Geocode.City, n.District, n.Name)
		}
		results, err := gc.BatchGeocode(ctx, queries)
		if err != nil {
			return err
		}
		matched := 0
		for i := range near {
			if !results[i].Matched {
				continue
			}
			lat, lon := results[i].Latitude, results[i].Longitude
			near[i].Lat, near[i].Lon = &lat, &lon
			matched++
		}
		if err := fetcher.WriteJSON(geocodeOut, near); err != nil {
			return err
		}
		zap.L().Info("geocoded near list", zap.Int("records", len(near)), zap.Int("matched", matched))
		return nil
	},
}

// readNearList reads the near reference list from JSON, or from a CSV with
// district, school, street and houses columns. A CSV lists one street per
// row, so schools are collapsed to their first row and numbered from 1.
func readNearList(ctx context.Context, path string) ([]model.NearSchool, error) {
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return readList[model.NearSchool](path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck

	rows, err := fetcher.CollectCSV(ctx, f, fetcher.CSVOptions{SkipHeader: true, TrimSpace: true, LazyQuotes: true})
	if err != nil {
		return nil, err
	}
	return nearFromRows(rows), nil
}

func nearFromRows(rows [][]string) []model.NearSchool {
	seen := make(map[[2]string]bool)
	var out []model.NearSchool
	for _, row := range rows {
		if len(row) < 2 || row[1] == "" {
			continue
		}
		key := [2]string{row[0], row[1]}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, model.NearSchool{
			ID:       model.FlexID(strconv.Itoa(len(out) + 1)),
			District: row[0],
			Name:     row[1],
		})
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func init() {
	geocodeForwardCmd.Flags().StringVar(&geocodeQuery, "query", "", "geocode a single address and print the result")
	for _, c := range []*cobra.Command{geocodeForwardCmd, geocodeReverseCmd, geocodeNearCmd} {
		c.Flags().StringVar(&geocodeIn, "in", "", "input JSON file (near also accepts CSV)")
		c.Flags().StringVar(&geocodeOut, "out", "", "output JSON file")
	}
	_ = geocodeNearCmd.MarkFlagRequired("in")
	_ = geocodeNearCmd.MarkFlagRequired("out")
	geocodeReverseCmd.Flags().Float64Var(&reverseLat, "lat", 0, "latitude")
	geocodeReverseCmd.Flags().Float64Var(&reverseLon, "lon", 0, "longitude")

	geocodeCmd.AddCommand(geocodeForwardCmd, geocodeReverseCmd, geocodeNearCmd)
	rootCmd.AddCommand(geocodeCmd)
}
