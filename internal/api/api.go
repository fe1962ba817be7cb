// Package api serves the read-only schools API over the sa schema.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/school-research-cli/internal/store"
)

// Version is reported by GET /.
const Version = "1.0.0"

// Store is the read side of the database used by the API.
type Store interface {
	ListSchools(ctx context.Context) ([]store.SchoolSummary, error)
	SchoolReviews(ctx context.Context, schoolID int, start, end time.Time) (json.RawMessage, error)
	Ping(ctx context.Context) error
}

var (
	defaultStart = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	defaultEnd   = time.Date(2100, 12, 31, 0, 0, 0, 0, time.UTC)
)

// DefaultOrigins are allowed when no CORS origins are configured.
var DefaultOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

// NewRouter builds the HTTP handler.
func NewRouter(st Store, origins []string) http.Handler {
	if len(origins) == 0 {
		origins = DefaultOrigins
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := &handler{store: st}
	r.Get("/", h.root)
	r.Get("/health", h.health)
	r.Get("/schools", h.schools)
	r.Get("/schools/{id}/reviews", h.reviews)
	return r
}

type handler struct {
	store Store
}

func (h *handler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Schools API", "version": Version})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		zap.L().Warn("api: health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) schools(w http.ResponseWriter, r *http.Request) {
	schools, err := h.store.ListSchools(r.Context())
	if err != nil {
		zap.L().Error("api: list schools", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schools": schools})
}

func (h *handler) reviews(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid school id")
		return
	}
	start, ok := parseDate(r.URL.Query().Get("date_start"), defaultStart)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid date_start, expected YYYY-MM-DD")
		return
	}
	end, ok := parseDate(r.URL.Query().Get("date_end"), defaultEnd)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid date_end, expected YYYY-MM-DD")
		return
	}

	reviews, err := h.store.SchoolReviews(r.Context(), id, start, end)
	if err != nil {
		zap.L().Error("api: school reviews", zap.Int("school_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if len(reviews) == 0 {
		reviews = json.RawMessage("[]")
	}
	writeJSON(w, http.StatusOK, map[string]json.RawMessage{"reviews": reviews})
}

func parseDate(s string, def time.Time) (time.Time, bool) {
	if s == "" {
		return def, true
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
