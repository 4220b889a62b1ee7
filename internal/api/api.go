// Package api serves the processed dataset, cities and run log over an
// HTTP JSON API, and optionally triggers combine runs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/placesync/internal/model"
	"github.com/sells-group/placesync/internal/pipeline"
	"github.com/sells-group/placesync/internal/store"
)

const (
	defaultRadiusMeters = 1000
	maxRadiusMeters     = 50000
)

// Combiner runs combine passes. *pipeline.Pipeline implements it.
type Combiner interface {
	Combine(ctx context.Context, opts pipeline.CombineOpts) (*model.Run, error)
}

// Server handles API requests against a store.
type Server struct {
	store    store.Store
	gatherer prometheus.Gatherer
	combiner Combiner
	log      *zap.Logger

	// combining serializes combine runs; the processed collection has a
	// single writer.
	combining sync.Mutex
}

// Option configures the server.
type Option func(*Server)

// WithCombiner mounts POST /runs/combine.
func WithCombiner(c Combiner) Option {
	return func(s *Server) {
		s.combiner = c
	}
}

// NewServer creates a Server. gatherer backs /metrics.
func NewServer(st store.Store, gatherer prometheus.Gatherer, opts ...Option) *Server {
	s := &Server{
		store:    st,
		gatherer: gatherer,
		log:      zap.L().With(zap.String("component", "api")),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router returns the HTTP handler with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Get("/places", s.places)
	r.Get("/places/near", s.nearPlaces)
	r.Get("/cities", s.cities)
	r.Get("/runs", s.runs)
	if s.combiner != nil {
		r.Post("/runs/combine", s.combine)
	}
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) places(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	places, err := s.store.QueryPlaces(r.Context(), store.Filter{
		CitySlug: q.Get("city_slug"),
		Category: q.Get("category"),
	})
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(places))
}

func (s *Server) nearPlaces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := floatParam(q.Get("lat"), -90, 90)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lat: "+err.Error())
		return
	}
	lng, err := floatParam(q.Get("lng"), -180, 180)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lng: "+err.Error())
		return
	}
	radius := float64(defaultRadiusMeters)
	if v := q.Get("radius_m"); v != "" {
		if radius, err = floatParam(v, 1, maxRadiusMeters); err != nil {
			writeError(w, http.StatusBadRequest, "radius_m: "+err.Error())
			return
		}
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit: "+err.Error())
		return
	}

	places, err := s.store.NearPlaces(r.Context(), lat, lng, radius, limit)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(places))
}

func (s *Server) cities(w http.ResponseWriter, r *http.Request) {
	cities, err := s.store.ListCities(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(cities))
}

func (s *Server) runs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit: "+err.Error())
		return
	}
	runs, err := s.store.ListRuns(r.Context(), store.RunFilter{
		Kind:  model.RunKind(q.Get("kind")),
		State: model.RunState(q.Get("state")),
		Limit: limit,
	})
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(runs))
}

type combineRequest struct {
	CitySlug string `json:"city_slug"`
	Category string `json:"category"`
}

// combine runs an incremental combine pass. Full replaces stay on the CLI.
func (s *Server) combine(w http.ResponseWriter, r *http.Request) {
	var req combineRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	if !s.combining.TryLock() {
		writeError(w, http.StatusConflict, "a combine run is already in progress")
		return
	}
	defer s.combining.Unlock()

	// The run finishes even if the client goes away.
	run, err := s.combiner.Combine(context.WithoutCancel(r.Context()), pipeline.CombineOpts{
		CitySlug: req.CitySlug,
		Category: req.Category,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, run)
	case errors.Is(err, pipeline.ErrCityNotFound):
		writeError(w, http.StatusNotFound, "city not found: "+req.CitySlug)
	case errors.Is(err, store.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		s.log.Error("combine run failed", zap.Error(err))
		if run != nil {
			writeJSON(w, http.StatusInternalServerError, run)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	s.log.Error("store query failed", zap.Error(err))
	if errors.Is(err, store.ErrStoreUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

var (
	errRequired   = errors.New("required")
	errNotNumber  = errors.New("not a number")
	errOutOfRange = errors.New("out of range")
)

func floatParam(v string, lo, hi float64) (float64, error) {
	if v == "" {
		return 0, errRequired
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errNotNumber
	}
	if math.IsNaN(f) || f < lo || f > hi {
		return 0, errOutOfRange
	}
	return f, nil
}

// intParam parses an optional non-negative integer; empty is zero.
func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errNotNumber
	}
	if n < 0 {
		return 0, errOutOfRange
	}
	return n, nil
}
