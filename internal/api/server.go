// Package api serves the scoring engine and its catalogs over HTTP.
package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/iwmi/leaf-dss/internal/dataset"
	"github.com/iwmi/leaf-dss/internal/display"
	"github.com/iwmi/leaf-dss/internal/metrics"
)

// Options configures a Server.
type Options struct {
	Display    *display.Config
	GPDistrict string
	// RateLimit is the scoring request rate per second; 0 disables limiting.
	RateLimit      float64
	AllowedOrigins []string
}

// Server holds the handlers' dependencies.
type Server struct {
	data       *dataset.Cache
	display    *display.Config
	gpDistrict string
	origins    []string
	limiter    *rate.Limiter
}

// New creates a Server over a dataset cache.
func New(data *dataset.Cache, opts Options) *Server {
	s := &Server{
		data:       data,
		display:    opts.Display,
		gpDistrict: opts.GPDistrict,
		origins:    opts.AllowedOrigins,
	}
	if opts.RateLimit > 0 {
		burst := max(int(opts.RateLimit), 1)
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	return s
}

// Routes wires middlewares and endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Get("/", s.handleIndex(r))
		api.Get("/config", s.handleConfig)
		api.Get("/levels", s.handleLevels)

		api.Get("/blocks", s.handleBlocks)
		api.Get("/blocks/geojson", s.handleBlocks)
		api.Get("/blocks/statistics", s.handleBlockStatistics)
		api.Get("/statistics", s.handleBlockStatistics)
		api.Get("/blocks/by-name/{name}", s.handleBlockByName)
		api.Get("/blocks/{id}", s.handleBlockByID)
		api.Get("/block/names", s.handleBlockNames)

		api.Get("/districts", s.handleDistricts)
		api.Get("/district/names", s.handleDistricts)
		api.Get("/districts/{district}/blocks", s.handleDistrictBlocks)
		api.Get("/locations", s.handleLocations)

		api.Get("/interventions", s.handleInterventions)
		api.Get("/intervention/{name}/config", s.handleInterventionConfig)
		api.Get("/variables", s.handleBlockVariables)
		api.Get("/variable-groups", s.handleVariableGroups)
		api.Get("/variable-stats/{variable}", s.handleVariableStats)

		api.Get("/gp", s.handleGPs)
		api.Get("/gp/geojson", s.handleGPs)
		api.Get("/gp/names", s.handleGPNames)
		api.Get("/gp/locations", s.handleGPLocations)
		api.Get("/gp/variables", s.handleGPVariables)
		api.Get("/gp/statistics", s.handleGPStatistics)
		api.Get("/gp/block/{block}", s.handleGPsInBlock)
		api.Get("/gp/by-name/{name}", s.handleGPByName)
		api.Get("/gp/{id}", s.handleGPByID)

		api.Group(func(limited chi.Router) {
			limited.Use(s.rateLimit)
			limited.Post("/calculate-feasibility", s.handleBlockFeasibility)
			limited.Post("/gp/calculate-feasibility", s.handleGPFeasibility)
			limited.Post("/export/csv", s.handleExportCSV)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Endpoint not found", "path": r.URL.Path})
	})
	return r
}

// rateLimit rejects requests beyond the configured scoring rate.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// instrument counts requests by route pattern and status code.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}
