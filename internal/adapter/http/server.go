// Package http serves the dashboard: the tabbed index page, JSON and GeoJSON
// APIs, rendered maps and charts, and the health and metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/observability"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/render"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/spatial"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Dashboard is the query side the handlers read from.
// It is implemented by pipeline.Pipeline.
type Dashboard interface {
	ReadinessChecker
	Summary(department string) (domain.Summary, error)
	DepartmentCounts(top int) ([]domain.DepartmentCount, error)
	Departments() ([]string, error)
	Hospitals(department string, limit int) ([]domain.Hospital, error)
	Districts() ([]domain.District, error)
	DistrictStats() (spatial.Stats, error)
	TopDistricts(n int) (spatial.Ranking, error)
	Proximity(ctx context.Context, department string, radius float64) (*spatial.ProximityResult, error)
	Compare(ctx context.Context, departments []string, radius float64) ([]spatial.Comparison, error)
	StageStatus() map[string]string
	LoadedAt() time.Time
}

// Options tunes the dashboard defaults.
type Options struct {
	Addr                 string
	MarkerLimit          int
	Radius               float64
	ProximityDepartments []string
	CacheTTL             time.Duration
	RequestTimeout       time.Duration
}

// Server exposes the dashboard over HTTP.
type Server struct {
	httpServer *http.Server
	dash       Dashboard
	opts       Options
	cache      *render.Cache
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewServer creates the dashboard server and registers every route.
func NewServer(opts Options, dash Dashboard, logger *slog.Logger, metrics *observability.Metrics) *Server {
	if opts.MarkerLimit <= 0 {
		opts.MarkerLimit = render.DefaultMarkerLimit
	}
	if opts.Radius <= 0 {
		opts.Radius = spatial.DefaultRadius
	}
	if len(opts.ProximityDepartments) == 0 {
		opts.ProximityDepartments = []string{"LIMA", "LORETO"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	s := &Server{
		dash:    dash,
		opts:    opts,
		cache:   render.NewCache(opts.CacheTTL, metrics),
		logger:  logger,
		metrics: metrics,
	}
	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: opts.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", handleReady(s.dash))
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", s.handleIndex)

	r.Route("/api", func(r chi.Router) {
		r.Get("/summary", s.handleSummary)
		r.Get("/departments", s.handleDepartments)
		r.Get("/departments/counts", s.handleDepartmentCounts)
		r.Get("/hospitals", s.handleHospitals)
		r.Get("/hospitals.geojson", s.handleHospitalsGeoJSON)
		r.Get("/districts.geojson", s.handleDistrictsGeoJSON)
		r.Get("/districts/stats", s.handleDistrictStats)
		r.Get("/districts/top", s.handleTopDistricts)
		r.Get("/proximity/compare", s.handleCompare)
		r.Get("/proximity/{department}", s.handleProximity)
		r.Get("/proximity/{department}/{kind}.geojson", s.handleProximityGeoJSON)
	})

	r.Get("/maps/choropleth.png", s.handleDistrictMap("choropleth", render.Choropleth))
	r.Get("/maps/zero.png", s.handleDistrictMap("zero", render.ZeroHospitalsMap))
	r.Get("/maps/top10.png", s.handleDistrictMap("top10", render.Top10Map))
	r.Get("/charts/departments.png", s.handleDepartmentChart)
	r.Get("/maps/national.html", s.handleNationalMap)
	r.Get("/maps/proximity/{department}/{kind}.html", s.handleProximityMap)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, codeNotFound, "no route for "+r.URL.Path)
	})
	return r
}

// instrument logs every request and records it by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.metrics.HTTPRequestSeconds.WithLabelValues(route).Observe(elapsed.Seconds())
		s.logger.Debug("http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed,
		)
	})
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}
