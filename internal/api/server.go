// Package api provides the HTTP API server and handlers for the Shelfmate application.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shelfmate/shelfmate-server/internal/service"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping() error
}

// CircuitReporter reports the state of an upstream circuit breaker.
type CircuitReporter interface {
	CircuitOpen() bool
}

// Services groups the business services the handlers call.
type Services struct {
	Recommendation *service.RecommendationService
	Quota          *service.QuotaService
}

// Options tunes the HTTP surface.
type Options struct {
	Version           string
	RequestsPerMinute int // per client IP, 0 disables
	CORSOrigins       []string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	db        Pinger
	generator CircuitReporter
	services  *Services
	router    *chi.Mux
	api       huma.API
	logger    *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(db Pinger, generator CircuitReporter, services *Services, opts Options, logger *slog.Logger) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		db:        db,
		generator: generator,
		services:  services,
		router:    chi.NewRouter(),
		logger:    logger,
	}

	s.setupMiddleware(opts)

	humaConfig := huma.DefaultConfig("Shelfmate API", opts.Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"gateway": {
			Type: "apiKey",
			In:   "header",
			Name: UserIDHeader,
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(opts Options) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", UserIDHeader},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	if opts.RequestsPerMinute > 0 {
		s.router.Use(httprate.LimitByIP(opts.RequestsPerMinute, time.Minute))
	}

	s.router.Use(metricsMiddleware)
	s.router.Use(identityMiddleware)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.registerHealthRoutes()
	s.registerRecommendationRoutes()
}
