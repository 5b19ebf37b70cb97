package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/metrics"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *metrics.Engine, version string, reportTTL time.Duration) *Server {
	handler := NewHandler(repo, cache, bus, engine, version, reportTTL)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	if cfg.RateLimit > 0 {
		router.Use(RateLimitMiddleware(NewRateLimiter(cfg.RateLimit, cfg.RateBurst)))
	}

	// Health endpoints (no dataset scoping)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (dataset scoped)
	router.Route("/", func(r chi.Router) {
		r.Use(DatasetMiddleware)

		// Measure evaluation
		r.Post("/query", handler.Query)
		r.Get("/measures", handler.Measures)

		// Customer segmentation
		r.Get("/customers/{id}/profile", handler.CustomerProfile)
		r.Get("/customers/segments", handler.CustomerSegments)

		// Snapshot lifecycle
		r.Get("/calendar", handler.Calendar)
		r.Get("/snapshot", handler.Snapshot)
		r.Post("/refresh", handler.Refresh)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
