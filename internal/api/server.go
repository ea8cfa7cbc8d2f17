// Package api exposes the HTTP surface: borrower applications, lender and
// policy management, and match retrieval. Writes enqueue recompute events;
// reads serve the persisted match sets.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-credit/kestrel/internal/domain"
	"github.com/opensource-credit/kestrel/internal/matcher"
	"github.com/opensource-credit/kestrel/internal/metrics"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server. collector may be nil, in which case
// the /metrics endpoint is not mounted.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, svc *matcher.Service, collector *metrics.Collector, version string) *Server {
	handler := NewHandler(repo, cache, bus, svc, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	if collector != nil {
		router.Method(http.MethodGet, "/metrics", collector.Handler())
	}

	// Borrower side
	router.Post("/borrowers/apply", handler.ApplyBorrower)
	router.Get("/borrowers/{id}", handler.GetBorrower)
	router.Get("/borrowers/{id}/matches", handler.GetBorrowerMatches)

	// Lender side
	router.Post("/lenders", handler.CreateLender)
	router.Get("/lenders/{id}", handler.GetLender)
	router.Put("/lenders/{id}/policy", handler.UpdatePolicy)
	router.Get("/lenders/{id}/policy", handler.GetActivePolicy)
	router.Get("/lenders/{id}/policy/history", handler.GetPolicyHistory)
	router.Get("/lenders/{id}/matches", handler.GetLenderMatches)

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
