// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/nmped/nmschooldata/internal/config"
	"github.com/nmped/nmschooldata/internal/handlers"
	"github.com/nmped/nmschooldata/internal/metrics"
	"github.com/nmped/nmschooldata/internal/middleware"
	"github.com/nmped/nmschooldata/internal/ratelimit"
	"github.com/nmped/nmschooldata/pkg/logger"
)

// Server represents the HTTP server.
type Server struct {
	cfg               *config.Config
	log               *logger.Logger
	httpServer        *http.Server
	healthHandler     *handlers.HealthHandler
	enrollmentHandler *handlers.EnrollmentHandler
	docsHandler       *handlers.DocsHandler
	rateLimiter       ratelimit.Limiter
	listener          net.Listener
	running           bool
	mu                sync.RWMutex
}

// New creates a new Server instance.
func New(cfg *config.Config, log *logger.Logger) *Server {
	s := &Server{
		cfg:           cfg,
		log:           log,
		healthHandler: handlers.NewHealthHandler(),
		docsHandler:   handlers.NewDocsHandler(),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := s.buildMiddlewareChain(mux)

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// buildMiddlewareChain creates the middleware chain for the server.
func (s *Server) buildMiddlewareChain(handler http.Handler) http.Handler {
	chain := middleware.New(
		middleware.Metrics(),
		middleware.RequestID(),
		middleware.ClientIP(s.cfg.Rate.TrustProxy),
	)

	if s.cfg.Rate.Enabled {
		s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.Config{
			Requests: s.cfg.Rate.Requests,
			Window:   s.cfg.Rate.Window,
		})

		chain = chain.Append(middleware.RateLimit(s.rateLimiter))

		s.log.Info("rate limiting enabled",
			"requests", s.cfg.Rate.Requests,
			"window", s.cfg.Rate.Window.String(),
		)
	}

	return chain.Then(handler)
}

// registerRoutes sets up the HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Health check routes
	mux.HandleFunc("GET /health", s.healthHandler.Health)
	mux.HandleFunc("GET /ready", s.healthHandler.Ready)

	// Metrics endpoint for Prometheus
	mux.Handle("GET /metrics", metrics.Handler())

	// API documentation routes
	mux.HandleFunc("GET /docs", s.docsHandler.UI)
	mux.HandleFunc("GET /docs/", s.docsHandler.UI)
	mux.HandleFunc("GET /docs/openapi.yaml", s.docsHandler.OpenAPISpec)

	// API v1 routes
	mux.HandleFunc("GET /api/v1/years", s.handleGetYears)
	mux.HandleFunc("GET /api/v1/enrollment/{year}", s.handleGetEnrollment)
}

// handleGetYears routes to the enrollment handler for year listing.
func (s *Server) handleGetYears(w http.ResponseWriter, r *http.Request) {
	if s.enrollmentHandler == nil {
		http.Error(w, "enrollment service not configured", http.StatusServiceUnavailable)
		return
	}
	s.enrollmentHandler.GetYears(w, r)
}

// handleGetEnrollment routes to the enrollment handler for a year's records.
func (s *Server) handleGetEnrollment(w http.ResponseWriter, r *http.Request) {
	if s.enrollmentHandler == nil {
		http.Error(w, "enrollment service not configured", http.StatusServiceUnavailable)
		return
	}
	s.enrollmentHandler.GetEnrollment(w, r, r.PathValue("year"))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := s.cfg.Server.Address()

	// Create listener first to get the actual address (important when port is 0)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	actualAddr := listener.Addr().String()
	s.log.Info("server starting", "address", actualAddr)

	err = s.httpServer.Serve(listener)
	if err != nil && err != http.ErrServerClosed {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("server shutting down")

	// Mark as not ready during shutdown
	s.healthHandler.SetReady(false)

	err := s.httpServer.Shutdown(ctx)

	if s.rateLimiter != nil {
		if closeErr := s.rateLimiter.Close(); closeErr != nil {
			s.log.Error("failed to close rate limiter", "error", closeErr.Error())
		}
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if err != nil {
		s.log.Error("shutdown error", "error", err.Error())
		return err
	}

	s.log.Info("server stopped")
	return nil
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// HealthHandler returns the health handler.
func (s *Server) HealthHandler() *handlers.HealthHandler {
	return s.healthHandler
}

// SetEnrollmentHandler sets the enrollment handler for the server.
func (s *Server) SetEnrollmentHandler(h *handlers.EnrollmentHandler) {
	s.enrollmentHandler = h
}
