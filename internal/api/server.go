// Package api serves the decisioning HTTP API.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-finance/kestrel/internal/auth"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// Dependencies are the components the API serves. Repository, Cache and
// Metrics may be nil.
type Dependencies struct {
	Service       *scoring.Service
	Authenticator *auth.Authenticator
	Users         UserManager
	Repository    domain.Repository
	Cache         domain.Cache
	Metrics       http.Handler
}

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, deps Dependencies, version string) *Server {
	handler := NewHandler(deps, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Probes
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics)
	}

	router.Get("/vocabulary", handler.Vocabulary)

	router.Post("/auth/verify", handler.VerifyCredentials)

	// Decisioning
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(deps.Authenticator, domain.RoleOfficer, domain.RoleAdmin))
		r.Post("/decisions", handler.Decide)
		r.Post("/decisions/async", handler.SubmitDecision)
		r.Get("/decisions/{id}", handler.GetDecision)
	})

	// Officer actions
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(deps.Authenticator, domain.RoleOfficer))
		r.Post("/decisions/{id}/override", handler.OverrideDecision)
	})

	// Administration
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(deps.Authenticator, domain.RoleAdmin))
		r.Get("/users", handler.ListUsers)
		r.Post("/users", handler.CreateUser)
		r.Delete("/users/{username}", handler.DeleteUser)
		r.Get("/audit", handler.ListAudit)
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
