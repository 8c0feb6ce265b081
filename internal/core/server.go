// Package core provides the HTTP chassis for the SEOPilot connector: a chi
// router with the cross-cutting middleware chain (recovery, request IDs,
// timeouts, logging, site authentication) applied before requests reach
// domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"seopilot/internal/config"
)

// RouteRegistrar mounts one handler group onto the v1 router. Populated by
// the application entry point; the indirection avoids import cycles between
// core and the handler packages.
type RouteRegistrar func(chi.Router)

// Server wires configuration, the validator, and the middleware chain
// around a chi router.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// SiteKeys authenticates plugin requests. Nil disables site-key
	// checks (local development only).
	SiteKeys SiteKeyVerifier

	// V1Routes is consulted by MountRoutes; register before mounting.
	V1Routes []RouteRegistrar

	router *chi.Mux
}

func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(),
		router:    chi.NewRouter(),
	}, nil
}

// MountRoutes registers the global middleware chain, the v1 route groups,
// and the health endpoint. Middleware order matters: recovery outermost,
// then deadline, correlation ID, logging, and finally authentication.
func (s *Server) MountRoutes() {
	s.router.Use(Recoverer(s.Logger))
	s.router.Use(ContextTimeoutMiddleware(defaultRequestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(SiteAuthMiddleware(s.SiteKeys))

	s.router.Route("/v1", func(r chi.Router) {
		for _, registrar := range s.V1Routes {
			registrar(r)
		}
	})

	s.router.Get("/health", s.HandleHealth)
}

// Handler returns the router as an http.Handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// HandleHealth reports liveness plus build identity. It does not probe the
// backend: the connector is healthy when it can serve, even while the
// backend is down.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]any{
		"status":  "ok",
		"service": s.Config.Service,
		"version": s.Config.Build.Version,
		"commit":  s.Config.Build.Commit,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}})
}

// Shutdown flushes server-held resources. Database pools are owned and
// closed by the entry point.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown complete",
		slog.String("service", s.Config.Service))
	return nil
}
