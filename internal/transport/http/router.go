package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"keywarden/internal/config"
	apperrors "keywarden/internal/errors"
	"keywarden/internal/middleware"
	"keywarden/internal/store"
)

// Server is the validation API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer assembles the router and middleware chain. The access
// logger wraps authentication so rejected requests are still audited.
func NewServer(cfg config.APIConfig, service LicenseValidator, admin *store.Admin, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "api"))

	handler := NewValidateHandler(service, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	if cfg.RateLimit.Enabled {
		rl := middleware.NewRateLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window, logger)
		r.Use(rl.Handler)
	}

	r.Get("/health", HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.AccessLogger(admin, logger))
		r.Use(middleware.APIKeyAuth(admin, logger))

		r.Post("/api/validate", handler.Validate)
		r.Post("/api/validate/batch", handler.ValidateBatch)
		r.Get("/api/license/{key}", handler.GetLicense)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		render.Render(w, req, apperrors.ErrEndpointNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		render.Render(w, req, apperrors.ErrEndpointNotFound)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		logger: logger,
	}
}

// Handler exposes the assembled router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe runs the server until it fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("api server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
