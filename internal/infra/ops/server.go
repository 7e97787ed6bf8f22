// Package ops serves the operational HTTP endpoints: probes and metrics.
package ops

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/playreport/api/internal/config"
	"github.com/playreport/api/pkg/logger"
)

// Server is the operational HTTP listener.
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
}

// NewRouter builds the ops routes. gatherer defaults to the global registry.
func NewRouter(health *HealthHandler, gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.CleanPath)
	r.Use(chimw.StripSlashes)

	r.Get("/healthz", health.Health)
	r.Get("/readyz", health.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

// NewServer creates the ops server on cfg's address.
func NewServer(cfg *config.OpsConfig, handler http.Handler, log *logger.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       time.Minute,
		},
		logger: log.With("component", "ops_server"),
	}
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting ops server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start ops server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown ops server: %w", err)
	}
	s.logger.Info("ops server stopped")
	return nil
}
