// Package server exposes the team over HTTP: streaming chat, approval
// resume, thread state inspection and Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teamh-ai/teamh/pkg/config"
	"github.com/teamh-ai/teamh/pkg/team"
)

// Server is the HTTP gateway in front of one assembled team.
type Server struct {
	cfg     *config.Config
	team    *team.Team
	version string

	httpServer *http.Server
}

func NewServer(cfg *config.Config, tm *team.Team, version string) *Server {
	s := &Server{
		cfg:     cfg,
		team:    tm,
		version: version,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(metricsMiddleware)
	r.Use(corsMiddleware(s.cfg.Server.CORS))

	r.Get("/", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/chat/stream", s.handleChatStream)
	r.Post("/chat/resume", s.handleChatResume)
	r.Get("/state/{thread_id}", s.handleGetState)

	return r
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := time.Duration(s.cfg.Server.ShutdownTimeout) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	slog.Info("Shutting down HTTP server", "timeout", timeout)
	return s.httpServer.Shutdown(ctx)
}
