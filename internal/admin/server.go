// Package admin serves operational endpoints (Prometheus metrics and a
// health probe) on a side port, separate from the stream data port.
package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"video-streamer/internal/platform/logger"
	"video-streamer/internal/platform/metrics"
)

// Server wraps the admin HTTP server.
type Server struct {
	srv *http.Server
	log *slog.Logger
}

// New builds the admin server listening on the given port.
func New(port string, log *slog.Logger, m *metrics.Metrics) *Server {
	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(m))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/metrics", m.Handler().ServeHTTP)

	return &Server{
		srv: &http.Server{Addr: ":" + port, Handler: r},
		log: log,
	}
}

// Start runs the server in the background. A listen failure is logged but
// does not take the relay down; the data path matters more than the metrics
// endpoint.
func (s *Server) Start() {
	go func() {
		s.log.Info("admin server starting", slog.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("admin server error", slog.String("error", err.Error()))
		}
	}()
}

// Shutdown drains the admin server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
