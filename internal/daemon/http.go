package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/matheus3301/lawdesk/internal/config"
	"github.com/matheus3301/lawdesk/internal/metrics"
	"github.com/matheus3301/lawdesk/internal/status"
)

// HTTPServer serves health and metrics endpoints.
type HTTPServer struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewHTTPServer returns nil when no metrics address is configured.
func NewHTTPServer(cfg *config.Config, health *status.Machine, m *metrics.Metrics, logger *zap.Logger) *HTTPServer {
	if cfg.Server.MetricsAddr == "" {
		return nil
	}
	return &HTTPServer{
		srv: &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           newRouter(health, m),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func newRouter(health *status.Machine, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	// Liveness: the process answers.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	// Readiness: the store answers, or is deliberately absent.
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		st := health.Current()
		code := http.StatusOK
		if st != status.Online && st != status.NotConfigured {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]string{
			"store": string(st),
			"since": health.Since().UTC().Format(time.RFC3339),
		})
	})
	r.Handle("/metrics", m.Handler())
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Start listens and serves. Blocks until stopped.
func (h *HTTPServer) Start() error {
	h.logger.Info("HTTP server starting", zap.String("addr", h.srv.Addr))
	return h.srv.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (h *HTTPServer) Stop(ctx context.Context) error {
	return h.srv.Shutdown(ctx)
}
