package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
)

// RunStatus reports on a pipeline's completed runs.
type RunStatus interface {
	sharedobs.ReadinessChecker
	Name() string
	LastRun() (domain.RunSummary, bool)
}

// Server exposes health, readiness, run status and metrics endpoints for a
// pipeline process.
type Server struct {
	httpServer *http.Server
	status     RunStatus
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /runs/latest and
// /metrics routes. Readiness reports ready once the pipeline has completed a
// run; /runs/latest returns that run's summary.
func NewServer(addr string, status RunStatus, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		status: status,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(status))
	mux.HandleFunc("GET /runs/latest", s.handleLastRun)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

type runResponse struct {
	domain.RunSummary
	CompletedAt time.Time `json:"completed_at"`
	DurationS   float64   `json:"duration_seconds"`
}

func (s *Server) handleLastRun(w http.ResponseWriter, _ *http.Request) {
	sum, ok := s.status.LastRun()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"pipeline": s.status.Name(),
			"error":    "no completed run yet",
		})
		return
	}
	writeJSON(w, http.StatusOK, runResponse{
		RunSummary:  sum,
		CompletedAt: sum.StartedAt.Add(sum.Duration).UTC(),
		DurationS:   sum.Duration.Seconds(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort status response
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
