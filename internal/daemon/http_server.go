package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mlwx/fetchpub/internal/logfields"
	"github.com/mlwx/fetchpub/internal/pipeline"
)

// AdminServer exposes the daemon's operational surface: health, metrics,
// manual trigger, run history and a human-readable status page.
type AdminServer struct {
	daemon *Daemon
	srv    *http.Server
}

// NewAdminServer builds the admin HTTP server on the given address.
func NewAdminServer(addr string, d *Daemon) *AdminServer {
	mux := http.NewServeMux()
	s := &AdminServer{daemon: d}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /trigger", s.handleTrigger)
	mux.HandleFunc("GET /runs", s.handleRuns)
	mux.HandleFunc("GET /{$}", s.handleStatusPage)
	if d.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Serve runs the listener until Shutdown or failure.
func (s *AdminServer) Serve(_ context.Context) error {
	slog.Info("Admin HTTP server listening", slog.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener gracefully.
func (s *AdminServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *AdminServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := s.daemon.PerformHealthChecks()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if health.Status == HealthStatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	writeJSON(w, health)
}

// handleTrigger starts a manual run. Admission happens synchronously so the
// response is truthful; the admitted run itself is detached from the request,
// so a closed connection cannot cancel a publish in progress.
func (s *AdminServer) handleTrigger(w http.ResponseWriter, _ *http.Request) {
	if err := s.daemon.TriggerRunAsync(pipeline.TriggerManual); err != nil {
		w.WriteHeader(http.StatusConflict)
		writeJSON(w, map[string]string{"error": err.Error()})
		return
	}

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "accepted"})
}

func (s *AdminServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	runs, err := s.daemon.journal.Recent(r.Context(), limit)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, runs)
}

func (s *AdminServer) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	page, err := s.daemon.RenderStatusPage(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", logfields.Error(err))
	}
}
