package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"apexintel/internal/core/app"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ObservabilityServer serves Prometheus metrics and a health endpoint,
// plus read-only symbol graph queries for poking at a running backend.
type ObservabilityServer struct {
	addr          string
	app           *app.App
	healthService *app.HealthService
	server        *http.Server
}

func NewObservabilityServer(addr string, a *app.App, healthService *app.HealthService) *ObservabilityServer {
	return &ObservabilityServer{
		addr:          addr,
		app:           a,
		healthService: healthService,
	}
}

func (s *ObservabilityServer) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := s.healthService.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if status.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(status)
	})

	mux.HandleFunc("/symbols/lookup", s.handleLookup)
	mux.HandleFunc("/symbols/usages", s.handleUsages)
	mux.HandleFunc("/symbols/subtypes", s.handleSubtypes)

	return mux
}

func (s *ObservabilityServer) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.routes(),
	}

	slog.Info("observability server starting", "addr", s.addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("observability server failed", "error", err)
		}
	}()

	return nil
}

func (s *ObservabilityServer) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *ObservabilityServer) handleLookup(w http.ResponseWriter, r *http.Request) {
	name, ok := symbolName(w, r)
	if !ok {
		return
	}
	syms := s.app.Query(name)
	if len(syms) == 0 {
		http.Error(w, "symbol not found", http.StatusNotFound)
		return
	}
	writeJSON(w, syms)
}

func (s *ObservabilityServer) handleUsages(w http.ResponseWriter, r *http.Request) {
	name, ok := symbolName(w, r)
	if !ok {
		return
	}
	writeJSON(w, s.app.Usages(name))
}

func (s *ObservabilityServer) handleSubtypes(w http.ResponseWriter, r *http.Request) {
	name, ok := symbolName(w, r)
	if !ok {
		return
	}
	writeJSON(w, s.app.Subtypes(name))
}

func symbolName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing name parameter", http.StatusBadRequest)
		return "", false
	}
	return name, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode query response", "error", err)
	}
}
