package api

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/lattice-run/lattice-host/pkg/host"
	"github.com/lattice-run/lattice-host/pkg/metrics"
)

// Server exposes the host's control-plane HTTP surface: liveness,
// readiness, and Prometheus metrics. It carries no business logic of
// its own — everything it reports is read from the wrapped Host.
type Server struct {
	h     *host.Host
	mux   *http.ServeMux
	ready atomic.Bool
}

// NewServer creates a control-plane HTTP server over h. Readiness
// starts false; call SetReady(true) once a manifest (if any) has been
// applied successfully.
func NewServer(h *host.Host) *Server {
	s := &Server{h: h, mux: http.NewServeMux()}
	s.mux.HandleFunc("/healthz", s.healthHandler)
	s.mux.HandleFunc("/readyz", s.readyHandler)
	s.mux.Handle("/metrics", metrics.Handler())
	return s
}

// SetReady flips the /readyz verdict.
func (s *Server) SetReady(ready bool) { s.ready.Store(ready) }

// Start serves the control plane on addr; it blocks until the server
// stops or fails.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv.ListenAndServe()
}

// GetHandler returns the HTTP handler for embedding in another server.
func (s *Server) GetHandler() http.Handler {
	return s.mux
}

type livenessResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

// healthHandler is a pure liveness check: 200 as long as the process
// can answer HTTP at all.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(livenessResponse{Status: "alive", Time: time.Now()})
}

type readinessResponse struct {
	Status       string    `json:"status"`
	Time         time.Time `json:"time"`
	ActorCount   int       `json:"actor_count"`
	CapCount     int       `json:"capability_count"`
	BindingCount int       `json:"binding_count"`
}

// readyHandler reports 200 once the host is ready to accept
// add_actor/bind_actor traffic, and 503 beforehand (e.g. while a
// startup manifest is still being applied).
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := readinessResponse{
		Time:         time.Now(),
		ActorCount:   len(s.h.Actors()),
		CapCount:     len(s.h.Capabilities()),
		BindingCount: len(s.h.Registry().Bindings()),
	}
	status := http.StatusServiceUnavailable
	resp.Status = "not ready"
	if s.ready.Load() {
		status = http.StatusOK
		resp.Status = "ready"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
