// Package httpapi is the optional debug/inspection HTTP surface described
// in SPEC_FULL.md §2.5: GET /healthz, GET /stats and GET /metrics. It only
// ever observes executors through their public Stats() methods — it never
// reaches into Task Store internals, and it carries no endpoint for
// submitting work, so the core library's "no wire protocol" Non-goal is
// untouched by this package.
package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/dispatchkit/dispatch/core"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PoolStatsProvider is satisfied by *core.PoolExecutor.
type PoolStatsProvider interface {
	Stats() core.PoolStats
}

// RunnerStatsProvider is satisfied by *core.SerialExecutor.
type RunnerStatsProvider interface {
	Stats() core.RunnerStats
}

// Server is a small registry of named executors exposed read-only over
// HTTP, mirroring the config-driven HTTP surface the rest of the retrieval
// pack wires for its own services.
type Server struct {
	mu      sync.RWMutex
	pools   map[string]PoolStatsProvider
	runners map[string]RunnerStatsProvider

	router chi.Router
}

func NewServer(metricsHandler http.Handler) *Server {
	s := &Server{
		pools:   make(map[string]PoolStatsProvider),
		runners: make(map[string]RunnerStatsProvider),
	}
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/stats", s.handleStats)
	r.Handle("/metrics", metricsHandler)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) AddPool(name string, p PoolStatsProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[name] = p
}

func (s *Server) AddRunner(name string, r RunnerStatsProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runners[name] = r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type statsSnapshot struct {
	Pools   map[string]core.PoolStats   `json:"pools"`
	Runners map[string]core.RunnerStats `json:"runners"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	snapshot := statsSnapshot{
		Pools:   make(map[string]core.PoolStats, len(s.pools)),
		Runners: make(map[string]core.RunnerStats, len(s.runners)),
	}
	for name, p := range s.pools {
		snapshot.Pools[name] = p.Stats()
	}
	for name, rn := range s.runners {
		snapshot.Runners[name] = rn.Stats()
	}
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snapshot)
}
