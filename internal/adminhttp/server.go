// Package adminhttp exposes a read-only JSON status surface over a
// storage engine instance: buffer pool occupancy and per-table
// statistics. It never accepts a write — engine mutation happens only
// through the programmatic surface or the debug shell.
package adminhttp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"txcore/stats"
	"txcore/storage"
)

// Server is a thin read-only status surface over a BufferPool and its
// stats registry.
type Server struct {
	router   *chi.Mux
	bp       *storage.BufferPool
	registry *stats.Registry
}

// New builds a Server ready to be passed to http.ListenAndServe.
func New(bp *storage.BufferPool, registry *stats.Registry) *Server {
	s := &Server{router: chi.NewRouter(), bp: bp, registry: registry}
	s.router.Get("/_health", s.handleHealth)
	s.router.Get("/_pool", s.handlePool)
	s.router.Route("/{table}", func(r chi.Router) {
		r.Get("/_stats", s.handleTableStats)
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.bp.Snapshot())
}

func (s *Server) handleTableStats(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	st, ok := s.registry.Get(table)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no stats computed for table " + table})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table":              table,
		"estimateScanCost":   st.EstimateScanCost(),
		"estimateCardinality": st.EstimateTableCardinality(1.0),
	})
}
