// Package httpapi exposes a read-only HTTP monitoring surface over
// cluster state, separate from the TCP wire protocol clients use to
// submit and query jobs.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/hochfrequenz/taskcluster/internal/protocol"
)

// StatsFunc returns a current snapshot of cluster state.
type StatsFunc func() protocol.Stats

// Server serves /stats and /healthz over plain HTTP.
type Server struct {
	addr  string
	stats StatsFunc
	mux   *http.ServeMux
}

// NewServer builds an httpapi.Server listening on addr.
func NewServer(addr string, stats StatsFunc) *Server {
	s := &Server{addr: addr, stats: stats, mux: http.NewServeMux()}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/stats", s.statsHandler())
	s.mux.HandleFunc("/healthz", s.healthzHandler())
}

// ListenAndServe blocks serving HTTP until an error occurs.
func (s *Server) ListenAndServe() error {
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler returns the server's http.Handler, useful for tests.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) statsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.stats())
	}
}

func (s *Server) healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
