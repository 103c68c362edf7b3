// Package gateway exposes the bridge's admin HTTP and WebSocket surface:
// health, worker-pool occupancy, task history, and a live event feed for
// dashboards.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dohr-michael/polybridge/internal/events"
	"github.com/dohr-michael/polybridge/internal/gateway/ws"
	"github.com/dohr-michael/polybridge/internal/metricsdb"
	"github.com/dohr-michael/polybridge/internal/workerpool"
)

// Server is the bridge's admin HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	bus        *events.Bus
	pool       *workerpool.Pool
	metrics    *metricsdb.DB
}

// NewServer creates a new gateway server. metrics may be nil, in which case
// /api/tasks responds with an empty list.
func NewServer(bus *events.Bus, pool *workerpool.Pool, metrics *metricsdb.DB, host string, port int) *Server {
	hub := ws.NewHub(bus)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	s := &Server{
		hub:     hub,
		bus:     bus,
		pool:    pool,
		metrics: metrics,
	}

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ws", hub.ServeWS)
	r.Get("/api/events", s.handleEvents)
	r.Get("/api/pool", s.handlePool)
	r.Get("/api/tasks", s.handleTasks)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: r,
	}

	return s
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("bridge gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	limit := 50
	if limitStr != "" {
		fmt.Sscanf(limitStr, "%d", &limit)
	}

	history := s.bus.History(limit)

	w.Header().Set("Content-Type", "application/json")

	type eventJSON struct {
		ID        string             `json:"id"`
		SessionID string             `json:"session_id,omitempty"`
		Type      string             `json:"type"`
		Timestamp string             `json:"timestamp"`
		Source    events.EventSource `json:"source"`
		Payload   map[string]any     `json:"payload"`
	}

	result := make([]eventJSON, len(history))
	for i, e := range history {
		result[i] = eventJSON{
			ID:        e.ID,
			SessionID: e.SessionID,
			Type:      string(e.Type),
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			Source:    e.Source,
			Payload:   e.Payload,
		}
	}

	json.NewEncoder(w).Encode(result)
}

// handlePool reports worker-pool occupancy and per-executable broadcast
// residency, per snapshot grouping in the pool itself.
func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pool == nil {
		json.NewEncoder(w).Encode([]workerpool.Snapshot{})
		return
	}
	json.NewEncoder(w).Encode(s.pool.Snapshot())
}

// handleTasks reports recent task outcomes from the metrics store when
// history=1 is requested; the bridge has no live task registry to query
// otherwise, so that mode is the only one supported.
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.metrics == nil || r.URL.Query().Get("history") != "1" {
		json.NewEncoder(w).Encode([]metricsdb.TaskRecord{})
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		fmt.Sscanf(l, "%d", &limit)
	}

	records, err := s.metrics.History(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(records)
}
