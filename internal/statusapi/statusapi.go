// Package statusapi implements the operator-facing HTTP surface: a health
// endpoint describing the process and its live sessions, a Prometheus
// scrape endpoint, and a websocket stream that pushes the same snapshot on
// an interval for dashboards that want push instead of poll.
package statusapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/404minds/telematics-gateway/internal/registry"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// snapshotInterval is how often the /ws stream pushes a fresh snapshot.
const snapshotInterval = 2 * time.Second

// sessionView is the wire projection of a session exposed to operators, per
// the specification's §6 status contract — narrower than registry.Snapshot,
// which also carries remote_addr for internal logging/debugging use.
type sessionView struct {
	ID              string    `json:"id"`
	IMEI            string    `json:"imei,omitempty"`
	ConnectedAt     time.Time `json:"connected_at"`
	PacketsReceived uint64    `json:"packets_received"`
}

type healthResponse struct {
	Status         string        `json:"status"`
	UptimeSeconds  float64       `json:"uptime_seconds"`
	ActiveSessions int           `json:"active_sessions"`
	Sessions       []sessionView `json:"sessions"`
}

// Server serves /health, /, /metrics and /ws.
type Server struct {
	registry  *registry.Registry
	logger    *zap.Logger
	startedAt time.Time
	upgrader  websocket.Upgrader
}

// New builds a Server backed by reg. startedAt is the process start time,
// used to compute uptime_seconds.
func New(reg *registry.Registry, logger *zap.Logger, startedAt time.Time) *Server {
	return &Server{
		registry:  reg,
		logger:    logger,
		startedAt: startedAt,
		upgrader:  websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
}

// Handler builds the mux. Any path other than the four handled below
// returns 404, matching the specification's health endpoint contract.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHealth)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/health" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.snapshot())
}

func (s *Server) snapshot() healthResponse {
	sessions := s.registry.Snapshot()
	views := make([]sessionView, len(sessions))
	for i, sess := range sessions {
		views[i] = sessionView{
			ID:              sess.ID,
			IMEI:            sess.IMEI,
			ConnectedAt:     sess.ConnectedAt,
			PacketsReceived: sess.PacketsReceived,
		}
	}
	return healthResponse{
		Status:         "ok",
		UptimeSeconds:  time.Since(s.startedAt).Seconds(),
		ActiveSessions: len(sessions),
		Sessions:       views,
	}
}

// handleWS upgrades the connection and pushes a JSON snapshot every
// snapshotInterval until the client disconnects or a write fails.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.WriteJSON(s.snapshot()); err != nil {
			return
		}
	}
}
