// Package api provides the HTTP API for observing the economy.
// GET endpoints are read-only views of the latest snapshot. POST endpoints
// advance the economy or change the loop speed.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/tokensim/internal/agents"
	"github.com/talgya/tokensim/internal/config"
	"github.com/talgya/tokensim/internal/engine"
	"github.com/talgya/tokensim/internal/persistence"
)

// Ledger is the persisted history behind the /api/v1/stats endpoints.
type Ledger interface {
	TurnHistory(from, to uint64, limit int) ([]persistence.TurnRow, error)
	RecentEvents(limit int) ([]engine.Event, error)
}

// Server serves the economy over HTTP.
type Server struct {
	Econ    *engine.Economy
	Eng     *engine.Engine
	History Ledger // nil when the ledger is disabled
	Port    int

	turnLimiter *RateLimiter
	maxStreams  int32
	streams     atomic.Int32
	upgrader    websocket.Upgrader
}

// NewServer creates an API server for econ driven by eng.
func NewServer(econ *engine.Economy, eng *engine.Engine, cfg config.APIConfig) *Server {
	return &Server{
		Econ:        econ,
		Eng:         eng,
		Port:        cfg.Port,
		turnLimiter: NewRateLimiter(cfg.TurnRateLimit, time.Minute),
		maxStreams:  int32(cfg.MaxStreams),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the routed API with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Snapshot document, also under the path existing dashboards poll.
	mux.HandleFunc("GET /simulation-data", s.handleSnapshot)
	mux.HandleFunc("GET /api/v1/snapshot", s.handleSnapshot)

	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/agents", s.handleAgents)
	mux.HandleFunc("GET /api/v1/agent/{id}", s.handleAgentDetail)
	mux.HandleFunc("GET /api/v1/alliances", s.handleAlliances)
	mux.HandleFunc("GET /api/v1/resources", s.handleResources)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/stats/history", s.handleStatsHistory)
	mux.HandleFunc("GET /api/v1/stats/events", s.handleStatsEvents)
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)

	mux.HandleFunc("POST /api/v1/turn", RateLimitMiddleware(s.turnLimiter, s.handleTurn))
	mux.HandleFunc("GET /api/v1/speed", s.handleSpeed)
	mux.HandleFunc("POST /api/v1/speed", s.handleSpeed)

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine. The returned server is
// used for shutdown.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "max_streams", s.maxStreams, "ledger", s.History != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// Shutdown stops srv, waiting up to five seconds for open requests.
func Shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Econ.Snapshot())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	type status struct {
		engine.Status
		Speed      float64 `json:"speed"`
		Running    bool    `json:"running"`
		LoopTurns  uint64  `json:"loop_turns"`
		Streams    int32   `json:"streams"`
		LedgerOpen bool    `json:"ledger"`
	}
	writeJSON(w, status{
		Status:     s.Econ.Status(),
		Speed:      s.Eng.Speed(),
		Running:    s.Eng.Running(),
		LoopTurns:  s.Eng.Turns(),
		Streams:    s.streams.Load(),
		LedgerOpen: s.History != nil,
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	snap := s.Econ.Snapshot()

	if group := r.URL.Query().Get("role"); group != "" {
		if _, ok := agents.ParseGroup(group); !ok {
			http.Error(w, "unknown role "+strconv.Quote(group), http.StatusBadRequest)
			return
		}
		writeJSON(w, snap.Agents[group])
		return
	}

	result := make([]engine.AgentView, 0)
	for _, role := range agents.Roles {
		result = append(result, snap.Agents[role.Group()]...)
	}
	writeJSON(w, result)
}

func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "missing agent id", http.StatusBadRequest)
		return
	}
	detail, ok := s.Econ.Agent(agents.AgentID(id))
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	writeJSON(w, detail)
}

func (s *Server) handleAlliances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Econ.Snapshot().Alliances)
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Econ.Snapshot().Resources)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	writeJSON(w, s.Econ.RecentEvents(limit, r.URL.Query().Get("category")))
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		http.Error(w, "ledger not available", http.StatusServiceUnavailable)
		return
	}

	fromTick := uint64(0)
	toTick := uint64(0) // No upper bound
	limit := 100

	if f := r.URL.Query().Get("from"); f != "" {
		if v, err := strconv.ParseUint(f, 10, 63); err == nil {
			fromTick = v
		}
	}
	if t := r.URL.Query().Get("to"); t != "" {
		if v, err := strconv.ParseUint(t, 10, 63); err == nil {
			toTick = v
		}
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	rows, err := s.History.TurnHistory(fromTick, toTick, limit)
	if err != nil {
		slog.Error("turn history query failed", "error", err)
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []persistence.TurnRow{}
	}
	writeJSON(w, rows)
}

// handleStatsEvents serves persisted events of the current run, newest first.
// Unlike /api/v1/events it reaches past the in-memory ring.
func (s *Server) handleStatsEvents(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		http.Error(w, "ledger not available", http.StatusServiceUnavailable)
		return
	}
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	events, err := s.History.RecentEvents(limit)
	if err != nil {
		slog.Error("event history query failed", "error", err)
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, events)
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	summary := s.Econ.AdvanceTurn()
	slog.Debug("manual turn", "tick", summary.Tick, "client", clientAddr(r))
	writeJSON(w, summary)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed *float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Speed == nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if *req.Speed < 0 || *req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(*req.Speed)
		slog.Info("speed changed", "speed", *req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
