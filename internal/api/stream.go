package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/tokensim/internal/engine"
)

// StreamMessage is one websocket frame sent to observers.
type StreamMessage struct {
	Type     string              `json:"type"` // "snapshot", "turn" or "event"
	Snapshot *engine.Snapshot    `json:"snapshot,omitempty"`
	Summary  *engine.TurnSummary `json:"summary,omitempty"`
	Event    *engine.Event       `json:"event,omitempty"`
}

const (
	streamWriteWait = 5 * time.Second
	streamPingEvery = 15 * time.Second
	streamReadWait  = 60 * time.Second
)

// handleStream upgrades to a websocket, sends the current snapshot and then
// every turn summary and event as they happen.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// Connection limit.
	if current := s.streams.Add(1); current > s.maxStreams {
		s.streams.Add(-1)
		http.Error(w, "too many streams", http.StatusServiceUnavailable)
		return
	}
	defer s.streams.Add(-1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	subID, ch := s.Econ.Subscribe()
	defer s.Econ.Unsubscribe(subID)

	snap := s.Econ.Snapshot()
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(StreamMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
		return
	}
	slog.Info("stream client connected", "sub_id", subID, "client", clientAddr(r))

	// Reader: observers send nothing, but reading surfaces the close frame.
	closed := make(chan struct{})
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamReadWait))
	})
	go func() {
		defer close(closed)
		_ = conn.SetReadDeadline(time.Now().Add(streamReadWait))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingEvery)
	defer ping.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(messageFor(e)); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-closed:
			slog.Info("stream client disconnected", "sub_id", subID)
			return
		case <-r.Context().Done():
			return
		}
	}
}

func messageFor(e engine.Event) StreamMessage {
	if e.Category == engine.CategoryTurn && e.Summary != nil {
		return StreamMessage{Type: "turn", Summary: e.Summary}
	}
	return StreamMessage{Type: "event", Event: &e}
}
