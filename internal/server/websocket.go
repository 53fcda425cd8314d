// ABOUTME: WebSocket viewer endpoint streaming hub envelopes to clients
// ABOUTME: One writer loop per connection; inbound pings are answered with pong

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/2389/parley/internal/broadcast"
	"github.com/2389/parley/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// inboundMessage is the only frame shape viewers may send.
type inboundMessage struct {
	Type string `json:"type"`
}

// handleMissingConversation rejects WebSocket handshakes that carry no
// conversation ID.
func (s *Server) handleMissingConversation(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusBadRequest, "conversation id required")
}

// handleWebSocket attaches a viewer to a conversation's event stream.
// The connection is validated before the upgrade; a missing
// conversation rejects the handshake outright.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if conversationID == "" {
		s.handleMissingConversation(w, r)
		return
	}

	if _, err := s.store.GetConversation(r.Context(), conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
		} else {
			writeError(w, http.StatusInternalServerError, "load conversation failed")
		}
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			"conversation_id", conversationID, "error", err)
		return
	}
	defer conn.Close()

	s.metrics.ConnectedViewers.Inc()
	defer s.metrics.ConnectedViewers.Dec()

	s.logger.Debug("viewer connected", "conversation_id", conversationID)

	// The subscription lives until the connection drops, not until the
	// upgrade request's context ends.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _ := s.hub.Subscribe(ctx, conversationID)
	pongs := make(chan *broadcast.Envelope, 8)

	go s.readViewer(conn, pongs, cancel)

	// Single writer: hub events and pong replies share this loop so
	// two goroutines never write the connection at once.
	for {
		select {
		case env, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case env := <-pongs:
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// readViewer consumes inbound frames until the connection drops.
// Pings are answered; everything else is ignored.
func (s *Server) readViewer(conn *websocket.Conn, pongs chan<- *broadcast.Envelope, cancel context.CancelFunc) {
	defer cancel()
	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type == "ping" {
			select {
			case pongs <- broadcast.NewPong(time.Now().UnixMilli()):
			default:
			}
		}
	}
}
