package gateway

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/prepflow/stt-gateway/internal/observability"
	"github.com/prepflow/stt-gateway/internal/transcript"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The browser extension connects from arbitrary origins; access control
	// happened upstream at the API gateway
	CheckOrigin: func(r *http.Request) bool { return true },
}

// subscriber is one WebSocket connection listening to a session's chunks
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans transcript chunks out to the live copilot overlays subscribed to
// each session. Delivery is best-effort: a subscriber that cannot keep up is
// dropped rather than allowed to block ingestion.
type Hub struct {
	logger zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]map[*subscriber]struct{}
}

// NewHub creates an empty broadcast hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:   logger,
		sessions: make(map[string]map[*subscriber]struct{}),
	}
}

// Broadcast delivers a chunk to every subscriber of the session without
// blocking the caller
func (h *Hub) Broadcast(sessionID string, chunk transcript.Chunk) {
	payload, err := json.Marshal(chunk)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode chunk for broadcast")
		return
	}

	h.mu.RLock()
	subs := h.sessions[sessionID]
	var slow []*subscriber
	for sub := range subs {
		select {
		case sub.send <- payload:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.logger.Warn().Str("session_id", sessionID).Msg("Dropping slow transcript subscriber")
		observability.RecordStreamDrop()
		h.remove(sessionID, sub)
	}
}

// SubscriberCount returns the number of live subscribers for a session
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

func (h *Hub) add(sessionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*subscriber]struct{})
	}
	h.sessions[sessionID][sub] = struct{}{}
}

func (h *Hub) remove(sessionID string, sub *subscriber) {
	h.mu.Lock()
	if subs, ok := h.sessions[sessionID]; ok {
		if _, present := subs[sub]; present {
			delete(subs, sub)
			close(sub.send)
			if len(subs) == 0 {
				delete(h.sessions, sessionID)
			}
		}
	}
	h.mu.Unlock()
}

// HandleStream upgrades the request and streams the session's chunks until
// the client disconnects
func (h *Hub) HandleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, 64)}
	h.add(sessionID, sub)
	observability.StreamSubscriberConnected()
	h.logger.Info().Str("session_id", sessionID).Msg("Transcript subscriber connected")

	go h.writePump(sessionID, sub)
	h.readPump(sessionID, sub)
}

// readPump consumes (and discards) client frames so close and ping/pong
// handling keeps working, and tears the subscriber down on disconnect
func (h *Hub) readPump(sessionID string, sub *subscriber) {
	defer func() {
		h.remove(sessionID, sub)
		sub.conn.Close()
		observability.StreamSubscriberDisconnected()
		h.logger.Info().Str("session_id", sessionID).Msg("Transcript subscriber disconnected")
	}()

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump drains the subscriber's buffer onto the wire
func (h *Hub) writePump(sessionID string, sub *subscriber) {
	for payload := range sub.send {
		if err := sub.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debug().Err(err).Str("session_id", sessionID).Msg("Subscriber write failed")
			sub.conn.Close()
			return
		}
	}
	// Buffer closed by remove: tell the client before hanging up
	_ = sub.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscriber dropped"))
	sub.conn.Close()
}
