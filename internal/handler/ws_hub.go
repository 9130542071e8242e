package handler

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// WSEvent is the envelope for all WebSocket messages, both directions.
// Ingress carries Data as raw JSON; egress carries the payload struct.
type WSEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Hub indexes live WebSocket connections by connection ID and implements
// service.Broadcaster. It knows nothing about rooms: targeting is the
// caller's job, the hub only delivers.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*WSConn
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]*WSConn)}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.id] = c
}

// Unregister removes a connection and closes its send channel.
func (h *Hub) Unregister(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[c.id] != c {
		return
	}
	delete(h.conns, c.id)
	close(c.send)
}

// Send delivers an event to one connection. Unknown connections and full
// buffers drop the message; the tick loop must never block on a slow
// client.
func (h *Hub) Send(connID, event string, data any) {
	payload, err := json.Marshal(WSEvent{Type: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliver(connID, event, payload)
}

// SendAll delivers an event to a set of connections, marshaling once.
func (h *Hub) SendAll(connIDs []string, event string, data any) {
	payload, err := json.Marshal(WSEvent{Type: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range connIDs {
		h.deliver(id, event, payload)
	}
}

// deliver queues a payload on one connection. Caller must hold h.mu.
func (h *Hub) deliver(connID, event string, payload []byte) {
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
		log.Warn().Str("connId", connID).Str("event", event).Msg("Dropping WebSocket message, buffer full")
	}
}

// ConnectionCount returns the total number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
