// Package ws is the presence and fan-out channel: one room per user
// identity, joined by all of that user's live connections. Delivery is
// best-effort and online-only — if nobody is in the room the event is
// dropped, and clients recover state through the history API on reconnect.
package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sathvikchoudar61/EduStealth/internal/metrics"
	"github.com/sathvikchoudar61/EduStealth/internal/models"
)

// Hub owns room membership. It implements chat.Emitter.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	logger zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		logger: logger,
	}
}

// Join adds a connection to its identity's room. Idempotent.
func (h *Hub) Join(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.identity]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.identity] = room
	}
	room[c] = struct{}{}
}

// Leave removes a connection from its room. Idempotent.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.identity]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.identity)
	}
}

// EmitToUser delivers an event to every connection in identity's room. A
// connection whose send buffer is full is dropped rather than allowed to
// stall the fan-out; its pumps shut the socket down.
func (h *Hub) EmitToUser(identity, event string, data any) {
	frame, err := json.Marshal(models.Envelope{Event: event, Data: data})
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("failed to encode event")
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[identity]))
	for c := range h.rooms[identity] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.enqueue(frame) {
			metrics.SocketEventsDropped.Inc()
			h.logger.Warn().
				Str("identity", identity).
				Str("event", event).
				Msg("dropping slow connection")
			c.drop()
		}
	}
}

// IsOnline reports whether identity has at least one live connection.
func (h *Hub) IsOnline(identity string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[identity]) > 0
}

// Presence returns the number of distinct online users and the total
// connection count.
func (h *Hub) Presence() (users, connections int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, room := range h.rooms {
		connections += len(room)
	}
	return len(h.rooms), connections
}
