package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sathvikchoudar61/EduStealth/internal/chat"
	"github.com/sathvikchoudar61/EduStealth/internal/store"
	"github.com/sathvikchoudar61/EduStealth/internal/ws"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store   store.MessageStore
	redis   *store.RedisStore
	coord   *chat.Coordinator
	hub     *ws.Hub
	started time.Time
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(st store.MessageStore, redis *store.RedisStore, coord *chat.Coordinator, hub *ws.Hub) *Handler {
	return &Handler{
		store:   st,
		redis:   redis,
		coord:   coord,
		hub:     hub,
		started: time.Now(),
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
