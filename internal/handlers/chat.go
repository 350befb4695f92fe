package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sathvikchoudar61/EduStealth/internal/api/middleware"
	"github.com/sathvikchoudar61/EduStealth/internal/models"
	"github.com/sathvikchoudar61/EduStealth/internal/store"
)

// HistoryResponse represents the chat history response.
type HistoryResponse struct {
	Messages []models.Message `json:"messages"`
}

// History returns the conversation between the authenticated user and the
// user named by the "with" query parameter, oldest first. Messages past
// their self-destruct time never appear, even before the sweeper runs.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserFromContext(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	withID := r.URL.Query().Get("with")
	if withID == "" {
		h.Error(w, http.StatusBadRequest, "with is required")
		return
	}
	if _, err := uuid.Parse(withID); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID format")
		return
	}

	messages, err := h.coord.History(r.Context(), userID, withID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	h.JSON(w, http.StatusOK, HistoryResponse{Messages: messages})
}

// DeleteMessage deletes an unread message on behalf of its sender. Deletes
// after the receiver has read the message, or by anyone other than the
// sender, are rejected; a message that is already gone counts as success.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserFromContext(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	messageID := chi.URLParam(r, "id")
	if messageID == "" {
		h.Error(w, http.StatusBadRequest, "message ID is required")
		return
	}

	if err := h.coord.Delete(r.Context(), messageID, userID); err != nil {
		if errors.Is(err, store.ErrForbidden) {
			h.Error(w, http.StatusForbidden, "cannot delete message after it is read or self-destructed")
			return
		}
		h.Error(w, http.StatusInternalServerError, "failed to delete message")
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"message": "Message deleted."})
}
