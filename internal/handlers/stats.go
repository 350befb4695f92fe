package handlers

import (
	"net/http"
	"time"
)

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalMessages   int64  `json:"total_messages"`
	UnreadMessages  int64  `json:"unread_messages"`
	PendingExpiry   int64  `json:"pending_expiry"`
	OnlineUsers     int    `json:"online_users"`
	Connections     int    `json:"connections"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	GracePeriod     string `json:"grace_period"`
}

// Stats returns chat statistics for the admin dashboard. Counts only; no
// message content ever leaves the store through this endpoint.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count messages")
		return
	}

	users, connections := h.hub.Presence()

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalMessages:  stats.Total,
		UnreadMessages: stats.Unread,
		PendingExpiry:  stats.PendingExpiry,
		OnlineUsers:    users,
		Connections:    connections,
		UptimeSeconds:  int64(time.Since(h.started).Seconds()),
		GracePeriod:    h.coord.GracePeriod().String(),
	})
}
