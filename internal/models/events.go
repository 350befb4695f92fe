package models

import "time"

// Socket event names exchanged with clients. The same names are used by the
// web frontend, so they are part of the wire contract.
const (
	EventJoin           = "join"
	EventSendMessage    = "send_message"
	EventReceiveMessage = "receive_message"
	EventReadMessage    = "read_message"
	EventRead           = "read"
	EventDelivered      = "delivered"
	EventSelfDestruct   = "self_destruct"
	EventTyping         = "typing"
	EventMessageDeleted = "message_deleted"
	EventError          = "error"
)

// Envelope wraps every socket frame in both directions.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// JoinPayload binds a connection to its identity's room.
type JoinPayload struct {
	Identity string `json:"identity"`
}

// SendMessagePayload is the client request to send a message.
// Content is ciphertext; the server never sees plaintext on this path.
type SendMessagePayload struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	Kind       Kind   `json:"kind"`
	ImageURL   string `json:"imageUrl,omitempty"`
}

// ReadMessagePayload is the client notification that a message was observed.
type ReadMessagePayload struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
}

// ReadPayload is the read receipt pushed to the sender's room.
type ReadPayload struct {
	MessageID string `json:"messageId"`
}

// DeliveredPayload is the ephemeral delivery hint pushed to the sender's
// room when the receiver had at least one live connection at send time.
// It is never persisted and does not survive a reconnect.
type DeliveredPayload struct {
	MessageID string `json:"messageId"`
}

// SelfDestructPayload starts the receiver-side countdown after a read.
type SelfDestructPayload struct {
	MessageID string    `json:"messageId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TypingPayload is passed through to the receiver's room, unpersisted.
type TypingPayload struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

// MessageDeletedPayload is pushed to both rooms on explicit delete and on
// sweeper purge, so clients need a single handler.
type MessageDeletedPayload struct {
	MessageID string `json:"messageId"`
}

// ErrorPayload is sent to the requesting connection only.
type ErrorPayload struct {
	Message string `json:"message"`
}
