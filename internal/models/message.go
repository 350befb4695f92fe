package models

import "time"

// Kind enumerates the supported message content kinds.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Valid reports whether k is a known message kind.
func (k Kind) Valid() bool {
	return k == KindText || k == KindImage
}

// Message represents an encrypted direct message between two users.
// Content is ciphertext (base64) and is opaque to storage and transport.
type Message struct {
	ID         string     `json:"id"`                  // ULID, server-assigned
	SenderID   string     `json:"senderId"`            // User UUID
	ReceiverID string     `json:"receiverId"`          // User UUID
	Content    string     `json:"content"`             // Ciphertext (base64)
	Kind       Kind       `json:"kind"`                // "text" or "image"
	ImageURL   string     `json:"imageUrl,omitempty"`  // External blob URL for image messages
	CreatedAt  time.Time  `json:"createdAt"`
	ReadAt     *time.Time `json:"readAt,omitempty"`    // Set once, by the receiver
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"` // ReadAt + grace period, armed on read
}

// Read reports whether the message has been read by the receiver.
func (m *Message) Read() bool {
	return m.ReadAt != nil
}

// Expired reports whether the message is past its self-destruct time.
func (m *Message) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !m.ExpiresAt.After(now)
}
