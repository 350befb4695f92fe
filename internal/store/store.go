package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sathvikchoudar61/EduStealth/internal/models"
)

var (
	// ErrNotFound is returned when a message id does not exist.
	ErrNotFound = errors.New("message not found")

	// ErrForbidden is returned when a delete is attempted by a non-sender,
	// or after the message has been read or armed for self-destruct.
	ErrForbidden = errors.New("operation not permitted")
)

// ValidationError reports a missing required field on append.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// MessageStats holds aggregate counts for the stats endpoint.
type MessageStats struct {
	Total         int64 `json:"total"`
	Unread        int64 `json:"unread"`
	PendingExpiry int64 `json:"pending_expiry"`
}

// MessageStore defines the interface for durable message storage. It is the
// single source of truth for message state; the coordinator, the sweeper and
// history queries all serialize through it. Both SQLiteStore and
// PostgresStore implement this interface.
type MessageStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Append persists a new message, assigning ID and CreatedAt when unset.
	Append(ctx context.Context, msg *models.Message) error

	// History returns all messages between two users in either direction,
	// ordered by CreatedAt ascending. Messages whose ExpiresAt has elapsed
	// are excluded even if the sweeper has not purged them yet.
	History(ctx context.Context, userA, userB string, now time.Time) ([]models.Message, error)

	// MarkRead sets ReadAt and ExpiresAt if and only if the message is
	// unread and readerID is the receiver. The update is a single
	// conditional statement. It returns the message and whether the
	// transition actually happened; a second call is a no-op that leaves
	// the timestamps unchanged. Returns ErrNotFound for unknown ids.
	MarkRead(ctx context.Context, id, readerID string, readAt, expiresAt time.Time) (*models.Message, bool, error)

	// Remove deletes a message if and only if requesterID is the sender
	// and the message is unread with no self-destruct armed. The delete
	// condition is a single atomic statement. Returns the removed message,
	// ErrForbidden when the condition fails, or ErrNotFound.
	Remove(ctx context.Context, id, requesterID string) (*models.Message, error)

	// Purge unconditionally deletes a message by id. Deleting an absent id
	// is a no-op; the return value reports whether a row was removed.
	Purge(ctx context.Context, id string) (bool, error)

	// FindExpired returns all messages with ExpiresAt at or before now.
	FindExpired(ctx context.Context, now time.Time) ([]models.Message, error)

	// Stats returns aggregate message counts.
	Stats(ctx context.Context) (MessageStats, error)
}

// prepare validates required fields and assigns server-side defaults.
func prepare(msg *models.Message) error {
	if msg.SenderID == "" {
		return &ValidationError{Field: "senderId"}
	}
	if msg.ReceiverID == "" {
		return &ValidationError{Field: "receiverId"}
	}
	if msg.Content == "" {
		return &ValidationError{Field: "content"}
	}
	if msg.Kind == "" {
		msg.Kind = models.KindText
	}
	if !msg.Kind.Valid() {
		return &ValidationError{Field: "kind"}
	}
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return nil
}
