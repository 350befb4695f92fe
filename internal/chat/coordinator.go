// Package chat implements the message lifecycle state machine: a message is
// sent, optionally read (which arms a fixed self-destruct timer), and ends
// either deleted by its sender while still unread or purged by the expiry
// sweeper. All state lives in the message store; the coordinator only
// orchestrates transitions and fans out events to the participants' rooms.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/sathvikchoudar61/EduStealth/internal/crypto"
	"github.com/sathvikchoudar61/EduStealth/internal/metrics"
	"github.com/sathvikchoudar61/EduStealth/internal/models"
	"github.com/sathvikchoudar61/EduStealth/internal/store"
)

// ErrContentTooLarge is returned when ciphertext exceeds the send cap.
var ErrContentTooLarge = errors.New("content too large")

// MaxContentBytes caps ciphertext size on send.
const MaxContentBytes = 8192

// Emitter delivers events to every live connection in a user's room.
// Delivery is best-effort and online-only; the coordinator never learns
// whether anyone was listening.
type Emitter interface {
	EmitToUser(identity, event string, data any)
	IsOnline(identity string) bool
}

// Coordinator orchestrates send, read-marking, deletion and purge. It is the
// only component that both mutates the store and talks to the fan-out
// channel, keeping transport concerns out of the state machine's callers.
type Coordinator struct {
	store  store.MessageStore
	emit   Emitter
	codec  *crypto.Codec
	grace  time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// NewCoordinator creates a coordinator with the given read grace period.
func NewCoordinator(st store.MessageStore, emit Emitter, codec *crypto.Codec, grace time.Duration, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:  st,
		emit:   emit,
		codec:  codec,
		grace:  grace,
		logger: logger,
		now:    time.Now,
	}
}

// GracePeriod returns the configured time between read and self-destruct.
func (c *Coordinator) GracePeriod() time.Duration {
	return c.grace
}

// SendInput carries a new message. Content is ciphertext produced by a
// client holding the shared key.
type SendInput struct {
	SenderID   string
	ReceiverID string
	Content    string
	Kind       models.Kind
	ImageURL   string
}

// Send persists a new message and fans it out to both participants' rooms.
// The sender's own other devices mirror the message through the emission to
// the sender's room. Persistence failures are surfaced to the caller only;
// nothing reaches the receiver and the caller must resubmit.
func (c *Coordinator) Send(ctx context.Context, in SendInput) (*models.Message, error) {
	if len(in.Content) > MaxContentBytes {
		return nil, ErrContentTooLarge
	}

	msg := &models.Message{
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Content:    in.Content,
		Kind:       in.Kind,
		ImageURL:   in.ImageURL,
		CreatedAt:  c.now().UTC(),
	}
	if err := c.store.Append(ctx, msg); err != nil {
		return nil, err
	}

	metrics.MessagesSent.WithLabelValues(string(msg.Kind)).Inc()

	c.emit.EmitToUser(msg.SenderID, models.EventReceiveMessage, msg)
	if msg.ReceiverID != msg.SenderID {
		c.emit.EmitToUser(msg.ReceiverID, models.EventReceiveMessage, msg)
	}

	// Ephemeral delivery hint: only meaningful while the receiver is
	// online right now, so it is never persisted.
	if c.emit.IsOnline(msg.ReceiverID) {
		c.emit.EmitToUser(msg.SenderID, models.EventDelivered, models.DeliveredPayload{MessageID: msg.ID})
	}

	return msg, nil
}

// SendPlaintext encrypts plaintext with the shared-key codec and sends it.
// Used where the caller holds plaintext rather than client-side ciphertext;
// the cipher is deterministic, so the wire bytes match what a client would
// have produced.
func (c *Coordinator) SendPlaintext(ctx context.Context, senderID, receiverID, plaintext string, kind models.Kind, imageURL string) (*models.Message, error) {
	return c.Send(ctx, SendInput{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    c.codec.Encrypt(plaintext),
		Kind:       kind,
		ImageURL:   imageURL,
	})
}

// MarkRead records that the receiver observed the message and arms the
// self-destruct timer. Only an actual transition emits events: a read
// receipt to the sender's room and the countdown start to the receiver's.
// Unknown ids are a silent no-op — a race with delete is expected and
// harmless.
func (c *Coordinator) MarkRead(ctx context.Context, messageID, readerID string) error {
	readAt := c.now().UTC()
	msg, changed, err := c.store.MarkRead(ctx, messageID, readerID, readAt, readAt.Add(c.grace))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if !changed {
		return nil
	}

	metrics.MessagesRead.Inc()

	c.emit.EmitToUser(msg.SenderID, models.EventRead, models.ReadPayload{MessageID: msg.ID})
	c.emit.EmitToUser(msg.ReceiverID, models.EventSelfDestruct, models.SelfDestructPayload{
		MessageID: msg.ID,
		ExpiresAt: *msg.ExpiresAt,
	})
	return nil
}

// Delete removes an unread message on behalf of its sender and notifies
// both rooms. A message that no longer exists is treated as success — the
// goal state is "does not exist". Forbidden deletes (non-sender, or after
// read/expiry) are surfaced to the caller and change nothing.
func (c *Coordinator) Delete(ctx context.Context, messageID, requesterID string) error {
	msg, err := c.store.Remove(ctx, messageID, requesterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	metrics.MessagesDeleted.WithLabelValues("sender").Inc()
	c.emitDeleted(msg)
	return nil
}

// Purge removes an expired message and notifies both rooms with the same
// event as explicit delete, so clients need a single handler. Purging an
// already-purged id is a no-op and emits nothing.
func (c *Coordinator) Purge(ctx context.Context, msg models.Message) error {
	removed, err := c.store.Purge(ctx, msg.ID)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}

	metrics.MessagesDeleted.WithLabelValues("expired").Inc()
	c.emitDeleted(&msg)
	return nil
}

// History returns the conversation between two users, oldest first, with
// already-expired messages filtered out regardless of sweeper lag.
func (c *Coordinator) History(ctx context.Context, userA, userB string) ([]models.Message, error) {
	return c.store.History(ctx, userA, userB, c.now().UTC())
}

// Typing passes a typing indicator through to the receiver's room. Nothing
// is persisted and nothing comes back.
func (c *Coordinator) Typing(senderID, receiverID string) {
	c.emit.EmitToUser(receiverID, models.EventTyping, models.TypingPayload{
		SenderID:   senderID,
		ReceiverID: receiverID,
	})
}

func (c *Coordinator) emitDeleted(msg *models.Message) {
	payload := models.MessageDeletedPayload{MessageID: msg.ID}
	c.emit.EmitToUser(msg.SenderID, models.EventMessageDeleted, payload)
	if msg.ReceiverID != msg.SenderID {
		c.emit.EmitToUser(msg.ReceiverID, models.EventMessageDeleted, payload)
	}
}
