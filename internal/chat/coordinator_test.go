package chat

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sathvikchoudar61/EduStealth/internal/crypto"
	"github.com/sathvikchoudar61/EduStealth/internal/models"
	"github.com/sathvikchoudar61/EduStealth/internal/store"
)

const (
	alice = "5f6b7c1e-8a2d-4f3b-9c0d-1e2f3a4b5c6d"
	bob   = "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d"
)

type emitted struct {
	identity string
	event    string
	data     any
}

// fakeEmitter records emissions instead of pushing them over sockets.
type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
	online map[string]bool
}

func newFakeEmitter(online ...string) *fakeEmitter {
	f := &fakeEmitter{online: make(map[string]bool)}
	for _, id := range online {
		f.online[id] = true
	}
	return f
}

func (f *fakeEmitter) EmitToUser(identity, event string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{identity: identity, event: event, data: data})
}

func (f *fakeEmitter) IsOnline(identity string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[identity]
}

func (f *fakeEmitter) byEvent(event string) []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emitted
	for _, e := range f.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeEmitter) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

func newTestCoordinator(t *testing.T, emit Emitter) *Coordinator {
	t.Helper()
	st, err := store.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(st.Close)

	codec := crypto.NewCodec("defaultkeydefaultkeydefaultkey12")
	return NewCoordinator(st, emit, codec, 2*time.Minute, zerolog.Nop())
}

func TestSendFansOutToBothRooms(t *testing.T) {
	emit := newFakeEmitter(bob)
	c := newTestCoordinator(t, emit)
	ctx := context.Background()

	msg, err := c.SendPlaintext(ctx, alice, bob, "hello", models.KindText, "")
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)

	received := emit.byEvent(models.EventReceiveMessage)
	require.Len(t, received, 2)
	require.Equal(t, alice, received[0].identity)
	require.Equal(t, bob, received[1].identity)

	// The wire carries ciphertext only.
	wire := received[1].data.(*models.Message)
	require.NotEqual(t, "hello", wire.Content)
	require.Equal(t, msg.Content, wire.Content)

	// Receiver was online, so the sender got an ephemeral delivery hint.
	delivered := emit.byEvent(models.EventDelivered)
	require.Len(t, delivered, 1)
	require.Equal(t, alice, delivered[0].identity)
}

func TestSendOfflineReceiverNoDeliveredHint(t *testing.T) {
	emit := newFakeEmitter()
	c := newTestCoordinator(t, emit)

	_, err := c.SendPlaintext(context.Background(), alice, bob, "hello", models.KindText, "")
	require.NoError(t, err)

	require.Len(t, emit.byEvent(models.EventReceiveMessage), 2)
	require.Empty(t, emit.byEvent(models.EventDelivered))
}

func TestSendValidationFailureEmitsNothing(t *testing.T) {
	emit := newFakeEmitter()
	c := newTestCoordinator(t, emit)

	_, err := c.Send(context.Background(), SendInput{SenderID: alice, ReceiverID: bob})
	var verr *store.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Empty(t, emit.events)

	_, err = c.Send(context.Background(), SendInput{
		SenderID:   alice,
		ReceiverID: bob,
		Content:    strings.Repeat("A", MaxContentBytes+1),
	})
	require.ErrorIs(t, err, ErrContentTooLarge)
	require.Empty(t, emit.events)
}

func TestMarkReadEmitsReceiptAndCountdown(t *testing.T) {
	emit := newFakeEmitter()
	c := newTestCoordinator(t, emit)
	ctx := context.Background()

	readAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return readAt }

	msg, err := c.SendPlaintext(ctx, alice, bob, "hello", models.KindText, "")
	require.NoError(t, err)
	emit.reset()

	require.NoError(t, c.MarkRead(ctx, msg.ID, bob))

	receipts := emit.byEvent(models.EventRead)
	require.Len(t, receipts, 1)
	require.Equal(t, alice, receipts[0].identity)
	require.Equal(t, models.ReadPayload{MessageID: msg.ID}, receipts[0].data)

	countdowns := emit.byEvent(models.EventSelfDestruct)
	require.Len(t, countdowns, 1)
	require.Equal(t, bob, countdowns[0].identity)
	payload := countdowns[0].data.(models.SelfDestructPayload)
	require.Equal(t, msg.ID, payload.MessageID)
	require.True(t, payload.ExpiresAt.Equal(readAt.Add(2*time.Minute)))

	// A repeat read is a no-op transition and emits nothing.
	emit.reset()
	require.NoError(t, c.MarkRead(ctx, msg.ID, bob))
	require.Empty(t, emit.events)
}

func TestMarkReadUnknownIDIsSilent(t *testing.T) {
	emit := newFakeEmitter()
	c := newTestCoordinator(t, emit)

	require.NoError(t, c.MarkRead(context.Background(), "01JGONE00000000000000000ZZ", bob))
	require.Empty(t, emit.events)
}

func TestDeleteUnreadNotifiesBothRooms(t *testing.T) {
	emit := newFakeEmitter()
	c := newTestCoordinator(t, emit)
	ctx := context.Background()

	msg, err := c.SendPlaintext(ctx, alice, bob, "retract me", models.KindText, "")
	require.NoError(t, err)
	emit.reset()

	require.NoError(t, c.Delete(ctx, msg.ID, alice))

	deleted := emit.byEvent(models.EventMessageDeleted)
	require.Len(t, deleted, 2)
	require.Equal(t, alice, deleted[0].identity)
	require.Equal(t, bob, deleted[1].identity)

	history, err := c.History(ctx, alice, bob)
	require.NoError(t, err)
	require.Empty(t, history)

	// Deleting an already-gone message reaches the goal state: success,
	// but no second notification.
	emit.reset()
	require.NoError(t, c.Delete(ctx, msg.ID, alice))
	require.Empty(t, emit.events)
}

func TestDeleteAfterReadForbidden(t *testing.T) {
	emit := newFakeEmitter()
	c := newTestCoordinator(t, emit)
	ctx := context.Background()

	msg, err := c.SendPlaintext(ctx, alice, bob, "too late", models.KindText, "")
	require.NoError(t, err)
	require.NoError(t, c.MarkRead(ctx, msg.ID, bob))
	emit.reset()

	require.ErrorIs(t, c.Delete(ctx, msg.ID, alice), store.ErrForbidden)
	require.Empty(t, emit.events)
}

func TestDeleteByNonSenderForbidden(t *testing.T) {
	emit := newFakeEmitter()
	c := newTestCoordinator(t, emit)
	ctx := context.Background()

	msg, err := c.SendPlaintext(ctx, alice, bob, "mine", models.KindText, "")
	require.NoError(t, err)
	emit.reset()

	require.ErrorIs(t, c.Delete(ctx, msg.ID, bob), store.ErrForbidden)
	require.Empty(t, emit.events)
}

func TestPurgeEmitsOnce(t *testing.T) {
	emit := newFakeEmitter()
	c := newTestCoordinator(t, emit)
	ctx := context.Background()

	msg, err := c.SendPlaintext(ctx, alice, bob, "expiring", models.KindText, "")
	require.NoError(t, err)
	require.NoError(t, c.MarkRead(ctx, msg.ID, bob))
	emit.reset()

	require.NoError(t, c.Purge(ctx, *msg))
	require.Len(t, emit.byEvent(models.EventMessageDeleted), 2)

	// Idempotent: a second purge of the same id emits nothing.
	emit.reset()
	require.NoError(t, c.Purge(ctx, *msg))
	require.Empty(t, emit.events)
}

func TestTypingPassThrough(t *testing.T) {
	emit := newFakeEmitter()
	c := newTestCoordinator(t, emit)

	c.Typing(alice, bob)

	typed := emit.byEvent(models.EventTyping)
	require.Len(t, typed, 1)
	require.Equal(t, bob, typed[0].identity)
	require.Equal(t, models.TypingPayload{SenderID: alice, ReceiverID: bob}, typed[0].data)
}

func TestConcurrentReadAndDelete(t *testing.T) {
	// Exactly one of read and delete may win; there is no state where the
	// message is both read and deleted.
	emit := newFakeEmitter()
	c := newTestCoordinator(t, emit)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		msg, err := c.SendPlaintext(ctx, alice, bob, "contested", models.KindText, "")
		require.NoError(t, err)

		var wg sync.WaitGroup
		var readErr, delErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			readErr = c.MarkRead(ctx, msg.ID, bob)
		}()
		go func() {
			defer wg.Done()
			delErr = c.Delete(ctx, msg.ID, alice)
		}()
		wg.Wait()

		require.NoError(t, readErr)
		if delErr != nil {
			// Delete lost the race to read.
			require.ErrorIs(t, delErr, store.ErrForbidden)
			history, err := c.History(ctx, alice, bob)
			require.NoError(t, err)
			require.Len(t, history, 1)
			require.NotNil(t, history[0].ReadAt)
			require.NoError(t, c.Purge(ctx, *msg))
		} else {
			// Delete won; the message is gone for both parties.
			history, err := c.History(ctx, alice, bob)
			require.NoError(t, err)
			require.Empty(t, history)
		}
	}
}
