package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sathvikchoudar61/EduStealth/internal/models"
)

const (
	alice = "5f6b7c1e-8a2d-4f3b-9c0d-1e2f3a4b5c6d"
	bob   = "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d"
	carol = "0d9e8f7a-6b5c-4d3e-2f1a-0b9c8d7e6f5a"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func appendMessage(t *testing.T, s *SQLiteStore, sender, receiver, content string) *models.Message {
	t.Helper()
	msg := &models.Message{SenderID: sender, ReceiverID: receiver, Content: content}
	require.NoError(t, s.Append(context.Background(), msg))
	return msg
}

func TestAppendAssignsDefaults(t *testing.T) {
	s := newTestStore(t)

	msg := appendMessage(t, s, alice, bob, "Y2lwaGVydGV4dA==")
	require.NotEmpty(t, msg.ID)
	require.False(t, msg.CreatedAt.IsZero())
	require.Equal(t, models.KindText, msg.Kind)
	require.Nil(t, msg.ReadAt)
	require.Nil(t, msg.ExpiresAt)
}

func TestAppendValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, tc := range []struct {
		field string
		msg   models.Message
	}{
		{"senderId", models.Message{ReceiverID: bob, Content: "x"}},
		{"receiverId", models.Message{SenderID: alice, Content: "x"}},
		{"content", models.Message{SenderID: alice, ReceiverID: bob}},
		{"kind", models.Message{SenderID: alice, ReceiverID: bob, Content: "x", Kind: "video"}},
	} {
		err := s.Append(ctx, &tc.msg)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, tc.field, verr.Field)
	}
}

func TestHistoryBothDirectionsOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i, m := range []*models.Message{
		{SenderID: alice, ReceiverID: bob, Content: "first"},
		{SenderID: bob, ReceiverID: alice, Content: "second"},
		{SenderID: alice, ReceiverID: carol, Content: "other pair"},
		{SenderID: alice, ReceiverID: bob, Content: "third"},
	} {
		m.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.Append(ctx, m))
	}

	history, err := s.History(ctx, alice, bob, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, "first", history[0].Content)
	require.Equal(t, "second", history[1].Content)
	require.Equal(t, "third", history[2].Content)

	// Symmetric regardless of argument order.
	reversed, err := s.History(ctx, bob, alice, base.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, history, reversed)
}

func TestHistoryExcludesExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	msg := appendMessage(t, s, alice, bob, "doomed")
	keep := appendMessage(t, s, alice, bob, "kept")

	_, changed, err := s.MarkRead(ctx, msg.ID, bob, now, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.True(t, changed)

	// Before the destruct time both are visible.
	history, err := s.History(ctx, alice, bob, now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, history, 2)

	// One second past ExpiresAt the read message is gone from history even
	// though the sweeper has not purged it yet.
	history, err = s.History(ctx, alice, bob, now.Add(2*time.Minute+time.Second))
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, keep.ID, history[0].ID)
}

func TestMarkReadArmsTimerOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	grace := 2 * time.Minute

	msg := appendMessage(t, s, alice, bob, "hello")

	read, changed, err := s.MarkRead(ctx, msg.ID, bob, now, now.Add(grace))
	require.NoError(t, err)
	require.True(t, changed)
	require.NotNil(t, read.ReadAt)
	require.NotNil(t, read.ExpiresAt)
	require.True(t, read.ReadAt.Equal(now))
	require.Equal(t, grace, read.ExpiresAt.Sub(*read.ReadAt))

	// A second read must not reset the timer.
	later := now.Add(30 * time.Second)
	again, changed, err := s.MarkRead(ctx, msg.ID, bob, later, later.Add(grace))
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, read.ReadAt, again.ReadAt)
	require.Equal(t, read.ExpiresAt, again.ExpiresAt)
}

func TestMarkReadOnlyByReceiver(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	msg := appendMessage(t, s, alice, bob, "hello")

	// The sender observing their own message does not arm the timer.
	got, changed, err := s.MarkRead(ctx, msg.ID, alice, now, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.False(t, changed)
	require.Nil(t, got.ReadAt)
}

func TestMarkReadUnknownID(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	_, _, err := s.MarkRead(context.Background(), "01JDOESNOTEXIST0000000000X", bob, now, now.Add(time.Minute))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveSenderOnlyWhileUnread(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	msg := appendMessage(t, s, alice, bob, "retracted")

	// Receiver cannot delete.
	_, err := s.Remove(ctx, msg.ID, bob)
	require.ErrorIs(t, err, ErrForbidden)

	// Sender can, while unread.
	removed, err := s.Remove(ctx, msg.ID, alice)
	require.NoError(t, err)
	require.Equal(t, msg.ID, removed.ID)

	history, err := s.History(ctx, alice, bob, now)
	require.NoError(t, err)
	require.Empty(t, history)

	// Gone means gone.
	_, err = s.Remove(ctx, msg.ID, alice)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveAfterReadForbidden(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	msg := appendMessage(t, s, alice, bob, "too late")

	_, changed, err := s.MarkRead(ctx, msg.ID, bob, now, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.True(t, changed)

	_, err = s.Remove(ctx, msg.ID, alice)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestPurgeIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg := appendMessage(t, s, alice, bob, "sweep me")

	removed, err := s.Purge(ctx, msg.ID)
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = s.Purge(ctx, msg.ID)
	require.NoError(t, err)
	require.False(t, removed)
}

func TestFindExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	grace := 2 * time.Minute

	expired := appendMessage(t, s, alice, bob, "old")
	fresh := appendMessage(t, s, alice, bob, "new")
	appendMessage(t, s, alice, bob, "unread")

	_, _, err := s.MarkRead(ctx, expired.ID, bob, now.Add(-3*time.Minute), now.Add(-3*time.Minute).Add(grace))
	require.NoError(t, err)
	_, _, err = s.MarkRead(ctx, fresh.ID, bob, now, now.Add(grace))
	require.NoError(t, err)

	found, err := s.FindExpired(ctx, now)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, expired.ID, found[0].ID)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	appendMessage(t, s, alice, bob, "one")
	read := appendMessage(t, s, alice, bob, "two")
	_, _, err := s.MarkRead(ctx, read.ID, bob, now, now.Add(2*time.Minute))
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, MessageStats{Total: 2, Unread: 1, PendingExpiry: 1}, stats)
}
