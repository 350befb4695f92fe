package ws

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sathvikchoudar61/EduStealth/internal/models"
)

func newTestClient(identity string, buffer int) *Client {
	return &Client{
		identity: identity,
		send:     make(chan []byte, buffer),
		done:     make(chan struct{}),
		logger:   zerolog.Nop(),
	}
}

func receiveEnvelope(t *testing.T, c *Client) models.Envelope {
	t.Helper()
	select {
	case frame := <-c.send:
		var env models.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	default:
		t.Fatal("expected a queued frame")
		return models.Envelope{}
	}
}

func TestEmitToUserReachesAllConnections(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	// Two devices for the same identity, one for somebody else.
	phone := newTestClient("user-a", 4)
	laptop := newTestClient("user-a", 4)
	other := newTestClient("user-b", 4)
	hub.Join(phone)
	hub.Join(laptop)
	hub.Join(other)

	hub.EmitToUser("user-a", models.EventRead, models.ReadPayload{MessageID: "m1"})

	for _, c := range []*Client{phone, laptop} {
		env := receiveEnvelope(t, c)
		require.Equal(t, models.EventRead, env.Event)
	}
	require.Empty(t, other.send)
}

func TestEmitToEmptyRoomIsDropped(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	// No durable queue: nobody home means the event is gone.
	hub.EmitToUser("nobody", models.EventTyping, models.TypingPayload{})
	require.False(t, hub.IsOnline("nobody"))
}

func TestJoinIsIdempotent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := newTestClient("user-a", 4)

	hub.Join(c)
	hub.Join(c)

	users, connections := hub.Presence()
	require.Equal(t, 1, users)
	require.Equal(t, 1, connections)
}

func TestLeaveRemovesEmptyRoom(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := newTestClient("user-a", 4)

	hub.Join(c)
	require.True(t, hub.IsOnline("user-a"))

	hub.Leave(c)
	require.False(t, hub.IsOnline("user-a"))

	// Leaving twice is harmless.
	hub.Leave(c)

	users, connections := hub.Presence()
	require.Equal(t, 0, users)
	require.Equal(t, 0, connections)
}

func TestSlowConnectionIsDropped(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := newTestClient("user-a", 1)
	hub.Join(c)

	hub.EmitToUser("user-a", models.EventRead, models.ReadPayload{MessageID: "m1"})
	// Second emit overflows the buffer; the client must be shut down
	// rather than stalling fan-out for everyone else.
	hub.EmitToUser("user-a", models.EventRead, models.ReadPayload{MessageID: "m2"})

	select {
	case <-c.done:
	default:
		t.Fatal("expected overflowing client to be dropped")
	}
	require.False(t, c.enqueue([]byte("{}")))
}

func TestPresenceCountsDistinctUsers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.Join(newTestClient("user-a", 1))
	hub.Join(newTestClient("user-a", 1))
	hub.Join(newTestClient("user-b", 1))

	users, connections := hub.Presence()
	require.Equal(t, 2, users)
	require.Equal(t, 3, connections)
}
