package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sathvikchoudar61/EduStealth/internal/chat"
	"github.com/sathvikchoudar61/EduStealth/internal/crypto"
	"github.com/sathvikchoudar61/EduStealth/internal/metrics"
	"github.com/sathvikchoudar61/EduStealth/internal/models"
	"github.com/sathvikchoudar61/EduStealth/internal/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = chat.MaxContentBytes + 2048 // ciphertext plus envelope overhead
	sendBufferSize = 64
	dispatchWait   = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The bearer token is the access control; clients connect from
	// arbitrary origins just like the REST API, so the Origin header is
	// deliberately not consulted.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one authenticated socket connection, bound to a single
// identity's room for its whole lifetime.
type Client struct {
	hub      *Hub
	coord    *chat.Coordinator
	conn     *websocket.Conn
	identity string
	send     chan []byte
	done     chan struct{}
	closing  sync.Once
	logger   zerolog.Logger
}

// ServeWS upgrades an authenticated request to a websocket and binds the
// connection to the token subject's room. Browsers cannot set headers on
// websocket requests, so the token is accepted from the "token" query
// parameter as well as the Authorization header.
func ServeWS(hub *Hub, coord *chat.Coordinator, jwtSecret string, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		identity, err := crypto.ParseUserToken(jwtSecret, token)
		if err != nil {
			http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := &Client{
			hub:      hub,
			coord:    coord,
			conn:     conn,
			identity: identity,
			send:     make(chan []byte, sendBufferSize),
			done:     make(chan struct{}),
			logger:   logger.With().Str("identity", identity).Logger(),
		}

		hub.Join(client)
		metrics.SocketConnections.Inc()

		go client.writePump()
		go client.readPump()
	}
}

// enqueue offers a frame to the connection without blocking. A false return
// means the buffer is full or the connection is shutting down.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// drop shuts the connection down. Safe to call more than once; the send
// channel is never closed so concurrent fan-out cannot panic.
func (c *Client) drop() {
	c.closing.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// sendError reports a failure to this connection only.
func (c *Client) sendError(message string) {
	frame, err := json.Marshal(models.Envelope{
		Event: models.EventError,
		Data:  models.ErrorPayload{Message: message},
	})
	if err != nil {
		return
	}
	c.enqueue(frame)
}

// inboundEnvelope defers payload decoding until the event is known.
type inboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// readPump reads client events and dispatches them to the coordinator. One
// goroutine per connection; it owns all reads.
func (c *Client) readPump() {
	defer func() {
		c.hub.Leave(c)
		c.drop()
		metrics.SocketConnections.Dec()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("socket closed unexpectedly")
			}
			return
		}

		var env inboundEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.sendError("malformed event")
			continue
		}
		c.dispatch(env)
	}
}

// dispatch routes one inbound event. The sender identity always comes from
// the authenticated connection, never from the payload.
func (c *Client) dispatch(env inboundEnvelope) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchWait)
	defer cancel()

	switch env.Event {
	case models.EventJoin:
		// The connection joined its own room at upgrade time; an explicit
		// join is accepted for client compatibility but may not name
		// anyone else.
		var p models.JoinPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || (p.Identity != "" && p.Identity != c.identity) {
			c.sendError("cannot join another user's room")
		}

	case models.EventSendMessage:
		var p models.SendMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendError("malformed event")
			return
		}
		_, err := c.coord.Send(ctx, chat.SendInput{
			SenderID:   c.identity,
			ReceiverID: p.ReceiverID,
			Content:    p.Content,
			Kind:       p.Kind,
			ImageURL:   p.ImageURL,
		})
		if err != nil {
			c.logger.Warn().Err(err).Msg("send failed")
			c.sendError(sendErrorMessage(err))
		}

	case models.EventReadMessage:
		var p models.ReadMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendError("malformed event")
			return
		}
		if err := c.coord.MarkRead(ctx, p.MessageID, c.identity); err != nil {
			c.logger.Error().Err(err).Str("message_id", p.MessageID).Msg("mark read failed")
		}

	case models.EventTyping:
		var p models.TypingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		c.coord.Typing(c.identity, p.ReceiverID)

	default:
		c.sendError("unknown event")
	}
}

// sendErrorMessage maps send failures to user-facing messages.
func sendErrorMessage(err error) string {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, chat.ErrContentTooLarge):
		return "message too large"
	default:
		return "failed to send message"
	}
}

// writePump writes queued frames and keeps the connection alive with pings.
// One goroutine per connection; it owns all writes.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
