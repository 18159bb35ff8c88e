package ws_session

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/reelpick/core/internal/session"
)

const sendBuffer = 256

// Client wraps one websocket connection and implements session.Endpoint.
// The session core holds it as an opaque sendable handle.
type Client struct {
	conn   *websocket.Conn
	send   chan session.Event
	logger *slog.Logger

	mu      sync.Mutex
	closed  bool
	room    *session.Room
	youID   uuid.UUID
	bound   bool
	removed bool // left or kicked; socket close must not arm a grace timer
}

func newClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		conn:   conn,
		send:   make(chan session.Event, sendBuffer),
		logger: logger,
	}
}

// Send queues an event for the write pump. A slow or dead client drops the
// frame rather than blocking the room.
func (c *Client) Send(evt session.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- evt:
	default:
		c.logger.Warn("send buffer full, dropping frame", "type", evt.Type)
	}
}

// CloseWithReason delivers a kicked event with a displayable reason, then
// tears the connection down.
func (c *Client) CloseWithReason(reason string) {
	c.mu.Lock()
	c.removed = true
	c.mu.Unlock()

	c.Send(session.Event{Type: session.EventKicked, Payload: session.ErrorPayload{Message: reason}})
	c.shutdown()
}

func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) bind(room *session.Room, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = room
	c.youID = id
	c.bound = true
	c.removed = false
}

func (c *Client) unbind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = nil
	c.youID = uuid.Nil
	c.bound = false
	c.removed = true
}

func (c *Client) binding() (*session.Room, uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room, c.youID, c.bound
}

func (c *Client) wasRemoved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removed
}

// writePump flushes queued events until the send channel closes.
func (c *Client) writePump() {
	defer c.conn.Close()

	for evt := range c.send {
		frame, err := json.Marshal(evt)
		if err != nil {
			c.logger.Error("failed to marshal event", "type", evt.Type, "error", err)
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			break
		}
	}
}
