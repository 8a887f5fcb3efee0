// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

package broker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/dhanush6701/kubepulse/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // 64 KB; chat and control frames only
)

// clientIDCounter generates unique, monotonically increasing client ids so
// fan-out can visit members in a deterministic order.
var clientIDCounter atomic.Uint64

// Client is the middleman between one websocket connection and the hub.
// It exists from connect to disconnect and owns nothing but its send
// queue; on teardown the hub removes it from every room it joined.
type Client struct {
	id        uint64
	hub       *Hub
	conn      *websocket.Conn
	namespace string
	userID    string
	username  string

	// sendMu serializes queueing against teardown. Producers outside the
	// hub's Run goroutine (history on join, pong replies) enqueue while
	// the hub may be closing the channel; the closed flag makes that a
	// dropped event instead of a send on a closed channel.
	sendMu     sync.Mutex
	sendClosed bool
	send       chan Event
}

// NewClient creates a Client for an upgraded connection. userID and
// username come from the verified token; log-namespace clients may leave
// them empty.
func NewClient(hub *Hub, conn *websocket.Conn, namespace, userID, username string) *Client {
	return &Client{
		id:        clientIDCounter.Add(1),
		hub:       hub,
		conn:      conn,
		send:      make(chan Event, 256),
		namespace: namespace,
		userID:    userID,
		username:  username,
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// enqueue places an event on the send queue without blocking. Reports
// false when the queue is full or the client has been torn down.
func (c *Client) enqueue(evt Event) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- evt:
		return true
	default:
		return false
	}
}

// closeSend closes the send queue exactly once. Only the hub calls this;
// after it returns every enqueue reports false.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

// Start registers the client with the hub and begins its pumps.
func (c *Client) Start() {
	c.hub.Register <- c
	go c.writePump()
	go c.readPump()
}

// inboundFrame is the wire form of a client-to-server event.
type inboundFrame struct {
	Type string          `json:"type"`
	Room string          `json:"room,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// sendMessagePayload is the data carried by a send_message frame.
type sendMessagePayload struct {
	Room string `json:"room,omitempty"`
	Text string `json:"text"`
}

// readPump pumps frames from the websocket connection into the hub.
// One goroutine per connection; because dispatch is sequential here, a
// producer's events reach the hub in the order it sent them.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame inboundFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Msg("unexpected websocket close")
			}
			return
		}
		c.dispatch(&frame)
	}
}

// dispatch routes one inbound frame. Unknown types are ignored; frames
// that belong to the other namespace are ignored too.
func (c *Client) dispatch(frame *inboundFrame) {
	switch frame.Type {
	case EventPing:
		c.enqueue(Event{Type: EventPong})

	case EventJoinRoom:
		if c.namespace != NamespaceChat {
			return
		}
		c.hub.Join(context.Background(), c, frame.Room)

	case EventSendMessage:
		if c.namespace != NamespaceChat {
			return
		}
		var payload sendMessagePayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			logging.Warn().Err(err).Uint64("client", c.id).Msg("malformed send_message payload")
			return
		}
		if payload.Text == "" {
			return
		}
		c.hub.PublishChat(context.Background(), c, payload.Room, payload.Text)

	case EventJoinLogRoom:
		if c.namespace != NamespaceLogs {
			return
		}
		c.hub.Join(context.Background(), c, frame.Room)

	case EventLeaveLogRoom:
		if c.namespace != NamespaceLogs {
			return
		}
		c.hub.Leave(c, frame.Room)
	}
}

// writePump pumps events from the hub to the websocket connection and
// keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(evt); err != nil {
				logging.Error().Err(err).Msg("failed to write websocket event")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
