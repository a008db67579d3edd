// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/cinesync/cinesync/internal/channel"
	"github.com/cinesync/cinesync/internal/logging"
	"github.com/cinesync/cinesync/internal/models"
	"github.com/cinesync/cinesync/internal/party"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // 64 KB, chat and control frames only
)

// Control frame names carried alongside the party events.
const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// clientIDCounter generates unique, monotonically increasing IDs for
// clients so shutdown can close them in a consistent order.
var clientIDCounter atomic.Uint64

// Client bridges one websocket connection, one party membership and one
// channel subscription.
type Client struct {
	id       uint64
	hub      *Hub
	conn     *websocket.Conn
	send     chan Message
	partyID  string
	identity models.Identity
	svc      *party.Service
	sub      *channel.Subscription

	// sendMu and sendClosed make enqueue safe against release: the
	// subscription keeps delivering buffered events after Close, and the
	// read pump can emit pongs, so every send must observe the closed
	// flag under the lock before touching the channel.
	sendMu      sync.Mutex
	sendClosed  bool
	releaseOnce sync.Once
}

// NewClient creates a client for an authorized party member. The
// subscription must already be scoped to the same party.
func NewClient(hub *Hub, conn *websocket.Conn, svc *party.Service, sub *channel.Subscription, partyID string, identity models.Identity) *Client {
	return &Client{
		id:       clientIDCounter.Add(1),
		hub:      hub,
		conn:     conn,
		send:     make(chan Message, 256),
		partyID:  partyID,
		identity: identity,
		svc:      svc,
		sub:      sub,
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// release closes the channel subscription and the outbound queue. Safe
// to call from any exit path; only the first call acts.
func (c *Client) release() {
	c.releaseOnce.Do(func() {
		c.sub.Close()
		c.sendMu.Lock()
		c.sendClosed = true
		close(c.send)
		c.sendMu.Unlock()
	})
}

// enqueue queues one outbound message. It reports false when the client
// is released or the queue is full; either way the message is dropped.
func (c *Client) enqueue(msg Message) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// bridgePump forwards party channel events to the outbound queue. It
// exits when the subscription is closed.
func (c *Client) bridgePump() {
	for ev := range c.sub.Events() {
		msg := Message{Event: ev.Name, Data: json.RawMessage(ev.Payload)}
		if !c.enqueue(msg) {
			logging.Warn().
				Str("party_id", c.partyID).
				Str("user_id", c.identity.ID).
				Str("event", ev.Name).
				Msg("client send queue full or released, dropping event")
		}
	}
}

// readPump pumps inbound frames from the connection, republishing video
// updates and chat onto the party channel. The service re-checks
// authorization on every publish, so a non-host sending a video update is
// rejected here exactly as it would be over HTTP.
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
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Msg("unexpected websocket close error")
			}
			break
		}

		c.handleInbound(msg)
	}
}

func (c *Client) handleInbound(msg Message) {
	ctx := context.Background()

	switch msg.Event {
	case MessageTypePing:
		c.enqueue(Message{Event: MessageTypePong})

	case models.EventVideoUpdate:
		var update models.VideoUpdate
		if err := remarshal(msg.Data, &update); err != nil {
			logging.Warn().Err(err).Str("party_id", c.partyID).Msg("malformed inbound video update")
			return
		}
		if err := c.svc.PublishVideoUpdate(ctx, c.identity, c.partyID, update); err != nil {
			logging.Warn().
				Err(err).
				Str("party_id", c.partyID).
				Str("user_id", c.identity.ID).
				Msg("inbound video update rejected")
		}

	case models.EventChatMessage:
		var chat models.ChatMessage
		if err := remarshal(msg.Data, &chat); err != nil {
			logging.Warn().Err(err).Str("party_id", c.partyID).Msg("malformed inbound chat message")
			return
		}
		if err := c.svc.PublishChat(ctx, c.identity, c.partyID, chat.Text); err != nil {
			logging.Warn().
				Err(err).
				Str("party_id", c.partyID).
				Str("user_id", c.identity.ID).
				Msg("inbound chat message rejected")
		}
	}
}

// remarshal decodes the loosely typed frame data into a concrete struct.
func remarshal(data interface{}, out interface{}) error {
	raw, ok := data.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		raw = b
	}
	return json.Unmarshal(raw, out)
}

// writePump pumps queued messages to the connection and keeps the
// connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub released this client
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Error().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logging.Error().Err(err).Msg("failed to write JSON message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins the read, write and bridge pumps for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
	go c.bridgePump()
}
