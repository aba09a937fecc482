/*
Package chat runs the single shared chat room: it tracks open WebSocket connections, owns the
presence counter, and relays chat messages and presence events to every connection.

This file defines the Client struct, representing an active WebSocket connection. It manages
the connection's read and write loops and hands everything it reads to the Hub.
*/
package chat

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sockchat/internal/app/user"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// MaxFrameBytes is the largest frame a client may send; bigger frames close the connection.
	MaxFrameBytes = 64 << 10

	// SendBufferSize is the per-connection outbound queue. A client that falls this far
	// behind is disconnected.
	SendBufferSize = 256
)

// Client is one open WebSocket connection bound to the identity it was accepted with.
type Client struct {
	hub *Hub

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// identity fixed at handshake time, never re-validated.
	identity user.Identity

	// a buffered channel of frames waiting to be written. Closed only by the Hub.
	send chan []byte

	// structured logger with connection context.
	logger zerolog.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, identity user.Identity) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		identity: identity,
		send:     make(chan []byte, SendBufferSize),
		logger: hub.logger.With().
			Str("username", identity.Username).
			Str("remote_addr", conn.RemoteAddr().String()).
			Logger(),
	}
}

// Identity returns the identity bound to the connection.
func (c *Client) Identity() user.Identity {
	return c.identity
}

// readPump reads frames until the connection fails, then unregisters the client.
func (c *Client) readPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(MaxFrameBytes)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Connection closed unexpectedly")
			}
			return
		}

		if !c.processInboundFrame(frame) {
			return
		}
	}
}

// cleanupOnDisconnect unregisters the client. The send is blocking so the presence count can
// never miss a departure; it only gives up when the hub itself has stopped.
func (c *Client) cleanupOnDisconnect() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// processInboundFrame decodes one client frame. It returns false when the hub is gone.
func (c *Client) processInboundFrame(frame []byte) bool {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		c.logger.Warn().Err(err).Int("frame_bytes", len(frame)).Msg("Client sent invalid JSON")
		return true
	}

	switch env.Event {
	case EventChatMessage:
		text, err := decodeChatText(env.Data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Client sent invalid chat message payload")
			return true
		}

		select {
		case c.hub.inbound <- inboundMessage{from: c, text: text}:
			return true
		case <-c.hub.done:
			return false
		}

	default:
		c.logger.Debug().Str("event", env.Event).Msg("Client sent unsupported event")
		return true
	}
}

// writePump drains the send queue onto the connection and keeps the heartbeat going.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in writePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueuedFrame(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedFrame writes one frame, or a close frame once the hub has closed the queue.
// Returns false when the loop should terminate.
func (c *Client) writeQueuedFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends the periodic heartbeat. Returns false on write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Debug().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
