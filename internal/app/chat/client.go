/*
Package chat contains the action engine, the websocket client and the Manager that
owns every piece of shared chat state.

This file defines the Client struct, representing an active WebSocket connection. It
implements session.Conn and runs the two per-connection loops: ReadPump feeds frames to
the Engine in arrival order, WritePump serializes every outbound frame.
*/
package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatcoord/internal/app/protocol"
	"chatcoord/internal/pkg/errs"
	"chatcoord/internal/pkg/logx"
	"chatcoord/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 16384
)

var (
	// ErrClientClosed is returned by Send once the client has been closed.
	ErrClientClosed = errors.New("client closed")

	// ErrSendQueueFull is returned by Send when the outbound queue is saturated.
	ErrSendQueueFull = errors.New("client send queue full")
)

// Client struct represents an active WebSocket connection and its bound user.
type Client struct {
	id string

	// underlying WebSocket connection object.
	conn *websocket.Conn

	engine *Engine

	// a buffered channel used to queue frames waiting to be written to the client.
	send chan []byte

	// mu guards closed, the close frame fields and both identities. Send holds the read lock
	// so that Close cannot close the channel under a concurrent send.
	mu           sync.RWMutex
	closed       bool
	closeCode    int
	closeReason  string
	identity     string
	lastIdentity string

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewClient constructs and returns a new Client instance.
func NewClient(wsConn *websocket.Conn, engine *Engine, bufferSize int, remoteAddr string) *Client {
	id := randx.ConnID()

	return &Client{
		id:     id,
		conn:   wsConn,
		engine: engine,
		send:   make(chan []byte, bufferSize),
		logger: logx.Logger().With().
			Str("conn_id", id).
			Str("remote_addr", remoteAddr).
			Logger(),
	}
}

func (c *Client) ID() string { return c.id }

// Send queues one frame for the writer. It never blocks.
func (c *Client) Send(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClientClosed
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping frame")
		return ErrSendQueueFull
	}
}

// Close stops accepting frames. The writer flushes what is queued, then sends a
// close frame with code and reason.
func (c *Client) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	close(c.send)
}

func (c *Client) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

func (c *Client) Identity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

func (c *Client) SetIdentity(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = username
	if username != "" {
		c.lastIdentity = username
	}
}

// LastIdentity returns the most recent username bound to the connection. It
// survives logout and disconnect cleanup.
func (c *Client) LastIdentity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastIdentity
}

// ReadPump reads frames from the WebSocket connection and handles them one at a time,
// preserving arrival order. It releases the session when the connection ends.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		if messageType != websocket.TextMessage {
			c.replyError(errs.NewError(errs.ErrInvalidFrame))
			continue
		}

		c.engine.Handle(c, data)
	}
}

// cleanupOnDisconnect handles the necessary cleanup steps when the client's ReadPump terminates.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Str("username", c.Identity()).Msg("Client connection cleanup starting.")

	c.engine.Disconnect(c)
	c.Close(websocket.CloseNormalClosure, "")
}

func (c *Client) replyError(err error) {
	frame, encErr := protocol.Encode(protocol.Error(err))
	if encErr != nil {
		c.logger.Error().Err(encErr).Msg("Failed to encode error frame")
		return
	}
	_ = c.Send(frame)
}

// WritePump handles writing frames from the Client.send channel to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				c.writeCloseMessage()
				return
			}
			if !c.writeFrame(frame) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeFrame writes one queued frame. Returns false if the WritePump loop should terminate.
func (c *Client) writeFrame(frame []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writeCloseMessage sends the close frame recorded by Close.
func (c *Client) writeCloseMessage() {
	c.mu.RLock()
	code, reason := c.closeCode, c.closeReason
	c.mu.RUnlock()

	if code == 0 {
		code = websocket.CloseNormalClosure
	}

	c.logger.Info().Int("close_code", code).Str("reason", reason).Msg("Sending WS close message.")

	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to send WS close message.")
	}
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
