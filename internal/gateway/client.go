package gateway

import (
	"context"
	"time"

	"github.com/gofiber/contrib/v3/websocket"
	"github.com/rs/zerolog"

	"github.com/wireline-chat/wireline-server/internal/mailbox"
	"github.com/wireline-chat/wireline-server/internal/wire"
)

const (
	// maxMessageSize is the maximum size in bytes of a single inbound frame.
	maxMessageSize = 4096

	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may go without a pong before the reader gives up on it.
	pongWait = 60 * time.Second
)

// Client represents one live duplex connection. It is created already authenticated: the REST layer validates the
// session_id cookie before the upgrade, so there is no in-band Identify/Resume handshake. Each client runs two
// goroutines, readPump and writePump, communicating through its mailbox.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	mailbox   *mailbox.Mailbox
	log       zerolog.Logger
	userID    uint32
	sessionID string

	// Rate limiting state, only accessed from readPump.
	eventCount  int
	windowStart time.Time
}

func newClient(hub *Hub, conn *websocket.Conn, userID uint32, sessionID string, logger zerolog.Logger) *Client {
	c := &Client{
		hub:       hub,
		conn:      conn,
		userID:    userID,
		sessionID: sessionID,
		log:       logger.With().Uint32("user_id", userID).Str("session_id", sessionID).Logger(),
	}
	c.mailbox = mailbox.New(func() { _ = conn.Close() })
	return c
}

// isTextFrame reports whether a push frame was encoded as JSON text rather than the binary push codec. Presence
// pushes are the only JSON frames; they always begin with '{', a byte value the binary codec's Kind discriminant
// (0-3) never produces.
func isTextFrame(frame []byte) bool {
	return len(frame) > 0 && frame[0] == '{'
}

// readPump reads frames from the socket and dispatches them by type. It exits, and triggers unregistration, on any
// read error or close frame.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	// Queue the pong through the mailbox instead of letting the library's default ping handler write it to the
	// socket directly, so it stays ordered with other pending pushes rather than jumping the queue.
	c.conn.SetPingHandler(func(appData string) error {
		c.mailbox.Enqueue(wire.EncodePong([]byte(appData)))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		if c.rateLimited() {
			c.closeWithCode(CloseRateLimited, "rate limit exceeded")
			return
		}

		c.handleFrame(raw)
	}
}

// handleFrame decodes one client→server text frame and dispatches it to the message pipeline. Unknown "type" values
// and malformed JSON are logged and ignored per §6.2/§7 (DecodeError is non-fatal); the connection stays open.
func (c *Client) handleFrame(raw []byte) {
	frame, err := wire.DecodeClientFrame(raw)
	if err != nil {
		c.log.Debug().Err(err).Msg("discarding malformed client frame")
		return
	}

	ctx := context.Background()
	switch frame.Type {
	case wire.ClientFrameSendMessage:
		if _, err := c.hub.pipeline.SendPrivate(ctx, c.sessionID, frame.Receiver, frame.Message); err != nil {
			c.log.Warn().Err(err).Uint32("receiver", frame.Receiver).Msg("SendMessage rejected")
		}
	case wire.ClientFrameSendGroupMessage:
		if _, err := c.hub.pipeline.SendGroup(ctx, c.sessionID, frame.GroupID, frame.Message); err != nil {
			c.log.Warn().Err(err).Uint32("group_id", frame.GroupID).Msg("SendGroupMessage rejected")
		}
	default:
		c.log.Debug().Str("type", frame.Type).Msg("ignoring unknown client frame type")
	}
}

// writePump drains the mailbox to the socket, preserving FIFO order, until the mailbox closes. Any frames still
// buffered at that point are flushed before the loop exits.
func (c *Client) writePump() {
	defer func() { _ = c.conn.Close() }()

	ticker := time.NewTicker(pongWait / 2)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.mailbox.Frames():
			if err := c.write(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.mailbox.Done():
			for _, frame := range c.mailbox.Drain() {
				if err := c.write(frame); err != nil {
					return
				}
			}
			return
		}
	}
}

func (c *Client) write(frame []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if payload, ok := wire.IsPong(frame); ok {
		if err := c.conn.WriteControl(websocket.PongMessage, payload, time.Now().Add(writeWait)); err != nil {
			c.log.Debug().Err(err).Msg("pong write error")
			return err
		}
		return nil
	}

	kind := websocket.BinaryMessage
	if isTextFrame(frame) {
		kind = websocket.TextMessage
	}
	if err := c.conn.WriteMessage(kind, frame); err != nil {
		c.log.Debug().Err(err).Msg("write error")
		return err
	}
	return nil
}

// closeWithCode sends a close frame with the given code and reason, then tears the connection down.
func (c *Client) closeWithCode(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = c.conn.Close()
}

// rateLimited reports whether the client has exceeded the configured inbound-frame rate limit within the current
// sliding window.
func (c *Client) rateLimited() bool {
	now := time.Now()
	window := c.hub.rateLimitWindow
	if now.Sub(c.windowStart) > window {
		c.eventCount = 0
		c.windowStart = now
	}
	c.eventCount++
	return c.eventCount > c.hub.rateLimitCount
}
