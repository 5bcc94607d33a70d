package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	connectTimeout = 10 * time.Second
	writeTimeout   = 10 * time.Second
)

// Channel is the duplex event channel to the speech backend.
// All methods are safe for concurrent use.
type Channel interface {
	Configure(cfg SessionConfig) error
	AppendAudio(b64 string) error
	CreateResponse(instructions string) error
	CancelResponse() error
	SendToolResult(callID string, output []byte) error
	Events() <-chan Event
	Close() error
}

// Client is a websocket Channel implementation
type Client struct {
	conn   *websocket.Conn
	events chan Event
	logger zerolog.Logger

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

// Dial connects to the speech backend and starts the read loop
func Dial(ctx context.Context, url, apiKey string, logger zerolog.Logger) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: connectTimeout}

	header := http.Header{}
	if apiKey != "" {
		header.Set("Authorization", "Bearer "+apiKey)
	}

	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to speech backend: %w", err)
	}

	c := &Client{
		conn:   conn,
		events: make(chan Event, 64),
		logger: logger,
	}
	go c.readLoop()
	return c, nil
}

// Events returns the channel on which decoded backend events arrive.
// The channel is closed after an EventClosed is delivered.
func (c *Client) Events() <-chan Event {
	return c.events
}

// readPump delivers decoded events until the connection drops.
// Malformed frames are dropped with a log entry; the session continues.
func (c *Client) readLoop() {
	defer func() {
		c.events <- Event{Type: EventClosed}
		close(c.events)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Error().Err(err).Msg("speech backend read error")
			}
			return
		}

		event, ok, err := decodeEvent(data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("dropping malformed backend event")
			continue
		}
		if !ok {
			c.logger.Debug().Str("payload", string(data)).Msg("ignoring unknown backend event type")
			continue
		}

		c.events <- event
	}
}

// Configure sends the session configuration
func (c *Client) Configure(cfg SessionConfig) error {
	return c.send(wireEvent{Type: "session.configure", Session: &cfg})
}

// AppendAudio forwards one base64 caller audio frame
func (c *Client) AppendAudio(b64 string) error {
	return c.send(wireEvent{Type: "audio.append", Audio: b64})
}

// CreateResponse requests a new assistant generation. Instructions are
// optional one-off guidance layered over the session instructions.
func (c *Client) CreateResponse(instructions string) error {
	return c.send(wireEvent{Type: "response.create", Instructions: instructions})
}

// CancelResponse cancels the in-flight generation, if any. The channel
// stays open; only teardown closes it.
func (c *Client) CancelResponse() error {
	return c.send(wireEvent{Type: "response.cancel"})
}

// SendToolResult answers a tool call. Exactly one result per request.
func (c *Client) SendToolResult(callID string, output []byte) error {
	return c.send(wireEvent{Type: "tool.result", CallID: callID, Output: output})
}

func (c *Client) send(w wireEvent) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", w.Type, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send %s: %w", w.Type, err)
	}
	return nil
}

// Close shuts the connection down. Safe to call more than once.
func (c *Client) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	return c.conn.Close()
}
