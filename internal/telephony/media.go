package telephony

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/voicebridge/voicebridge/internal/config"
	"github.com/voicebridge/voicebridge/internal/metrics"
)

// Media stream frame events, as sent by the telephony provider
const (
	FrameConnected = "connected"
	FrameStart     = "start"
	FrameMedia     = "media"
	FrameStop      = "stop"
	FrameMark      = "mark"
	FrameClear     = "clear"
)

// Frame is one message on the media stream websocket
type Frame struct {
	Event     string      `json:"event"`
	StreamSID string      `json:"streamSid,omitempty"`
	Start     *StartFrame `json:"start,omitempty"`
	Media     *MediaFrame `json:"media,omitempty"`
	Mark      *MarkFrame  `json:"mark,omitempty"`
}

// StartFrame opens a stream and binds it to a call
type StartFrame struct {
	CallSID          string            `json:"callSid"`
	StreamSID        string            `json:"streamSid"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// MediaFrame carries one base64-encoded audio chunk
type MediaFrame struct {
	Payload string `json:"payload"`
}

// MarkFrame is a playback checkpoint echoed back by the provider
type MarkFrame struct {
	Name string `json:"name"`
}

// MediaChannel is the caller-audio leg of one session: a websocket from
// the telephony provider carrying audio both ways.
type MediaChannel struct {
	conn      *websocket.Conn
	streamSID string
	send      chan []byte
	config    *config.Config
	logger    zerolog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewMediaChannel wraps an upgraded media stream connection
func NewMediaChannel(conn *websocket.Conn, cfg *config.Config, logger zerolog.Logger) *MediaChannel {
	return &MediaChannel{
		conn:   conn,
		send:   make(chan []byte, 256),
		config: cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start launches the write pump. The caller owns the read side.
func (c *MediaChannel) Start() {
	go c.writePump()
}

// BindStream records the stream id used on outbound frames
func (c *MediaChannel) BindStream(streamSID string) {
	c.streamSID = streamSID
}

// ReadFrame reads and decodes the next inbound frame. Must only be
// called from a single goroutine.
func (c *MediaChannel) ReadFrame() (Frame, error) {
	c.conn.SetReadLimit(c.config.MaxMessageSize)
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return Frame{}, err
	}

	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Frame{}, fmt.Errorf("malformed media frame: %w", err)
	}
	return frame, nil
}

// SendAudio queues one base64 audio chunk for the caller
func (c *MediaChannel) SendAudio(payload string) error {
	return c.enqueue(Frame{
		Event:     FrameMedia,
		StreamSID: c.streamSID,
		Media:     &MediaFrame{Payload: payload},
	})
}

// Clear tells the provider to drop any audio it has buffered but not
// yet played. Used on barge-in.
func (c *MediaChannel) Clear() error {
	return c.enqueue(Frame{Event: FrameClear, StreamSID: c.streamSID})
}

// SendMark queues a playback checkpoint
func (c *MediaChannel) SendMark(name string) error {
	return c.enqueue(Frame{
		Event:     FrameMark,
		StreamSID: c.streamSID,
		Mark:      &MarkFrame{Name: name},
	})
}

func (c *MediaChannel) enqueue(frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to encode media frame: %w", err)
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return fmt.Errorf("media channel closed")
	default:
		// A full queue means the provider stopped draining; audio is
		// real-time, dropping beats blocking the session.
		metrics.Get().RecordMediaFrameDropped()
		c.logger.Warn().Str("event", frame.Event).Msg("media send queue full, dropping frame")
		return nil
	}
}

// Close shuts down the write pump and the underlying connection
func (c *MediaChannel) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// writePump drains the send queue onto the connection and keeps the
// connection alive with pings. There is at most one writer.
func (c *MediaChannel) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug().Err(err).Msg("media write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
