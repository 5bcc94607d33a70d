package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/voicebridge/voicebridge/internal/config"
	"github.com/voicebridge/voicebridge/internal/session"
	"github.com/voicebridge/voicebridge/internal/telephony"
	"github.com/voicebridge/voicebridge/internal/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Media streams originate from the telephony gateway, not browsers
		return true
	},
}

// MediaHandler accepts media stream connections from the gateway and
// binds each one to a session.
type MediaHandler struct {
	manager *session.Manager
	config  *config.Config
	logger  zerolog.Logger
}

// NewMediaHandler creates the media stream handler
func NewMediaHandler(manager *session.Manager, cfg *config.Config, logger zerolog.Logger) *MediaHandler {
	return &MediaHandler{manager: manager, config: cfg, logger: logger}
}

// ServeHTTP upgrades the connection and runs the frame loop. The session
// is created on the start frame, which names the call and carries the
// routing parameters.
func (h *MediaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade media connection")
		return
	}

	channel := telephony.NewMediaChannel(conn, h.config, h.logger)
	channel.Start()

	var sess *session.Session
	defer func() {
		channel.Close()
		if sess != nil {
			sess.End(types.OutcomeRemoteClose)
		}
	}()

	for {
		frame, err := channel.ReadFrame()
		if err != nil {
			if sess != nil {
				h.logger.Info().Str("session_id", sess.ID).Msg("media stream closed")
			}
			return
		}

		switch frame.Event {
		case telephony.FrameConnected:
			// Handshake frame, nothing to bind yet

		case telephony.FrameStart:
			if frame.Start == nil || sess != nil {
				continue
			}
			channel.BindStream(frame.Start.StreamSID)

			params := session.StartParams{
				CallID:   frame.Start.CallSID,
				StreamID: frame.Start.StreamSID,
				From:     frame.Start.CustomParameters["from"],
				To:       frame.Start.CustomParameters["to"],
				Locale:   frame.Start.CustomParameters["locale"],
			}
			sess, err = h.manager.StartSession(r.Context(), params, channel)
			if err != nil {
				h.logger.Error().Err(err).Str("call_sid", frame.Start.CallSID).Msg("failed to start session")
				return
			}

		case telephony.FrameMedia:
			if sess != nil && frame.Media != nil {
				sess.HandleInboundAudio(frame.Media.Payload)
			}

		case telephony.FrameStop:
			if sess != nil {
				sess.End(types.OutcomeRemoteClose)
				sess = nil
			}
			return

		case telephony.FrameMark:
			// Playback checkpoints are not used on the inbound side
		}
	}
}
