package api

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/voicebridge/voicebridge/internal/config"
	"github.com/voicebridge/voicebridge/internal/session"
	"github.com/voicebridge/voicebridge/internal/telephony"
	"github.com/voicebridge/voicebridge/internal/types"
)

// TelephonyHandler serves the gateway-facing webhooks: the inbound voice
// webhook and the status callbacks for calls and dial attempts.
type TelephonyHandler struct {
	manager *session.Manager
	config  *config.Config
	logger  zerolog.Logger
}

// NewTelephonyHandler creates the webhook handler
func NewTelephonyHandler(manager *session.Manager, cfg *config.Config, logger zerolog.Logger) *TelephonyHandler {
	return &TelephonyHandler{manager: manager, config: cfg, logger: logger}
}

// HandleInboundVoice answers the gateway's new-call webhook with TwiML
// that connects the call's media stream to this server.
func (h *TelephonyHandler) HandleInboundVoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	callSID := r.FormValue("CallSid")
	from := r.FormValue("From")
	to := r.FormValue("To")

	h.logger.Info().
		Str("call_sid", callSID).
		Str("from", from).
		Str("to", to).
		Msg("inbound call")

	wsURL := websocketURL(h.config.PublicBaseURL) + "/ws/media"
	doc := telephony.StreamResponse(wsURL, map[string]string{
		"from":   from,
		"to":     to,
		"locale": r.FormValue("CallerCountry"),
	})

	body, err := doc.Render()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to render stream response")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// HandleCallStatus processes call lifecycle callbacks
func (h *TelephonyHandler) HandleCallStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	callSID := r.FormValue("CallSid")
	status := types.CallStatus(r.FormValue("CallStatus"))

	h.logger.Debug().Str("call_sid", callSID).Str("status", string(status)).Msg("call status callback")
	h.manager.HandleCallStatus(callSID, status)
	w.WriteHeader(http.StatusNoContent)
}

// HandleDialStatus processes the action callback of a transfer dial.
// The gateway reports the outcome of the dialed leg here.
func (h *TelephonyHandler) HandleDialStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	callSID := r.FormValue("CallSid")
	if callSID == "" {
		callSID = r.URL.Query().Get("callSid")
	}
	status := types.CallStatus(r.FormValue("DialCallStatus"))

	h.logger.Info().Str("call_sid", callSID).Str("status", string(status)).Msg("dial status callback")
	h.manager.HandleDialStatus(callSID, status)

	// The call returns to gateway control; an empty document keeps it alive
	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`)
}

// HandleVoicemailStatus runs after a voicemail recording finishes
func (h *TelephonyHandler) HandleVoicemailStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	callSID := r.FormValue("CallSid")
	if callSID == "" {
		callSID = r.URL.Query().Get("callSid")
	}

	h.logger.Info().
		Str("call_sid", callSID).
		Str("recording_url", r.FormValue("RecordingUrl")).
		Msg("voicemail recorded")
	h.manager.EndSessionByCallID(callSID, types.OutcomeVoicemail)

	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Response><Hangup></Hangup></Response>`)
}

// websocketURL rewrites the public base URL to its websocket scheme
func websocketURL(base string) string {
	switch {
	case len(base) > 8 && base[:8] == "https://":
		return "wss://" + base[8:]
	case len(base) > 7 && base[:7] == "http://":
		return "ws://" + base[7:]
	}
	return base
}
