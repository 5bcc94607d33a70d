package speech

import "encoding/json"

// EventType identifies a speech-backend event
type EventType string

const (
	// EventSessionReady is emitted once the backend accepted configuration
	EventSessionReady EventType = "session.ready"

	// EventAudioDelta carries a chunk of synthesized assistant audio
	EventAudioDelta EventType = "audio.delta"

	// EventResponseStarted marks the beginning of an assistant generation
	EventResponseStarted EventType = "response.started"

	// EventResponseDone marks completion or cancellation of a generation
	EventResponseDone EventType = "response.done"

	// EventSpeechStarted signals the caller began talking
	EventSpeechStarted EventType = "input.speech_started"

	// EventSpeechStopped signals the caller stopped talking
	EventSpeechStopped EventType = "input.speech_stopped"

	// EventTranscriptFinal carries a finalized utterance transcript
	EventTranscriptFinal EventType = "transcript.final"

	// EventToolCall is a structured function invocation request
	EventToolCall EventType = "tool.call"

	// EventError reports a backend-side error
	EventError EventType = "error"

	// EventClosed is emitted locally when the channel shuts down
	EventClosed EventType = "closed"
)

// ResponseStatus reports how a generation ended
type ResponseStatus string

const (
	ResponseCompleted ResponseStatus = "completed"
	ResponseCancelled ResponseStatus = "cancelled"
)

// Event is a single decoded speech-backend event
type Event struct {
	Type       EventType      `json:"type"`
	ResponseID string         `json:"responseId,omitempty"`
	AudioDelta string         `json:"audioDelta,omitempty"` // base64 payload
	Status     ResponseStatus `json:"status,omitempty"`

	// Transcript fields
	Role string `json:"role,omitempty"` // "caller" or "assistant"
	Text string `json:"text,omitempty"`

	// Tool call fields
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	ToolArgs   json.RawMessage `json:"toolArgs,omitempty"`

	// Error detail
	Message string `json:"message,omitempty"`
}

// wireEvent is the raw JSON frame exchanged with the backend
type wireEvent struct {
	Type         string          `json:"type"`
	ResponseID   string          `json:"response_id,omitempty"`
	Delta        string          `json:"delta,omitempty"`
	Status       string          `json:"status,omitempty"`
	Role         string          `json:"role,omitempty"`
	Text         string          `json:"text,omitempty"`
	CallID       string          `json:"call_id,omitempty"`
	Name         string          `json:"name,omitempty"`
	Arguments    json.RawMessage `json:"arguments,omitempty"`
	Audio        string          `json:"audio,omitempty"`
	Instructions string          `json:"instructions,omitempty"`
	Output       json.RawMessage `json:"output,omitempty"`
	Session      *SessionConfig  `json:"session,omitempty"`
	Error        *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Message string `json:"message"`
}

// decodeEvent maps a raw frame to the semantic event model.
// Unknown types return ok=false and are dropped by the caller.
func decodeEvent(data []byte) (Event, bool, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, false, err
	}

	switch EventType(w.Type) {
	case EventSessionReady:
		return Event{Type: EventSessionReady}, true, nil
	case EventAudioDelta:
		return Event{Type: EventAudioDelta, ResponseID: w.ResponseID, AudioDelta: w.Delta}, true, nil
	case EventResponseStarted:
		return Event{Type: EventResponseStarted, ResponseID: w.ResponseID}, true, nil
	case EventResponseDone:
		status := ResponseStatus(w.Status)
		if status == "" {
			status = ResponseCompleted
		}
		return Event{Type: EventResponseDone, ResponseID: w.ResponseID, Status: status}, true, nil
	case EventSpeechStarted:
		return Event{Type: EventSpeechStarted}, true, nil
	case EventSpeechStopped:
		return Event{Type: EventSpeechStopped}, true, nil
	case EventTranscriptFinal:
		return Event{Type: EventTranscriptFinal, Role: w.Role, Text: w.Text}, true, nil
	case EventToolCall:
		return Event{Type: EventToolCall, ToolCallID: w.CallID, ToolName: w.Name, ToolArgs: w.Arguments}, true, nil
	case EventError:
		msg := ""
		if w.Error != nil {
			msg = w.Error.Message
		}
		return Event{Type: EventError, Message: msg}, true, nil
	}

	return Event{}, false, nil
}
