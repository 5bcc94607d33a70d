package types

import "encoding/json"

// ToolCallRequest is a structured function invocation requested by the
// speech backend. Every request must be answered exactly once.
type ToolCallRequest struct {
	CallID    string          `json:"callId"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolCallResult is the single response to a ToolCallRequest
type ToolCallResult struct {
	CallID  string         `json:"callId"`
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`

	// SuppressFollowUp skips the follow-up generation request, used when
	// the assistant is already voicing the acknowledged action.
	SuppressFollowUp bool `json:"-"`
}

// Payload renders the result as the JSON body of the function-result event
func (r ToolCallResult) Payload() ([]byte, error) {
	body := map[string]any{
		"success": r.Success,
	}
	if r.Message != "" {
		body["message"] = r.Message
	}
	for k, v := range r.Fields {
		body[k] = v
	}
	return json.Marshal(body)
}
