package speech

import "encoding/json"

// ToolDef describes one callable tool advertised to the backend
type ToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// TurnDetection tunes backend voice-activity detection
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	SilenceDurationMS int     `json:"silence_duration_ms,omitempty"`
}

// SessionConfig is the conversational configuration sent after connect
type SessionConfig struct {
	Instructions  string         `json:"instructions"`
	Voice         string         `json:"voice"`
	Modalities    []string       `json:"modalities,omitempty"`
	Tools         []ToolDef      `json:"tools,omitempty"`
	TurnDetection *TurnDetection `json:"turn_detection,omitempty"`
}
