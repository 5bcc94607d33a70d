package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Metrics holds all orchestrator counters
type Metrics struct {
	mu sync.RWMutex

	// Session metrics
	SessionsStartedTotal int64
	activeSessions       int64
	callsByOutcome       map[string]int64
	callDurationTotal    time.Duration

	// Tool call metrics
	ToolCallsTotal  int64
	ToolCallErrors  int64
	toolCallsByName map[string]int64

	// Transfer metrics
	DialAttemptsTotal int64
	TransfersTotal    int64

	// Media metrics
	MediaFramesDroppedTotal int64

	// Speech backend metrics
	SpeechBackendErrorsTotal int64

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			callsByOutcome:  make(map[string]int64),
			toolCallsByName: make(map[string]int64),
			startTime:       time.Now(),
		}
	})
	return instance
}

// RecordSessionStarted increments session counters
func (m *Metrics) RecordSessionStarted() {
	m.mu.Lock()
	m.SessionsStartedTotal++
	m.activeSessions++
	m.mu.Unlock()
}

// RecordCallEnded records a finished call with its outcome
func (m *Metrics) RecordCallEnded(outcome string, duration time.Duration) {
	m.mu.Lock()
	m.activeSessions--
	m.callsByOutcome[outcome]++
	m.callDurationTotal += duration
	m.mu.Unlock()
}

// RecordToolCall records one dispatched tool call
func (m *Metrics) RecordToolCall(name string, success bool) {
	m.mu.Lock()
	m.ToolCallsTotal++
	m.toolCallsByName[name]++
	if !success {
		m.ToolCallErrors++
	}
	m.mu.Unlock()
}

// RecordDialAttempt increments the transfer dial counter
func (m *Metrics) RecordDialAttempt() {
	m.mu.Lock()
	m.DialAttemptsTotal++
	m.mu.Unlock()
}

// RecordTransferBridged increments the completed-transfer counter
func (m *Metrics) RecordTransferBridged() {
	m.mu.Lock()
	m.TransfersTotal++
	m.mu.Unlock()
}

// RecordMediaFrameDropped counts outbound media frames dropped on a full queue
func (m *Metrics) RecordMediaFrameDropped() {
	m.mu.Lock()
	m.MediaFramesDroppedTotal++
	m.mu.Unlock()
}

// RecordSpeechBackendError counts speech backend failures
func (m *Metrics) RecordSpeechBackendError() {
	m.mu.Lock()
	m.SpeechBackendErrorsTotal++
	m.mu.Unlock()
}

// GetActiveSessions returns the live session count
func (m *Metrics) GetActiveSessions() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeSessions
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("voicebridge_uptime_seconds", time.Since(m.startTime).Seconds())

		// Session metrics
		write("voicebridge_sessions_started_total", m.SessionsStartedTotal)
		write("voicebridge_sessions_active", m.activeSessions)
		write("voicebridge_call_duration_seconds_total", m.callDurationTotal.Seconds())
		for outcome, count := range m.callsByOutcome {
			write("voicebridge_calls_total", count, "outcome", outcome)
		}

		// Tool call metrics
		write("voicebridge_tool_calls_total", m.ToolCallsTotal)
		write("voicebridge_tool_call_errors_total", m.ToolCallErrors)
		for name, count := range m.toolCallsByName {
			write("voicebridge_tool_calls_by_name", count, "tool", name)
		}

		// Transfer metrics
		write("voicebridge_dial_attempts_total", m.DialAttemptsTotal)
		write("voicebridge_transfers_bridged_total", m.TransfersTotal)

		// Media and backend metrics
		write("voicebridge_media_frames_dropped_total", m.MediaFramesDroppedTotal)
		write("voicebridge_speech_backend_errors_total", m.SpeechBackendErrorsTotal)
	}
}
