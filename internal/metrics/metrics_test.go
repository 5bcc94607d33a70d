package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSessionCounters(t *testing.T) {
	m := Get()

	before := m.GetActiveSessions()
	m.RecordSessionStarted()
	if got := m.GetActiveSessions(); got != before+1 {
		t.Errorf("expected %d active sessions, got %d", before+1, got)
	}

	m.RecordCallEnded("completed", 30*time.Second)
	if got := m.GetActiveSessions(); got != before {
		t.Errorf("expected %d active sessions after end, got %d", before, got)
	}
}

func TestHandlerOutput(t *testing.T) {
	m := Get()
	m.RecordSessionStarted()
	m.RecordCallEnded("transferred", time.Minute)
	m.RecordToolCall("end_call", true)
	m.RecordDialAttempt()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler()(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"voicebridge_uptime_seconds",
		"voicebridge_sessions_started_total",
		"voicebridge_sessions_active",
		`voicebridge_calls_total{outcome="transferred"}`,
		`voicebridge_tool_calls_by_name{tool="end_call"}`,
		"voicebridge_dial_attempts_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metric %q in output, got:\n%s", want, body)
		}
	}
}
