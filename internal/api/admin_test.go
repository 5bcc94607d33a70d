package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/voicebridge/voicebridge/internal/auth"
	"github.com/voicebridge/voicebridge/internal/config"
	"github.com/voicebridge/voicebridge/internal/session"
	"github.com/voicebridge/voicebridge/internal/storage"
)

func testAdminHandler() *AdminHandler {
	cfg := &config.Config{}
	manager := session.NewManager(cfg, nil, nil, nil, nil, &storage.NoopStore{}, nil, zerolog.Nop())
	return NewAdminHandler(manager, &storage.NoopStore{}, zerolog.Nop())
}

func requestWithRole(role string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/admin/sessions", nil)
	if role == "" {
		return req
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, &auth.Claims{
		Email: "op@example.com",
		Role:  role,
	})
	return req.WithContext(ctx)
}

func TestRequireAdminRejectsNonAdmins(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireAdmin(next)

	tests := []struct {
		role string
		want int
	}{
		{"admin", http.StatusOK},
		{"operator", http.StatusForbidden},
		{"viewer", http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestWithRole(tt.role))
		if rec.Code != tt.want {
			t.Errorf("role %q: expected %d, got %d", tt.role, tt.want, rec.Code)
		}
	}
}

func TestRequireOperatorOrAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireOperatorOrAdmin(next)

	tests := []struct {
		role string
		want int
	}{
		{"admin", http.StatusOK},
		{"operator", http.StatusOK},
		{"viewer", http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestWithRole(tt.role))
		if rec.Code != tt.want {
			t.Errorf("role %q: expected %d, got %d", tt.role, tt.want, rec.Code)
		}
	}
}

func TestListSessionsEmpty(t *testing.T) {
	h := testAdminHandler()

	req := httptest.NewRequest(http.MethodGet, "/admin/sessions", nil)
	rec := httptest.NewRecorder()
	h.ListSessions(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Count    int               `json:"count"`
		Sessions []json.RawMessage `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 0 || len(resp.Sessions) != 0 {
		t.Errorf("expected no sessions, got count=%d", resp.Count)
	}
}

func TestGetCallRecordsValidatesDate(t *testing.T) {
	h := testAdminHandler()

	req := httptest.NewRequest(http.MethodGet, "/admin/calls?date=yesterday", nil)
	rec := httptest.NewRecorder()
	h.GetCallRecords(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", rec.Code)
	}
}

func TestGetCallRecordsDefaultsToToday(t *testing.T) {
	h := testAdminHandler()

	req := httptest.NewRequest(http.MethodGet, "/admin/calls", nil)
	rec := httptest.NewRecorder()
	h.GetCallRecords(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Date    string `json:"date"`
		Count   int    `json:"count"`
		Records []any  `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Date == "" {
		t.Error("expected a default date in the response")
	}
}
