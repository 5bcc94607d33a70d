package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/voicebridge/voicebridge/internal/auth"
	"github.com/voicebridge/voicebridge/internal/session"
	"github.com/voicebridge/voicebridge/internal/storage"
	"github.com/voicebridge/voicebridge/internal/types"
)

// AdminHandler serves the operator diagnostics API: live sessions and
// finished call records.
type AdminHandler struct {
	manager *session.Manager
	store   storage.Store
	logger  zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(manager *session.Manager, store storage.Store, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{manager: manager, store: store, logger: logger}
}

// RequireAdmin middleware — only admin role allowed
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || !auth.HasRole(claims, "admin") {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"admin role required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOperatorOrAdmin middleware — operator or admin role allowed
func RequireOperatorOrAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || (claims.Role != "admin" && claims.Role != "operator") {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"operator or admin role required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListSessions returns a snapshot of every live session
func (h *AdminHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	snapshots := h.manager.Snapshots()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"sessions": snapshots,
		"count":    len(snapshots),
	})
}

// GetSession returns the snapshot of one live session by call id
func (h *AdminHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callId")
	snapshot, ok := h.manager.SnapshotByCall(callID)
	if !ok {
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

// EndSession force-ends a live session by call id
func (h *AdminHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callId")
	if callID == "" {
		http.Error(w, `{"error":"missing call id"}`, http.StatusBadRequest)
		return
	}

	h.logger.Info().Str("call_id", callID).Msg("session ended via admin")
	h.manager.EndSessionByCallID(callID, types.OutcomeCompleted)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "session ended",
		"callId":  callID,
	})
}

// GetCallRecords returns finished call records for a date, optionally
// filtered to one tenant. Defaults to today.
func (h *AdminHandler) GetCallRecords(w http.ResponseWriter, r *http.Request) {
	dateKey := r.URL.Query().Get("date")
	if dateKey == "" {
		dateKey = time.Now().UTC().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", dateKey); err != nil {
		http.Error(w, `{"error":"date must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}

	tenantID := r.URL.Query().Get("tenant")

	var records []types.CallRecord
	var err error
	if tenantID != "" {
		records, err = h.store.GetCallRecordsByTenant(dateKey, tenantID)
	} else {
		records, err = h.store.GetCallRecords(dateKey)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("date", dateKey).Msg("failed to load call records")
		http.Error(w, `{"error":"failed to load call records"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"date":    dateKey,
		"records": records,
		"count":   len(records),
	})
}
