package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/voicebridge/voicebridge/internal/config"
	"github.com/voicebridge/voicebridge/internal/directory"
	"github.com/voicebridge/voicebridge/internal/metrics"
	"github.com/voicebridge/voicebridge/internal/routing"
	"github.com/voicebridge/voicebridge/internal/speech"
	"github.com/voicebridge/voicebridge/internal/storage"
	"github.com/voicebridge/voicebridge/internal/telephony"
	"github.com/voicebridge/voicebridge/internal/tools"
	"github.com/voicebridge/voicebridge/internal/types"
)

// SpeechDialer opens a new channel to the speech backend
type SpeechDialer func(ctx context.Context) (speech.Channel, error)

// StartParams carries everything known about a call when its media
// stream opens.
type StartParams struct {
	CallID   string
	StreamID string
	From     string
	To       string
	Locale   string
}

// Manager is the call registry: it creates sessions when media streams
// attach, routes gateway callbacks to them, and tears them down.
type Manager struct {
	config     *config.Config
	dir        directory.Store
	resolver   *routing.Resolver
	gateway    telephony.Gateway
	booker     tools.Booker
	store      storage.Store
	dialSpeech SpeechDialer
	logger     zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session // by session id
	byCall   map[string]*Session // by gateway call id
}

// NewManager creates the session manager
func NewManager(
	cfg *config.Config,
	dir directory.Store,
	resolver *routing.Resolver,
	gateway telephony.Gateway,
	booker tools.Booker,
	store storage.Store,
	dialSpeech SpeechDialer,
	logger zerolog.Logger,
) *Manager {
	return &Manager{
		config:     cfg,
		dir:        dir,
		resolver:   resolver,
		gateway:    gateway,
		booker:     booker,
		store:      store,
		dialSpeech: dialSpeech,
		logger:     logger,
		sessions:   make(map[string]*Session),
		byCall:     make(map[string]*Session),
	}
}

// StartSession creates and launches a session for a newly attached media
// stream. The dialed number selects the tenant and workflow.
func (m *Manager) StartSession(ctx context.Context, params StartParams, media MediaPort) (*Session, error) {
	if params.CallID == "" {
		return nil, fmt.Errorf("session: start frame has no call id")
	}

	route, err := m.dir.ResolveInbound(ctx, params.To)
	if err != nil {
		return nil, fmt.Errorf("session: inbound lookup failed: %w", err)
	}
	if route == nil {
		return nil, fmt.Errorf("session: no workflow configured for %s", params.To)
	}

	backend, err := m.dialSpeech(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: speech backend unavailable: %w", err)
	}

	id := uuid.New().String()
	logger := m.logger.With().
		Str("session_id", id).
		Str("call_id", params.CallID).
		Str("tenant_id", route.Tenant.ID).
		Logger()

	s := &Session{
		ID: id,
		meta: types.CallMetadata{
			CallID:    params.CallID,
			StreamID:  params.StreamID,
			From:      params.From,
			To:        params.To,
			Direction: types.DirectionInbound,
			Locale:    params.Locale,
			StartedAt: time.Now(),
		},
		route:     *route,
		config:    m.config,
		backend:   backend,
		media:     media,
		gateway:   m.gateway,
		resolver:  m.resolver,
		store:     m.store,
		manager:   m,
		logger:    logger,
		queue:     make(chan func(), 128),
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	s.dispatcher = tools.NewDispatcher(s, m.booker, logger)
	s.intake = tools.IntakeState{Required: requiredSlots(route.Workflow.RequiredSlots)}

	m.mu.Lock()
	m.sessions[id] = s
	m.byCall[params.CallID] = s
	count := len(m.sessions)
	m.mu.Unlock()

	metrics.Get().RecordSessionStarted()
	logger.Info().
		Str("workflow_id", route.Workflow.ID).
		Str("from", params.From).
		Int("active_sessions", count).
		Msg("session started")

	s.start()
	return s, nil
}

func requiredSlots(names []string) []tools.Slot {
	slots := make([]tools.Slot, 0, len(names))
	for _, name := range names {
		slots = append(slots, tools.Slot(name))
	}
	return slots
}

// GetSession looks a session up by id
func (m *Manager) GetSession(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// GetSessionByCall looks a session up by gateway call id
func (m *Manager) GetSessionByCall(callID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byCall[callID]
}

// Snapshot is a point-in-time view of one session for diagnostics
type Snapshot struct {
	SessionID  string    `json:"sessionId"`
	CallID     string    `json:"callId"`
	TenantID   string    `json:"tenantId"`
	WorkflowID string    `json:"workflowId"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	StartedAt  time.Time `json:"startedAt"`
}

// SnapshotByCall returns the snapshot of one live session
func (m *Manager) SnapshotByCall(callID string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.byCall[callID]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{
		SessionID:  s.ID,
		CallID:     s.meta.CallID,
		TenantID:   s.route.Tenant.ID,
		WorkflowID: s.route.Workflow.ID,
		From:       s.meta.From,
		To:         s.meta.To,
		StartedAt:  s.startedAt,
	}, true
}

// Snapshots lists all live sessions
func (m *Manager) Snapshots() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Snapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, Snapshot{
			SessionID:  s.ID,
			CallID:     s.meta.CallID,
			TenantID:   s.route.Tenant.ID,
			WorkflowID: s.route.Workflow.ID,
			From:       s.meta.From,
			To:         s.meta.To,
			StartedAt:  s.startedAt,
		})
	}
	return out
}

// HandleCallStatus processes a gateway call-status callback. Terminal
// statuses end the session; the session keeps an outcome it already
// decided (transfer, voicemail, idle timeout).
func (m *Manager) HandleCallStatus(callID string, status types.CallStatus) {
	s := m.GetSessionByCall(callID)
	if s == nil {
		m.logger.Debug().Str("call_id", callID).Str("status", string(status)).Msg("status for unknown call")
		return
	}
	if status.IsTerminal() {
		s.End(types.OutcomeRemoteClose)
	}
}

// HandleDialStatus processes the result of a transfer dial attempt
func (m *Manager) HandleDialStatus(callID string, status types.CallStatus) {
	s := m.GetSessionByCall(callID)
	if s == nil {
		m.logger.Debug().Str("call_id", callID).Str("status", string(status)).Msg("dial status for unknown call")
		return
	}
	s.HandleDialStatus(status)
}

// EndSessionByCallID force-ends the session for a call, if one exists
func (m *Manager) EndSessionByCallID(callID string, outcome types.CallOutcome) {
	if s := m.GetSessionByCall(callID); s != nil {
		s.End(outcome)
	}
}

// Shutdown ends every live session, used on server stop
func (m *Manager) Shutdown() {
	for _, s := range m.snapshotSessions() {
		s.End(types.OutcomeRemoteClose)
	}
}

func (m *Manager) snapshotSessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// remove unregisters an ended session
func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID)
	delete(m.byCall, s.meta.CallID)
	m.mu.Unlock()
}
