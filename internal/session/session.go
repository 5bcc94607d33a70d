package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/voicebridge/voicebridge/internal/booking"
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

// asyncToolTimeout bounds slow collaborators behind tool calls
const asyncToolTimeout = 15 * time.Second

// MediaPort is the caller-audio leg the session writes to
type MediaPort interface {
	SendAudio(payload string) error
	Clear() error
	Close()
}

// Session orchestrates one live call: caller media on one side, the
// speech backend on the other, and the call-control collaborators in
// between. All state below the queue is owned by the event goroutine;
// collaborator I/O runs off-loop and re-enters through the queue.
type Session struct {
	ID   string
	meta types.CallMetadata

	route      directory.Route
	config     *config.Config
	backend    speech.Channel
	media      MediaPort
	gateway    telephony.Gateway
	resolver   *routing.Resolver
	dispatcher *tools.Dispatcher
	store      storage.Store
	manager    *Manager
	logger     zerolog.Logger

	queue chan func()
	done  chan struct{}

	// audio hot path reads these without entering the queue
	detached atomic.Bool
	closed   atomic.Bool

	profile types.CallerProfile
	intake  tools.IntakeState

	assistantSpeaking bool
	activeResponse    string
	droppedResponse   string
	greetingActive    bool
	greeted           bool
	forwardFirst      bool

	// at most one generation is in flight; extra requests are parked
	heardCallerSpeech  bool
	generationActive   bool
	generationQueued   bool
	queuedInstructions string

	transfer        *types.RoutingRecord
	transferPending bool
	transferReason  string
	callbackMode    bool

	hangupArmed  bool
	hangupReason string

	silencePrompts int
	lastActivity   time.Time
	silenceTimer   timerHandle
	hangupTimer    timerHandle

	transcript []types.TranscriptEntry
	outcome    types.CallOutcome
	startedAt  time.Time
	ending     bool
}

// start launches the event loop and configures the speech backend
func (s *Session) start() {
	go s.run()
	go s.pumpBackend()

	s.post(func() {
		voice := s.route.Workflow.Voice
		if voice == "" {
			voice = s.config.DefaultVoice
		}

		err := s.backend.Configure(speech.SessionConfig{
			Instructions:  s.route.Workflow.Instructions,
			Voice:         voice,
			Modalities:    []string{"audio", "text"},
			Tools:         tools.Definitions(s.bookingEnabled()),
			TurnDetection: &speech.TurnDetection{Type: "server_vad"},
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("backend configuration failed")
			s.end(types.OutcomeBackendError)
			return
		}

		s.lastActivity = time.Now()
		s.armSilenceTimer()

		if s.route.Workflow.ForwardFirst {
			s.forwardFirst = true
			s.beginTransfer("forward before assistant")
		}
	})
}

func (s *Session) bookingEnabled() bool {
	return s.route.Agent != nil || s.route.Tenant.MaxBookingDuration > 0
}

// run executes queued closures until teardown
func (s *Session) run() {
	for {
		select {
		case fn := <-s.queue:
			fn()
		case <-s.done:
			return
		}
	}
}

// post hands a closure to the event goroutine. Posts after teardown are
// dropped.
func (s *Session) post(fn func()) {
	select {
	case s.queue <- fn:
	case <-s.done:
	}
}

// pumpBackend feeds decoded backend events into the queue
func (s *Session) pumpBackend() {
	for ev := range s.backend.Events() {
		ev := ev
		s.post(func() { s.handleBackendEvent(ev) })
	}
}

// HandleInboundAudio forwards one caller audio chunk to the backend.
// Called from the media read goroutine; deliberately bypasses the queue.
func (s *Session) HandleInboundAudio(payload string) {
	if s.detached.Load() || s.closed.Load() {
		return
	}
	if err := s.backend.AppendAudio(payload); err != nil {
		s.logger.Debug().Err(err).Msg("dropping caller audio")
	}
}

// End requests teardown with the given outcome
func (s *Session) End(outcome types.CallOutcome) {
	s.post(func() { s.end(outcome) })
}

// HandleDialStatus reports the result of a dial attempt
func (s *Session) HandleDialStatus(status types.CallStatus) {
	s.post(func() { s.handleDialStatus(status) })
}

func (s *Session) handleBackendEvent(ev speech.Event) {
	switch ev.Type {
	case speech.EventSessionReady:
		if !s.forwardFirst {
			s.greet()
		}

	case speech.EventAudioDelta:
		if ev.ResponseID != "" && ev.ResponseID == s.droppedResponse {
			return
		}
		if err := s.media.SendAudio(ev.AudioDelta); err != nil {
			s.logger.Debug().Err(err).Msg("dropping assistant audio")
		}

	case speech.EventResponseStarted:
		s.assistantSpeaking = true
		s.generationActive = true
		s.activeResponse = ev.ResponseID

	case speech.EventResponseDone:
		s.assistantSpeaking = false
		s.generationActive = false
		s.activeResponse = ""
		s.greetingActive = false
		s.lastActivity = time.Now()
		if s.hangupArmed {
			s.generationQueued = false
			s.queuedInstructions = ""
			s.scheduleHangup()
		} else if s.generationQueued {
			instructions := s.queuedInstructions
			s.generationQueued = false
			s.queuedInstructions = ""
			s.requestGeneration(instructions)
		}

	case speech.EventSpeechStarted:
		s.lastActivity = time.Now()
		s.silencePrompts = 0
		s.heardCallerSpeech = true
		s.cancelDeferredHangup()
		if s.assistantSpeaking && !s.greetingActive {
			s.bargeIn()
		}

	case speech.EventSpeechStopped:
		s.lastActivity = time.Now()
		if s.heardCallerSpeech {
			s.heardCallerSpeech = false
			s.requestGeneration("")
		}

	case speech.EventTranscriptFinal:
		s.lastActivity = time.Now()
		s.transcript = append(s.transcript, types.TranscriptEntry{
			Role: ev.Role,
			Text: ev.Text,
			At:   time.Now(),
		})

	case speech.EventToolCall:
		s.handleToolCall(ev)

	case speech.EventError:
		metrics.Get().RecordSpeechBackendError()
		s.logger.Warn().Str("message", ev.Message).Msg("speech backend error")

	case speech.EventClosed:
		if s.ending || s.detached.Load() {
			return
		}
		s.logger.Error().Msg("speech backend closed unexpectedly")
		go s.hangupCall()
		s.end(types.OutcomeBackendError)
	}
}

// greet issues the protected opening response. The greeting cannot be
// barged in on; interruption handling starts after it completes.
func (s *Session) greet() {
	if s.greeted {
		return
	}
	s.greeted = true
	s.greetingActive = true

	instructions := "Greet the caller and offer your help."
	if g := s.route.Workflow.Greeting; g != "" {
		instructions = fmt.Sprintf("Greet the caller with exactly this greeting, then stop: %q", g)
	}
	if err := s.backend.CreateResponse(instructions); err != nil {
		s.logger.Error().Err(err).Msg("greeting request failed")
		s.greetingActive = false
	}
}

// requestGeneration asks the model to produce its next response. While
// one is in flight the request is parked and issued when that response
// completes; only the latest parked request survives.
func (s *Session) requestGeneration(instructions string) {
	if s.generationActive {
		s.generationQueued = true
		s.queuedInstructions = instructions
		return
	}
	if err := s.backend.CreateResponse(instructions); err != nil {
		s.logger.Warn().Err(err).Msg("response request failed")
	}
}

// bargeIn stops assistant playback because the caller started talking
func (s *Session) bargeIn() {
	s.logger.Debug().Str("response_id", s.activeResponse).Msg("caller barge-in")
	s.droppedResponse = s.activeResponse
	s.assistantSpeaking = false
	// The cancelled generation may never report completion
	s.generationActive = false

	if err := s.backend.CancelResponse(); err != nil {
		s.logger.Warn().Err(err).Msg("response cancel failed")
	}
	if err := s.media.Clear(); err != nil {
		s.logger.Debug().Err(err).Msg("media clear failed")
	}
}

func (s *Session) handleToolCall(ev speech.Event) {
	req := types.ToolCallRequest{CallID: ev.ToolCallID, Name: ev.ToolName, Arguments: ev.ToolArgs}
	out := s.dispatcher.Dispatch(req)

	if out.Async == nil {
		metrics.Get().RecordToolCall(req.Name, out.Result.Success)
		s.deliverToolResult(out.Result)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncToolTimeout)
		defer cancel()
		result := out.Async(ctx)
		metrics.Get().RecordToolCall(req.Name, result.Success)
		s.post(func() { s.deliverToolResult(result) })
	}()
}

// deliverToolResult answers exactly one tool call, then lets the model
// respond unless the handler suppressed the follow-up.
func (s *Session) deliverToolResult(result types.ToolCallResult) {
	payload, err := result.Payload()
	if err != nil {
		s.logger.Error().Err(err).Str("tool_call_id", result.CallID).Msg("failed to encode tool result")
		return
	}
	if err := s.backend.SendToolResult(result.CallID, payload); err != nil {
		s.logger.Error().Err(err).Str("tool_call_id", result.CallID).Msg("failed to deliver tool result")
		return
	}
	if !result.SuppressFollowUp {
		s.requestGeneration("")
	}
}

// --- silence supervision ---

func (s *Session) armSilenceTimer() {
	s.armSilenceFor(s.config.SilenceWindow)
}

func (s *Session) armSilenceFor(d time.Duration) {
	if s.config.SilenceWindow <= 0 {
		return
	}
	s.silenceTimer.arm(d, func(gen uint64) {
		s.post(func() { s.onSilenceTimer(gen) })
	})
}

// onSilenceTimer runs on the event goroutine when the idle timer fires.
// Activity is tracked by timestamp, not by re-arming the timer on every
// event; a stale fire just re-arms for the remainder.
func (s *Session) onSilenceTimer(gen uint64) {
	if !s.silenceTimer.live(gen) || s.ending {
		return
	}

	idle := time.Since(s.lastActivity)
	if idle < s.config.SilenceWindow {
		s.armSilenceFor(s.config.SilenceWindow - idle)
		return
	}
	if s.assistantSpeaking || s.transferPending || s.hangupArmed || s.detached.Load() {
		s.armSilenceTimer()
		return
	}

	s.silencePrompts++
	s.lastActivity = time.Now()

	if s.silencePrompts > s.config.SilencePromptLimit {
		if s.route.Workflow.DisableIdleHangup {
			// Never hang up on idle for this workflow; keep checking in
			s.silencePrompts = 0
			s.promptStillThere()
		} else {
			s.logger.Info().Int("prompts", s.silencePrompts-1).Msg("silence limit reached, ending call")
			s.outcome = types.OutcomeIdleTimeout
			s.armHangup("idle timeout")
			s.requestGeneration("The caller has not responded. Say a brief goodbye and end the conversation.")
		}
	} else {
		s.promptStillThere()
	}
	s.armSilenceTimer()
}

func (s *Session) promptStillThere() {
	s.requestGeneration("The caller has been silent for a while. Briefly ask if they are still there.")
}

// --- deferred hangup ---

// armHangup marks the call for termination once the assistant finishes
// its current (or next) utterance, plus a short grace period. Hangup and
// transfer are mutually exclusive terminal intents.
func (s *Session) armHangup(reason string) {
	if s.transferPending {
		s.logger.Info().Str("reason", reason).Msg("hangup suppressed while transfer is pending")
		return
	}
	s.hangupArmed = true
	s.hangupReason = reason
	s.logger.Info().Str("reason", reason).Msg("hangup armed")
}

func (s *Session) scheduleHangup() {
	s.hangupTimer.arm(s.config.HangupGrace, func(gen uint64) {
		s.post(func() {
			if !s.hangupTimer.live(gen) || s.ending {
				return
			}
			go s.hangupCall()
			if s.outcome == "" {
				s.outcome = types.OutcomeCompleted
			}
			s.end(s.outcome)
		})
	})
}

// cancelDeferredHangup aborts a pending hangup because the caller spoke
func (s *Session) cancelDeferredHangup() {
	if !s.hangupArmed {
		return
	}
	s.logger.Debug().Str("reason", s.hangupReason).Msg("deferred hangup cancelled by caller activity")
	s.hangupArmed = false
	s.hangupReason = ""
	s.hangupTimer.cancel()
	if s.outcome == types.OutcomeIdleTimeout {
		s.outcome = ""
	}
}

func (s *Session) hangupCall() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.gateway.Hangup(ctx, s.meta.CallID); err != nil {
		s.logger.Warn().Err(err).Msg("gateway hangup failed")
	}
}

// --- teardown ---

// detachAssistant shuts down the AI side while the call itself lives on
// (bridged to a human, or handed to voicemail).
func (s *Session) detachAssistant() {
	if s.detached.Load() {
		return
	}
	s.detached.Store(true)
	s.silenceTimer.cancel()
	s.hangupTimer.cancel()
	if err := s.backend.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("backend close failed")
	}
	s.logger.Info().Str("outcome", string(s.outcome)).Msg("assistant detached from call")
}

// end tears the session down exactly once and persists the call record
func (s *Session) end(outcome types.CallOutcome) {
	if s.ending {
		return
	}
	s.ending = true
	s.closed.Store(true)

	if s.outcome == "" {
		s.outcome = outcome
	}

	s.silenceTimer.cancel()
	s.hangupTimer.cancel()
	s.backend.Close()
	s.media.Close()

	record := s.buildRecord()
	store := s.store
	logger := s.logger
	go func() {
		if err := store.SaveCallRecord(record); err != nil {
			logger.Error().Err(err).Msg("failed to persist call record")
		}
	}()

	s.manager.remove(s)
	close(s.done)
	metrics.Get().RecordCallEnded(string(s.outcome), time.Since(s.startedAt))

	s.logger.Info().
		Str("outcome", string(s.outcome)).
		Dur("duration", time.Since(s.startedAt)).
		Int("transcript_entries", len(s.transcript)).
		Msg("session ended")
}

func (s *Session) buildRecord() types.CallRecord {
	record := types.CallRecord{
		CallID:         s.meta.CallID,
		DateKey:        s.startedAt.UTC().Format("2006-01-02"),
		TenantID:       s.route.Tenant.ID,
		WorkflowID:     s.route.Workflow.ID,
		From:           s.meta.From,
		To:             s.meta.To,
		Direction:      s.meta.Direction,
		StartedAt:      s.startedAt,
		EndedAt:        time.Now(),
		Outcome:        s.outcome,
		TransferReason: s.transferReason,
		SilencePrompts: s.silencePrompts,
		CollectedSlots: s.intake.Collected(&s.profile),
		Transcript:     s.transcript,
	}
	if s.transfer != nil {
		record.DialAttempts = s.transfer.Attempts
	}
	return record
}

// --- tools.SessionActions ---

func (s *Session) Profile() *types.CallerProfile { return &s.profile }
func (s *Session) Intake() *tools.IntakeState    { return &s.intake }
func (s *Session) CallbackMode() bool            { return s.callbackMode }
func (s *Session) TransferPending() bool         { return s.transferPending }
func (s *Session) HangupArmed() bool             { return s.hangupArmed }

func (s *Session) RequestTransfer(reason string) { s.beginTransfer(reason) }
func (s *Session) ArmHangup(reason string)       { s.armHangup(reason) }

func (s *Session) BookingContext() booking.Context {
	workflow := s.route.Workflow
	return booking.Context{
		Tenant:       s.route.Tenant,
		Workflow:     &workflow,
		Agent:        s.route.Agent,
		CallerLocale: s.meta.Locale,
	}
}
