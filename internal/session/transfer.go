package session

import (
	"context"
	"fmt"
	"time"

	"github.com/voicebridge/voicebridge/internal/metrics"
	"github.com/voicebridge/voicebridge/internal/routing"
	"github.com/voicebridge/voicebridge/internal/telephony"
	"github.com/voicebridge/voicebridge/internal/types"
)

const resolveTimeout = 10 * time.Second

// beginTransfer starts the resolve-then-dial sequence toward a human.
// Runs on the event goroutine; resolution and dialing happen off-loop.
func (s *Session) beginTransfer(reason string) {
	if s.transferPending || s.hangupArmed {
		return
	}

	inst := routing.Instruction{
		Reason:  reason,
		Number:  s.route.Workflow.ForwardNumber,
		UserID:  s.route.Workflow.ForwardUserID,
		GroupID: s.route.Workflow.ForwardGroupID,
	}
	if inst.Number == "" && inst.UserID == "" && inst.GroupID == "" && s.route.Workflow.AssignedAgentID != "" {
		inst.UserID = s.route.Workflow.AssignedAgentID
	}
	if inst.Number == "" && inst.UserID == "" && inst.GroupID == "" {
		s.logger.Info().Msg("workflow has no forward destination")
		s.noAgentFallback(routing.FailureNoEligibleTargets)
		return
	}

	s.transferPending = true
	s.transferReason = reason
	s.logger.Info().Str("reason", reason).Msg("transfer requested")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()

		resolution, err := s.resolver.Resolve(ctx, inst, s.route.Tenant)
		s.post(func() { s.onResolved(resolution, err) })
	}()
}

func (s *Session) onResolved(resolution *routing.Resolution, err error) {
	if s.ending {
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("target resolution failed")
		s.noAgentFallback("resolution_error")
		return
	}
	if resolution.Failed() {
		s.logger.Info().Str("reason", resolution.FailureReason).Msg("no dialable transfer target")
		s.noAgentFallback(resolution.FailureReason)
		return
	}

	s.transfer = &types.RoutingRecord{
		Strategy: resolution.Strategy,
		Targets:  resolution.Targets,
		Reason:   s.transferReason,
	}
	s.dialNext()
}

// dialNext issues the next dial attempt from the routing record, or
// falls back when the record is exhausted.
func (s *Session) dialNext() {
	plan, ok := routing.NextDialPlan(s.transfer)
	if !ok {
		s.logger.Info().Int("attempts", len(s.transfer.Attempts)).Msg("dial plan exhausted")
		s.noAgentFallback("targets_exhausted")
		return
	}

	metrics.Get().RecordDialAttempt()
	s.transfer.Attempts = append(s.transfer.Attempts, types.DialAttempt{
		At:      time.Now(),
		Numbers: plan.Numbers,
		Clients: plan.Clients,
	})
	if s.transfer.Strategy == types.RingSimultaneous {
		s.transfer.NextIndex = len(s.transfer.Targets)
	} else {
		s.transfer.NextIndex++
	}

	req := telephony.BridgeRequest{
		Numbers:        plan.Numbers,
		Clients:        plan.Clients,
		CallerID:       s.meta.To,
		Timeout:        s.config.DialTimeout,
		ActionURL:      s.callbackURL("dial-status"),
		StatusCallback: s.callbackURL("status"),
	}

	s.logger.Info().
		Strs("numbers", plan.Numbers).
		Strs("clients", plan.Clients).
		Str("strategy", string(s.transfer.Strategy)).
		Msg("dialing transfer target")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()
		if err := s.gateway.Bridge(ctx, s.meta.CallID, req); err != nil {
			s.logger.Error().Err(err).Msg("bridge request failed")
			s.HandleDialStatus(types.CallStatusFailed)
		}
	}()
}

// handleDialStatus advances the routing record on the event goroutine.
// A bridged record never dials again.
func (s *Session) handleDialStatus(status types.CallStatus) {
	if s.ending || s.transfer == nil || s.transfer.Bridged {
		return
	}
	if n := len(s.transfer.Attempts); n > 0 {
		s.transfer.Attempts[n-1].Status = status
	}

	switch status {
	case types.CallStatusInProgress:
		// Target answered; the caller is now talking to a human
		s.transfer.Bridged = true
		s.transferPending = false
		s.outcome = types.OutcomeTransferred
		metrics.Get().RecordTransferBridged()
		s.detachAssistant()

	case types.CallStatusCompleted:
		// Bridged conversation ran to completion; the call is over
		s.transfer.Bridged = true
		s.transferPending = false
		s.end(types.OutcomeTransferred)

	default:
		s.logger.Info().Str("status", string(status)).Msg("dial attempt did not connect")
		s.dialNext()
	}
}

// noAgentFallback runs when no human can be reached: voicemail when the
// tenant has it, otherwise callback intake. During a pre-greeting
// forward the assistant simply answers instead.
func (s *Session) noAgentFallback(reason string) {
	s.transferPending = false

	if s.forwardFirst && !s.greeted {
		s.forwardFirst = false
		s.logger.Info().Str("reason", reason).Msg("pre-assistant forward failed, assistant answering")
		s.greet()
		return
	}

	if s.route.Tenant.VoicemailEnabled {
		s.logger.Info().Str("reason", reason).Msg("falling back to voicemail")
		s.outcome = types.OutcomeVoicemail
		greeting := s.route.Tenant.VoicemailGreeting
		if greeting == "" {
			greeting = fmt.Sprintf("You have reached %s. No one is available right now. Please leave a message after the tone.", s.route.Tenant.Name)
		}

		callID := s.meta.CallID
		actionURL := s.callbackURL("voicemail-status")
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
			defer cancel()
			if err := s.gateway.Voicemail(ctx, callID, greeting, actionURL); err != nil {
				s.logger.Error().Err(err).Msg("voicemail redirect failed")
				s.post(func() { s.enterCallbackIntake(reason) })
				return
			}
			s.post(s.detachAssistant)
		}()
		return
	}

	s.enterCallbackIntake(reason)
}

// enterCallbackIntake switches the conversation to collecting a callback
// request: name, number and message, each explicitly confirmed.
func (s *Session) enterCallbackIntake(reason string) {
	if s.callbackMode {
		return
	}
	s.callbackMode = true
	s.outcome = ""
	s.intake.ForceCallbackMode(&s.profile)
	s.logger.Info().Str("reason", reason).Msg("entering callback intake")

	s.requestGeneration(
		"No colleague is available to take the call right now. Apologize briefly, then collect a callback request: " +
			"the caller's name, their phone number, and a short message. Read the name and number back and confirm each " +
			"with the caller before moving on.")
}

func (s *Session) callbackURL(kind string) string {
	return fmt.Sprintf("%s/telephony/%s?callSid=%s", s.config.PublicBaseURL, kind, s.meta.CallID)
}
