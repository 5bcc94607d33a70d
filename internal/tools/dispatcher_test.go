package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/voicebridge/voicebridge/internal/booking"
	"github.com/voicebridge/voicebridge/internal/types"
)

type fakeSession struct {
	profile         types.CallerProfile
	intake          IntakeState
	callback        bool
	transferPending bool
	hangupArmed     bool
	transferReasons []string
	hangupReasons   []string
}

func (s *fakeSession) Profile() *types.CallerProfile { return &s.profile }
func (s *fakeSession) Intake() *IntakeState          { return &s.intake }
func (s *fakeSession) CallbackMode() bool            { return s.callback }
func (s *fakeSession) TransferPending() bool         { return s.transferPending }
func (s *fakeSession) HangupArmed() bool             { return s.hangupArmed }
func (s *fakeSession) RequestTransfer(reason string) {
	s.transferPending = true
	s.transferReasons = append(s.transferReasons, reason)
}
func (s *fakeSession) ArmHangup(reason string) {
	s.hangupArmed = true
	s.hangupReasons = append(s.hangupReasons, reason)
}
func (s *fakeSession) BookingContext() booking.Context {
	return booking.Context{Tenant: types.TenantSnapshot{ID: "tenant-1"}}
}

type fakeBooker struct {
	availability types.BookingResult
	booked       types.BookingResult
	bookRequests []types.BookingRequest
}

func (b *fakeBooker) CheckAvailability(_ context.Context, _ booking.Context, _ time.Time, _ time.Duration) types.BookingResult {
	return b.availability
}

func (b *fakeBooker) Book(_ context.Context, _ booking.Context, req types.BookingRequest) types.BookingResult {
	b.bookRequests = append(b.bookRequests, req)
	return b.booked
}

func newTestDispatcher(session *fakeSession, booker *fakeBooker) *Dispatcher {
	if booker == nil {
		booker = &fakeBooker{}
	}
	return NewDispatcher(session, booker, zerolog.Nop())
}

func request(name, args string) types.ToolCallRequest {
	return types.ToolCallRequest{CallID: "tc-1", Name: name, Arguments: json.RawMessage(args)}
}

func TestDispatchUnknownTool(t *testing.T) {
	d := newTestDispatcher(&fakeSession{}, nil)

	out := d.Dispatch(request("frobnicate", `{}`))
	if out.Async != nil {
		t.Fatal("unknown tool must resolve synchronously")
	}
	if out.Result.Success {
		t.Error("unknown tool must fail")
	}
	if out.Result.CallID != "tc-1" {
		t.Error("result must carry the originating call id")
	}
}

func TestTransferRequestsOnce(t *testing.T) {
	session := &fakeSession{}
	d := newTestDispatcher(session, nil)

	out := d.Dispatch(request(ToolRequestHumanTransfer, `{"reason":"needs billing"}`))
	if !out.Result.Success {
		t.Fatalf("transfer should succeed: %s", out.Result.Message)
	}
	if len(session.transferReasons) != 1 || session.transferReasons[0] != "needs billing" {
		t.Fatalf("expected one transfer request, got %v", session.transferReasons)
	}

	// Repeat while pending: acknowledged, not restarted
	out = d.Dispatch(request(ToolRequestHumanTransfer, `{"reason":"again"}`))
	if !out.Result.Success || !out.Result.SuppressFollowUp {
		t.Error("repeat transfer must be acknowledged without a follow-up response")
	}
	if len(session.transferReasons) != 1 {
		t.Errorf("repeat transfer must not start another attempt, got %v", session.transferReasons)
	}
}

func TestTransferRejectedInCallbackMode(t *testing.T) {
	session := &fakeSession{callback: true}
	d := newTestDispatcher(session, nil)

	out := d.Dispatch(request(ToolRequestHumanTransfer, `{"reason":"please"}`))
	if out.Result.Success {
		t.Error("transfer must be rejected during callback intake")
	}
	if len(session.transferReasons) != 0 {
		t.Error("no transfer attempt may be started during callback intake")
	}
}

func TestEndCallArmsHangup(t *testing.T) {
	session := &fakeSession{}
	d := newTestDispatcher(session, nil)

	out := d.Dispatch(request(ToolEndCall, `{"reason":"done"}`))
	if !out.Result.Success {
		t.Fatal("end_call should succeed")
	}
	if len(session.hangupReasons) != 1 || session.hangupReasons[0] != "done" {
		t.Fatalf("expected armed hangup, got %v", session.hangupReasons)
	}
}

func TestTransferRejectedWhileHangupArmed(t *testing.T) {
	session := &fakeSession{hangupArmed: true}
	d := newTestDispatcher(session, nil)

	out := d.Dispatch(request(ToolRequestHumanTransfer, `{"reason":"late change"}`))
	if out.Result.Success {
		t.Error("transfer must be rejected once the call is ending")
	}
	if len(session.transferReasons) != 0 {
		t.Error("no transfer attempt may start after end_call")
	}
}

func TestEndCallRejectedWhileTransferPending(t *testing.T) {
	session := &fakeSession{transferPending: true}
	d := newTestDispatcher(session, nil)

	out := d.Dispatch(request(ToolEndCall, `{"reason":"nevermind"}`))
	if out.Result.Success {
		t.Error("end_call must be rejected while a transfer is pending")
	}
	if len(session.hangupReasons) != 0 {
		t.Error("hangup must not be armed while a transfer is pending")
	}
}

func TestConfirmCommitsPendingValue(t *testing.T) {
	session := &fakeSession{}
	session.profile.PendingName = "Alex Caller"
	d := newTestDispatcher(session, nil)

	out := d.Dispatch(request(ToolConfirmName, `{"confirmed":true}`))
	if !out.Result.Success {
		t.Fatalf("confirm should succeed: %s", out.Result.Message)
	}
	if session.profile.Name != "Alex Caller" || !session.profile.NameConfirmed {
		t.Errorf("pending name must be committed, got %+v", session.profile)
	}
	if session.profile.PendingName != "" {
		t.Error("pending value must be cleared after commit")
	}
}

func TestConfirmRejectionDiscardsPendingValue(t *testing.T) {
	session := &fakeSession{}
	session.profile.PendingEmail = "wrong@example.com"
	session.profile.Email = "old@example.com"
	d := newTestDispatcher(session, nil)

	out := d.Dispatch(request(ToolConfirmEmail, `{"confirmed":false}`))
	if !out.Result.Success {
		t.Fatalf("rejection is still a handled outcome: %s", out.Result.Message)
	}
	if session.profile.PendingEmail != "" {
		t.Error("rejected pending value must be discarded")
	}
	if session.profile.Email != "old@example.com" {
		t.Error("committed value must survive a rejected proposal")
	}
	if session.profile.EmailConfirmed {
		t.Error("confirmation flag must stay false after rejection")
	}
}

func TestConfirmWithoutPendingFails(t *testing.T) {
	d := newTestDispatcher(&fakeSession{}, nil)

	out := d.Dispatch(request(ToolConfirmNumber, `{"confirmed":true}`))
	if out.Result.Success {
		t.Error("confirming with nothing proposed must fail")
	}
}

func TestUpdateCustomerInfoCommitsDirectlyOutsideCallbackMode(t *testing.T) {
	session := &fakeSession{}
	d := newTestDispatcher(session, nil)

	out := d.Dispatch(request(ToolUpdateCustomerInfo,
		`{"name":"Alex","email":"alex@example.com","phone":"+15550100","reason":"refund"}`))
	if !out.Result.Success {
		t.Fatalf("update should succeed: %s", out.Result.Message)
	}

	p := &session.profile
	if p.Name != "Alex" || p.Phone != "+15550100" || p.Reason != "refund" {
		t.Errorf("name, phone and reason commit immediately, got %+v", p)
	}
	if p.Email != "" || p.PendingEmail != "alex@example.com" || p.EmailConfirmed {
		t.Errorf("email must stay pending until confirmed, got %+v", p)
	}
}

func TestUpdateCustomerInfoStagesOnlyInCallbackMode(t *testing.T) {
	session := &fakeSession{callback: true}
	d := newTestDispatcher(session, nil)

	d.Dispatch(request(ToolUpdateCustomerInfo, `{"name":"Alex","phone":"+15550100"}`))

	p := &session.profile
	if p.Name != "" || p.Phone != "" {
		t.Errorf("callback mode must not commit unconfirmed values, got %+v", p)
	}
	if p.PendingName != "Alex" || p.PendingPhone != "+15550100" {
		t.Errorf("values must be staged for read-back, got %+v", p)
	}
}

func TestUpdateCustomerInfoCollectsMessage(t *testing.T) {
	session := &fakeSession{callback: true}
	d := newTestDispatcher(session, nil)

	d.Dispatch(request(ToolUpdateCustomerInfo, `{"message":"call me after lunch"}`))

	if !session.intake.MessageCollected || session.intake.Message != "call me after lunch" {
		t.Errorf("message must be recorded, got %+v", session.intake)
	}
}

func TestNormalizeEmailStagesResult(t *testing.T) {
	session := &fakeSession{}
	d := newTestDispatcher(session, nil)

	out := d.Dispatch(request(ToolNormalizeEmail, `{"spoken":"john dot doe at example dot com"}`))
	if !out.Result.Success {
		t.Fatalf("normalization should succeed: %s", out.Result.Message)
	}
	if session.profile.PendingEmail != "john.doe@example.com" {
		t.Errorf("normalized address must be staged, got %q", session.profile.PendingEmail)
	}
	if out.Result.SuppressFollowUp {
		t.Error("a follow-up response is needed to read the address back")
	}
}

func TestNormalizeEmailFailureAsksAgain(t *testing.T) {
	d := newTestDispatcher(&fakeSession{}, nil)

	out := d.Dispatch(request(ToolNormalizeEmail, `{"spoken":"mumble mumble"}`))
	if out.Result.Success {
		t.Error("unintelligible spelling must not produce an address")
	}
}

func TestBookAppointmentRunsAsync(t *testing.T) {
	session := &fakeSession{}
	session.profile.Name = "Alex"
	session.profile.Email = "alex@example.com"
	session.profile.EmailConfirmed = true

	start := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	booker := &fakeBooker{booked: types.BookingResult{
		Success: true, Start: start, End: start.Add(30 * time.Minute), EventRef: "ev-1",
	}}
	d := newTestDispatcher(session, booker)

	out := d.Dispatch(request(ToolBookAppointment,
		`{"start":"2026-08-31T09:00:00Z","durationMinutes":30,"notes":"refund follow-up"}`))
	if out.Async == nil {
		t.Fatal("booking must be dispatched asynchronously")
	}

	result := out.Async(context.Background())
	if !result.Success {
		t.Fatalf("booking should succeed: %s", result.Message)
	}
	if result.Fields["eventRef"] != "ev-1" {
		t.Errorf("expected event ref in result fields, got %v", result.Fields)
	}

	if len(booker.bookRequests) != 1 {
		t.Fatalf("expected one booking request, got %d", len(booker.bookRequests))
	}
	req := booker.bookRequests[0]
	if req.AttendeeEmail != "alex@example.com" || !req.EmailConfirmed {
		t.Errorf("booking must carry the profile snapshot, got %+v", req)
	}
	if !req.Start.Equal(start) || req.Duration != 30*time.Minute {
		t.Errorf("unexpected slot: %+v", req)
	}
}

func TestBookAppointmentRejectsBadStart(t *testing.T) {
	d := newTestDispatcher(&fakeSession{}, nil)

	out := d.Dispatch(request(ToolBookAppointment, `{"start":"tomorrow-ish"}`))
	if out.Async != nil || out.Result.Success {
		t.Error("unparseable start must fail synchronously")
	}
}

func TestCheckAvailabilityReturnsAlternatives(t *testing.T) {
	start := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	booker := &fakeBooker{availability: types.BookingResult{
		Success:      false,
		Message:      "requested time is not available",
		Alternatives: []types.Slot{{Start: start.Add(time.Hour), End: start.Add(90 * time.Minute)}},
	}}
	d := newTestDispatcher(&fakeSession{}, booker)

	out := d.Dispatch(request(ToolCheckAvailability, `{"start":"2026-08-31T09:00:00Z","durationMinutes":30}`))
	if out.Async == nil {
		t.Fatal("availability check must be dispatched asynchronously")
	}

	result := out.Async(context.Background())
	if result.Success {
		t.Error("busy slot must not report success")
	}
	alts, ok := result.Fields["alternatives"].([]string)
	if !ok || len(alts) != 1 {
		t.Errorf("expected one alternative, got %v", result.Fields["alternatives"])
	}
}
