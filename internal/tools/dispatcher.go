package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/voicebridge/voicebridge/internal/booking"
	"github.com/voicebridge/voicebridge/internal/types"
)

// Tool names accepted from the speech backend
const (
	ToolRequestHumanTransfer = "request_human_transfer"
	ToolEndCall              = "end_call"
	ToolConfirmName          = "confirm_name"
	ToolConfirmNumber        = "confirm_number"
	ToolConfirmEmail         = "confirm_email"
	ToolUpdateCustomerInfo   = "update_customer_info"
	ToolNormalizeEmail       = "normalize_email_spelling"
	ToolCheckAvailability    = "check_calendar_availability"
	ToolBookAppointment      = "book_appointment"
)

// SessionActions is the slice of session behavior tool handlers may use.
// Implementations are only called from the session's event goroutine, so
// handlers may mutate the profile and intake state directly.
type SessionActions interface {
	Profile() *types.CallerProfile
	Intake() *IntakeState
	CallbackMode() bool
	TransferPending() bool
	HangupArmed() bool
	RequestTransfer(reason string)
	ArmHangup(reason string)
	BookingContext() booking.Context
}

// Booker is the slice of the booking coordinator the dispatcher needs
type Booker interface {
	CheckAvailability(ctx context.Context, bctx booking.Context, start time.Time, duration time.Duration) types.BookingResult
	Book(ctx context.Context, bctx booking.Context, req types.BookingRequest) types.BookingResult
}

// Outcome is a dispatch result. When Async is non-nil the handler
// performs I/O: the caller must run it off the session loop and re-apply
// its result through the session's serialized event path.
type Outcome struct {
	Result types.ToolCallResult
	Async  func(ctx context.Context) types.ToolCallResult
}

// Dispatcher maps tool-call requests to handlers for one session
type Dispatcher struct {
	session SessionActions
	booker  Booker
	logger  zerolog.Logger
}

// NewDispatcher creates a per-session Dispatcher
func NewDispatcher(session SessionActions, booker Booker, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{session: session, booker: booker, logger: logger}
}

// Dispatch routes one request by name. Unknown names yield a failed
// result; the request is still answered so the backend never hangs.
func (d *Dispatcher) Dispatch(req types.ToolCallRequest) Outcome {
	switch req.Name {
	case ToolRequestHumanTransfer:
		return d.handleTransfer(req)
	case ToolEndCall:
		return d.handleEndCall(req)
	case ToolConfirmName:
		return d.handleConfirm(req, SlotName)
	case ToolConfirmNumber:
		return d.handleConfirm(req, SlotPhone)
	case ToolConfirmEmail:
		return d.handleConfirm(req, SlotEmail)
	case ToolUpdateCustomerInfo:
		return d.handleUpdateInfo(req)
	case ToolNormalizeEmail:
		return d.handleNormalizeEmail(req)
	case ToolCheckAvailability:
		return d.handleCheckAvailability(req)
	case ToolBookAppointment:
		return d.handleBookAppointment(req)
	}

	d.logger.Warn().Str("tool", req.Name).Msg("unknown tool call")
	return Outcome{Result: types.ToolCallResult{
		CallID:  req.CallID,
		Success: false,
		Message: fmt.Sprintf("unknown function %q", req.Name),
	}}
}

func (d *Dispatcher) handleTransfer(req types.ToolCallRequest) Outcome {
	var args struct {
		Reason string `json:"reason"`
	}
	d.parseArgs(req, &args)

	if d.session.CallbackMode() {
		return Outcome{Result: types.ToolCallResult{
			CallID:  req.CallID,
			Success: false,
			Message: "transfer is not available; continue collecting the callback request",
		}}
	}
	if d.session.HangupArmed() {
		return Outcome{Result: types.ToolCallResult{
			CallID:  req.CallID,
			Success: false,
			Message: "the call is already ending; a transfer can no longer be started",
		}}
	}
	if d.session.TransferPending() {
		return Outcome{Result: types.ToolCallResult{
			CallID:           req.CallID,
			Success:          true,
			Message:          "a transfer is already in progress",
			SuppressFollowUp: true,
		}}
	}

	d.session.RequestTransfer(args.Reason)
	return Outcome{Result: types.ToolCallResult{
		CallID:  req.CallID,
		Success: true,
		Message: "transfer initiated; let the caller know you are connecting them",
	}}
}

func (d *Dispatcher) handleEndCall(req types.ToolCallRequest) Outcome {
	var args struct {
		Reason string `json:"reason"`
	}
	d.parseArgs(req, &args)

	if d.session.TransferPending() {
		return Outcome{Result: types.ToolCallResult{
			CallID:  req.CallID,
			Success: false,
			Message: "a transfer is in progress; stay with the caller until it connects",
		}}
	}

	d.session.ArmHangup(args.Reason)
	return Outcome{Result: types.ToolCallResult{
		CallID:  req.CallID,
		Success: true,
		Message: "say a brief goodbye; the call ends after your next sentence",
	}}
}

func (d *Dispatcher) handleConfirm(req types.ToolCallRequest, slot Slot) Outcome {
	var args struct {
		Confirmed bool `json:"confirmed"`
	}
	d.parseArgs(req, &args)

	profile := d.session.Profile()

	var pending *string
	var value *string
	var confirmed *bool
	var label string

	switch slot {
	case SlotName:
		pending, value, confirmed, label = &profile.PendingName, &profile.Name, &profile.NameConfirmed, "name"
	case SlotPhone:
		pending, value, confirmed, label = &profile.PendingPhone, &profile.Phone, &profile.PhoneConfirmed, "number"
	case SlotEmail:
		pending, value, confirmed, label = &profile.PendingEmail, &profile.Email, &profile.EmailConfirmed, "email"
	default:
		return Outcome{Result: types.ToolCallResult{CallID: req.CallID, Success: false, Message: "nothing to confirm"}}
	}

	if *pending == "" {
		return Outcome{Result: types.ToolCallResult{
			CallID:  req.CallID,
			Success: false,
			Message: fmt.Sprintf("no %s has been proposed to the caller yet", label),
		}}
	}

	if !args.Confirmed {
		*pending = ""
		*confirmed = false
		return Outcome{Result: types.ToolCallResult{
			CallID:  req.CallID,
			Success: true,
			Message: fmt.Sprintf("discarded; ask the caller to repeat their %s", label),
		}}
	}

	*value = *pending
	*pending = ""
	*confirmed = true

	return Outcome{Result: d.intakeResult(req.CallID, fmt.Sprintf("%s confirmed", label))}
}

func (d *Dispatcher) handleUpdateInfo(req types.ToolCallRequest) Outcome {
	var args struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Phone   string `json:"phone"`
		OrderID string `json:"orderId"`
		Reason  string `json:"reason"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		return Outcome{Result: types.ToolCallResult{CallID: req.CallID, Success: false, Message: "invalid arguments"}}
	}

	profile := d.session.Profile()
	intake := d.session.Intake()
	callback := d.session.CallbackMode()

	if args.Name != "" {
		profile.PendingName = args.Name
		profile.NameConfirmed = false
		if !callback {
			profile.Name = args.Name
		}
	}
	if args.Phone != "" {
		profile.PendingPhone = args.Phone
		profile.PhoneConfirmed = false
		if !callback {
			profile.Phone = args.Phone
		}
	}
	if args.Email != "" {
		// Email is never committed directly; bookings require an
		// explicit confirmation round-trip.
		profile.PendingEmail = args.Email
		profile.EmailConfirmed = false
	}
	if args.OrderID != "" {
		profile.OrderID = args.OrderID
	}
	if args.Reason != "" {
		profile.Reason = args.Reason
	}
	if args.Message != "" {
		intake.Message = args.Message
		intake.MessageCollected = true
	}

	return Outcome{Result: d.intakeResult(req.CallID, "customer info updated")}
}

func (d *Dispatcher) handleNormalizeEmail(req types.ToolCallRequest) Outcome {
	var args struct {
		Spoken string `json:"spoken"`
	}
	d.parseArgs(req, &args)

	email, err := NormalizeSpokenEmail(args.Spoken)
	if err != nil {
		return Outcome{Result: types.ToolCallResult{
			CallID:  req.CallID,
			Success: false,
			Message: "could not make out a valid address; ask the caller to spell it again, letter by letter",
		}}
	}

	profile := d.session.Profile()
	profile.PendingEmail = email
	profile.EmailConfirmed = false

	return Outcome{Result: types.ToolCallResult{
		CallID:  req.CallID,
		Success: true,
		Message: "read the address back to the caller and ask them to confirm it",
		Fields:  map[string]any{"email": email},
	}}
}

func (d *Dispatcher) handleCheckAvailability(req types.ToolCallRequest) Outcome {
	start, duration, errMsg := d.parseSlotArgs(req)
	if errMsg != "" {
		return Outcome{Result: types.ToolCallResult{CallID: req.CallID, Success: false, Message: errMsg}}
	}

	bctx := d.session.BookingContext()
	return Outcome{Async: func(ctx context.Context) types.ToolCallResult {
		res := d.booker.CheckAvailability(ctx, bctx, start, duration)
		return bookingToolResult(req.CallID, res)
	}}
}

func (d *Dispatcher) handleBookAppointment(req types.ToolCallRequest) Outcome {
	start, duration, errMsg := d.parseSlotArgs(req)
	if errMsg != "" {
		return Outcome{Result: types.ToolCallResult{CallID: req.CallID, Success: false, Message: errMsg}}
	}

	var args struct {
		Notes     string `json:"notes"`
		EmailOnly bool   `json:"emailOnly"`
	}
	d.parseArgs(req, &args)

	// Snapshot profile state on the session loop; the async closure must
	// not touch shared session state.
	profile := d.session.Profile()
	booking := types.BookingRequest{
		Start:          start,
		Duration:       duration,
		AttendeeEmail:  profile.Email,
		AttendeeName:   profile.Name,
		EmailConfirmed: profile.EmailConfirmed,
		EmailOnly:      args.EmailOnly,
		Notes:          args.Notes,
	}
	bctx := d.session.BookingContext()

	return Outcome{Async: func(ctx context.Context) types.ToolCallResult {
		res := d.booker.Book(ctx, bctx, booking)
		return bookingToolResult(req.CallID, res)
	}}
}

// parseSlotArgs extracts the start/duration pair shared by the booking tools
func (d *Dispatcher) parseSlotArgs(req types.ToolCallRequest) (time.Time, time.Duration, string) {
	var args struct {
		Start           string `json:"start"`
		DurationMinutes int    `json:"durationMinutes"`
	}
	if err := json.Unmarshal(req.Arguments, &args); err != nil || args.Start == "" {
		return time.Time{}, 0, "start time is required in RFC 3339 format"
	}
	start, err := time.Parse(time.RFC3339, args.Start)
	if err != nil {
		return time.Time{}, 0, "start time is required in RFC 3339 format"
	}
	return start, time.Duration(args.DurationMinutes) * time.Minute, ""
}

func bookingToolResult(callID string, res types.BookingResult) types.ToolCallResult {
	fields := map[string]any{}
	if res.Success {
		fields["start"] = res.Start.Format(time.RFC3339)
		fields["end"] = res.End.Format(time.RFC3339)
		if res.EventRef != "" {
			fields["eventRef"] = res.EventRef
		}
		if res.EmailOnly {
			fields["emailOnly"] = true
		}
	}
	if len(res.Alternatives) > 0 {
		alts := make([]string, 0, len(res.Alternatives))
		for _, s := range res.Alternatives {
			alts = append(alts, s.Start.Format(time.RFC3339))
		}
		fields["alternatives"] = alts
	}

	return types.ToolCallResult{
		CallID:  callID,
		Success: res.Success,
		Message: res.Message,
		Fields:  fields,
	}
}

// intakeResult builds a success result annotated with the next slot to ask
func (d *Dispatcher) intakeResult(callID, message string) types.ToolCallResult {
	profile := d.session.Profile()
	intake := d.session.Intake()

	fields := map[string]any{}
	if next, ok := intake.NextNeeded(profile); ok {
		fields["nextNeeded"] = string(next)
	} else if intake.Forced {
		if intake.CallbackReady(profile) {
			fields["callbackReady"] = true
		} else if !intake.MessageCollected {
			fields["nextNeeded"] = "message"
		}
	}

	return types.ToolCallResult{CallID: callID, Success: true, Message: message, Fields: fields}
}

// parseArgs tolerantly decodes arguments, logging malformed payloads
func (d *Dispatcher) parseArgs(req types.ToolCallRequest, out any) {
	if len(req.Arguments) == 0 {
		return
	}
	if err := json.Unmarshal(req.Arguments, out); err != nil {
		d.logger.Warn().Err(err).Str("tool", req.Name).Msg("malformed tool arguments")
	}
}
