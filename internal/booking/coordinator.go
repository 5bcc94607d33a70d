package booking

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/voicebridge/voicebridge/internal/notify"
	"github.com/voicebridge/voicebridge/internal/schedule"
	"github.com/voicebridge/voicebridge/internal/types"
)

const (
	defaultDuration    = 30 * time.Minute
	defaultMaxDuration = 2 * time.Hour
	maxAlternatives    = 3
)

// Event is a calendar event to create
type Event struct {
	Summary       string
	Description   string
	Start         time.Time
	End           time.Time
	Timezone      string
	AttendeeEmail string
	AttendeeName  string
}

// Calendar is the free/busy + event-creation collaborator
type Calendar interface {
	FreeBusy(ctx context.Context, calendarID string, start, end time.Time) (busy bool, err error)
	CreateEvent(ctx context.Context, calendarID string, ev Event) (ref string, err error)
}

// Context carries the per-session snapshots booking decisions depend on
type Context struct {
	Tenant       types.TenantSnapshot
	Workflow     *types.WorkflowSnapshot
	Agent        *types.AgentSnapshot
	CallerLocale string
}

// Coordinator resolves booking policy and executes bookings
type Coordinator struct {
	calendar Calendar
	notifier notify.Sender
	eval     schedule.Evaluator
	scanStep time.Duration
	horizon  time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// NewCoordinator creates a Coordinator. calendar may be nil when the
// tenant has no calendar integration; bookings then degrade to email-only.
func NewCoordinator(calendar Calendar, notifier notify.Sender, eval schedule.Evaluator, scanStep, horizon time.Duration, logger zerolog.Logger) *Coordinator {
	if scanStep <= 0 {
		scanStep = 30 * time.Minute
	}
	if horizon <= 0 {
		horizon = 72 * time.Hour
	}
	return &Coordinator{
		calendar: calendar,
		notifier: notifier,
		eval:     eval,
		scanStep: scanStep,
		horizon:  horizon,
		now:      time.Now,
		logger:   logger,
	}
}

// ResolveTimezone picks the effective zone: workflow override, tenant
// default, assigned-agent zone, then a heuristic from the caller locale.
func (c *Coordinator) ResolveTimezone(bctx Context) *time.Location {
	candidates := []string{}
	if bctx.Workflow != nil {
		candidates = append(candidates, bctx.Workflow.Timezone)
	}
	candidates = append(candidates, bctx.Tenant.Timezone)
	if bctx.Agent != nil {
		candidates = append(candidates, bctx.Agent.Timezone)
	}
	candidates = append(candidates, localeZone(bctx.CallerLocale))

	for _, name := range candidates {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

// localeZone guesses a zone from a BCP-47ish locale hint
func localeZone(locale string) string {
	switch normalizeLocale(locale) {
	case "de":
		return "Europe/Berlin"
	case "fr":
		return "Europe/Paris"
	case "es":
		return "Europe/Madrid"
	case "it":
		return "Europe/Rome"
	case "nl":
		return "Europe/Amsterdam"
	case "gb":
		return "Europe/London"
	case "us", "en":
		return "America/New_York"
	}
	return ""
}

func normalizeLocale(locale string) string {
	if locale == "" {
		return ""
	}
	// Prefer the region subtag when present: en-GB -> gb
	for i := 0; i < len(locale); i++ {
		if locale[i] == '-' || locale[i] == '_' {
			return lower(locale[i+1:])
		}
	}
	return lower(locale)
}

func lower(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// clampDuration bounds the requested duration to tenant policy
func (c *Coordinator) clampDuration(bctx Context, d time.Duration) time.Duration {
	if d <= 0 {
		d = defaultDuration
		if bctx.Workflow != nil && bctx.Workflow.BookingDuration > 0 {
			d = bctx.Workflow.BookingDuration
		}
	}
	max := bctx.Tenant.MaxBookingDuration
	if max <= 0 {
		max = defaultMaxDuration
	}
	if d > max {
		d = max
	}
	return d
}

// workingSchedule returns the schedule bookings are validated against,
// pinned to the resolved zone when the schedule has none of its own.
func (c *Coordinator) workingSchedule(bctx Context, zone *time.Location) *types.Schedule {
	sched := bctx.Tenant.Schedule
	if sched == nil {
		return nil
	}
	if sched.Timezone == "" {
		pinned := *sched
		pinned.Timezone = zone.String()
		return &pinned
	}
	return sched
}

func (c *Coordinator) calendarID(bctx Context) string {
	if bctx.Agent != nil && bctx.Agent.Email != "" {
		return bctx.Agent.Email
	}
	return "primary"
}

// CheckAvailability reports whether the slot is free, with alternatives
// when it is not.
func (c *Coordinator) CheckAvailability(ctx context.Context, bctx Context, start time.Time, duration time.Duration) types.BookingResult {
	zone := c.ResolveTimezone(bctx)
	duration = c.clampDuration(bctx, duration)
	end := start.Add(duration)
	sched := c.workingSchedule(bctx, zone)

	if sched != nil && !schedule.WindowFits(c.eval, sched, start, end) {
		return types.BookingResult{
			Success:      false,
			Message:      "requested time is outside working hours",
			Alternatives: c.alternatives(ctx, bctx, sched, start, duration),
		}
	}

	if c.calendar == nil {
		// No calendar integration: optimistically free
		return types.BookingResult{Success: true, Start: start, End: end}
	}

	busy, err := c.calendar.FreeBusy(ctx, c.calendarID(bctx), start, end)
	if err != nil {
		c.logger.Error().Err(err).Time("start", start).Msg("free/busy check failed")
		return types.BookingResult{Success: false, Message: "calendar is unavailable right now"}
	}
	if busy {
		return types.BookingResult{
			Success:      false,
			Message:      "requested time is not available",
			Alternatives: c.alternatives(ctx, bctx, sched, start, duration),
		}
	}
	return types.BookingResult{Success: true, Start: start, End: end}
}

// Book validates, creates the event and dispatches the confirmation.
// Rejections are explicit; external-collaborator failures degrade to the
// best still-valid outcome instead of aborting.
func (c *Coordinator) Book(ctx context.Context, bctx Context, req types.BookingRequest) types.BookingResult {
	if req.AttendeeEmail == "" || !validAddress(req.AttendeeEmail) {
		return types.BookingResult{Success: false, Message: "attendee email is missing or invalid"}
	}
	if !req.EmailConfirmed {
		return types.BookingResult{Success: false, Message: "email address has not been confirmed by the caller"}
	}

	zone := c.ResolveTimezone(bctx)
	duration := c.clampDuration(bctx, req.Duration)
	start := req.Start
	end := start.Add(duration)
	sched := c.workingSchedule(bctx, zone)

	if sched != nil && !schedule.WindowFits(c.eval, sched, start, end) {
		return types.BookingResult{
			Success:      false,
			Message:      "requested time is outside working hours",
			Alternatives: c.alternatives(ctx, bctx, sched, start, duration),
		}
	}

	emailOnly := req.EmailOnly || c.calendar == nil
	var eventRef string

	if !emailOnly {
		busy, err := c.calendar.FreeBusy(ctx, c.calendarID(bctx), start, end)
		if err != nil {
			// Calendar unreachable: degrade to email-only confirmation
			c.logger.Error().Err(err).Msg("free/busy check failed, degrading to email-only booking")
			emailOnly = true
		} else if busy {
			return types.BookingResult{
				Success:      false,
				Message:      "requested time is not available",
				Alternatives: c.alternatives(ctx, bctx, sched, start, duration),
			}
		}
	}

	if !emailOnly {
		ref, err := c.calendar.CreateEvent(ctx, c.calendarID(bctx), Event{
			Summary:       fmt.Sprintf("Appointment with %s", attendeeName(req)),
			Description:   req.Notes,
			Start:         start,
			End:           end,
			Timezone:      zone.String(),
			AttendeeEmail: req.AttendeeEmail,
			AttendeeName:  req.AttendeeName,
		})
		if err != nil {
			c.logger.Error().Err(err).Msg("event creation failed, degrading to email-only booking")
			emailOnly = true
		} else {
			eventRef = ref
		}
	}

	c.sendConfirmation(ctx, bctx, req, start, end)

	return types.BookingResult{
		Success:   true,
		Start:     start,
		End:       end,
		EventRef:  eventRef,
		EmailOnly: emailOnly,
	}
}

func (c *Coordinator) sendConfirmation(ctx context.Context, bctx Context, req types.BookingRequest, start, end time.Time) {
	if c.notifier == nil {
		return
	}

	zone := c.ResolveTimezone(bctx)
	msg := notify.Message{
		To:      req.AttendeeEmail,
		Subject: fmt.Sprintf("Appointment confirmation - %s", bctx.Tenant.Name),
		Body: fmt.Sprintf("Your appointment is confirmed for %s.",
			start.In(zone).Format("Monday, 2 January 2006 at 15:04")),
		Invite: &notify.Invite{
			UID:           uuid.New().String(),
			Summary:       fmt.Sprintf("Appointment with %s", bctx.Tenant.Name),
			Description:   req.Notes,
			Start:         start,
			End:           end,
			AttendeeEmail: req.AttendeeEmail,
			AttendeeName:  attendeeName(req),
		},
	}

	if err := c.notifier.Send(ctx, msg); err != nil {
		// Booking already succeeded; a lost confirmation is logged, not fatal
		c.logger.Error().Err(err).Str("to", req.AttendeeEmail).Msg("confirmation send failed")
	}
}

// alternatives scans forward in fixed increments for up to three free
// slots that fit working hours.
func (c *Coordinator) alternatives(ctx context.Context, bctx Context, sched *types.Schedule, from time.Time, duration time.Duration) []types.Slot {
	var out []types.Slot
	limit := from.Add(c.horizon)

	for t := from.Add(c.scanStep); t.Before(limit) && len(out) < maxAlternatives; t = t.Add(c.scanStep) {
		end := t.Add(duration)
		if sched != nil && !schedule.WindowFits(c.eval, sched, t, end) {
			continue
		}
		if c.calendar != nil {
			busy, err := c.calendar.FreeBusy(ctx, c.calendarID(bctx), t, end)
			if err != nil || busy {
				continue
			}
		}
		out = append(out, types.Slot{Start: t, End: end})
	}
	return out
}

func validAddress(addr string) bool {
	if strings.Count(addr, "@") != 1 {
		return false
	}
	_, err := mail.ParseAddress(addr)
	return err == nil
}

func attendeeName(req types.BookingRequest) string {
	if req.AttendeeName != "" {
		return req.AttendeeName
	}
	return req.AttendeeEmail
}
