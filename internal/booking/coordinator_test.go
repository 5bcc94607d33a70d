package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicebridge/voicebridge/internal/notify"
	"github.com/voicebridge/voicebridge/internal/schedule"
	"github.com/voicebridge/voicebridge/internal/types"
)

type fakeCalendar struct {
	busy        map[time.Time]bool
	freeBusyErr error
	createErr   error
	created     []Event
}

func (c *fakeCalendar) FreeBusy(_ context.Context, _ string, start, _ time.Time) (bool, error) {
	if c.freeBusyErr != nil {
		return false, c.freeBusyErr
	}
	return c.busy[start], nil
}

func (c *fakeCalendar) CreateEvent(_ context.Context, _ string, ev Event) (string, error) {
	if c.createErr != nil {
		return "", c.createErr
	}
	c.created = append(c.created, ev)
	return "event-1", nil
}

type recordingSender struct {
	sent []notify.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg notify.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func businessTenant() types.TenantSnapshot {
	return types.TenantSnapshot{
		ID:       "tenant-1",
		Name:     "Acme Support",
		Timezone: "UTC",
		Schedule: &types.Schedule{
			Timezone: "UTC",
			Days: map[time.Weekday][]types.DayWindow{
				time.Monday: {{OpenMinute: 9 * 60, CloseMinute: 17 * 60}},
			},
		},
	}
}

func newTestCoordinator(cal Calendar, sender notify.Sender) *Coordinator {
	return NewCoordinator(cal, sender, schedule.Clock{}, 30*time.Minute, 24*time.Hour, zerolog.Nop())
}

func confirmedRequest(start time.Time) types.BookingRequest {
	return types.BookingRequest{
		Start:          start,
		Duration:       30 * time.Minute,
		AttendeeEmail:  "caller@example.com",
		AttendeeName:   "Alex Caller",
		EmailConfirmed: true,
	}
}

// 2026-08-31 is a Monday
var monday9 = time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

func TestBookHappyPath(t *testing.T) {
	cal := &fakeCalendar{}
	sender := &recordingSender{}
	c := newTestCoordinator(cal, sender)

	res := c.Book(context.Background(), Context{Tenant: businessTenant()}, confirmedRequest(monday9))

	require.True(t, res.Success)
	assert.Equal(t, "event-1", res.EventRef)
	assert.False(t, res.EmailOnly)
	require.Len(t, cal.created, 1)
	require.Len(t, sender.sent, 1)
	require.NotNil(t, sender.sent[0].Invite)
	assert.Equal(t, "caller@example.com", sender.sent[0].To)
}

func TestBookRejectsUnconfirmedEmail(t *testing.T) {
	cal := &fakeCalendar{}
	c := newTestCoordinator(cal, &recordingSender{})

	req := confirmedRequest(monday9)
	req.EmailConfirmed = false

	res := c.Book(context.Background(), Context{Tenant: businessTenant()}, req)
	require.False(t, res.Success)
	assert.Contains(t, res.Message, "confirmed")
	assert.Empty(t, cal.created)
}

func TestBookRejectsInvalidEmail(t *testing.T) {
	c := newTestCoordinator(&fakeCalendar{}, &recordingSender{})

	req := confirmedRequest(monday9)
	req.AttendeeEmail = "not-an-email"

	res := c.Book(context.Background(), Context{Tenant: businessTenant()}, req)
	require.False(t, res.Success)
}

func TestBookRejectsOutsideWorkingHours(t *testing.T) {
	c := newTestCoordinator(&fakeCalendar{}, &recordingSender{})

	req := confirmedRequest(time.Date(2026, 8, 31, 19, 0, 0, 0, time.UTC))

	res := c.Book(context.Background(), Context{Tenant: businessTenant()}, req)
	require.False(t, res.Success)
	assert.Contains(t, res.Message, "working hours")
}

func TestBookBusyReturnsAlternatives(t *testing.T) {
	cal := &fakeCalendar{busy: map[time.Time]bool{monday9: true}}
	c := newTestCoordinator(cal, &recordingSender{})

	res := c.Book(context.Background(), Context{Tenant: businessTenant()}, confirmedRequest(monday9))

	require.False(t, res.Success)
	require.NotEmpty(t, res.Alternatives)
	assert.LessOrEqual(t, len(res.Alternatives), 3)
	for _, slot := range res.Alternatives {
		busy, err := cal.FreeBusy(context.Background(), "primary", slot.Start, slot.End)
		require.NoError(t, err)
		assert.False(t, busy, "alternative slot %v must be free", slot.Start)
	}
}

func TestBookDegradesToEmailOnlyWhenCalendarFails(t *testing.T) {
	cal := &fakeCalendar{freeBusyErr: errors.New("calendar down")}
	sender := &recordingSender{}
	c := newTestCoordinator(cal, sender)

	res := c.Book(context.Background(), Context{Tenant: businessTenant()}, confirmedRequest(monday9))

	require.True(t, res.Success)
	assert.True(t, res.EmailOnly)
	assert.Empty(t, res.EventRef)
	require.Len(t, sender.sent, 1, "confirmation email must still be sent")
}

func TestBookSucceedsWhenNotificationFails(t *testing.T) {
	cal := &fakeCalendar{}
	sender := &recordingSender{err: errors.New("smtp down")}
	c := newTestCoordinator(cal, sender)

	res := c.Book(context.Background(), Context{Tenant: businessTenant()}, confirmedRequest(monday9))
	require.True(t, res.Success, "lost confirmation must not fail the booking")
}

func TestBookClampsDuration(t *testing.T) {
	cal := &fakeCalendar{}
	c := newTestCoordinator(cal, &recordingSender{})

	tenant := businessTenant()
	tenant.MaxBookingDuration = time.Hour

	req := confirmedRequest(monday9)
	req.Duration = 6 * time.Hour

	res := c.Book(context.Background(), Context{Tenant: tenant}, req)
	require.True(t, res.Success)
	assert.Equal(t, monday9.Add(time.Hour), res.End)
}

func TestResolveTimezoneChain(t *testing.T) {
	c := newTestCoordinator(nil, nil)

	tests := []struct {
		name string
		bctx Context
		want string
	}{
		{
			name: "workflow override wins",
			bctx: Context{
				Tenant:   types.TenantSnapshot{Timezone: "Europe/Berlin"},
				Workflow: &types.WorkflowSnapshot{Timezone: "Europe/London"},
			},
			want: "Europe/London",
		},
		{
			name: "tenant default",
			bctx: Context{Tenant: types.TenantSnapshot{Timezone: "Europe/Berlin"}},
			want: "Europe/Berlin",
		},
		{
			name: "agent zone",
			bctx: Context{Agent: &types.AgentSnapshot{Timezone: "America/Chicago"}},
			want: "America/Chicago",
		},
		{
			name: "caller locale heuristic",
			bctx: Context{CallerLocale: "de-DE"},
			want: "Europe/Berlin",
		},
		{
			name: "fallback UTC",
			bctx: Context{},
			want: "UTC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ResolveTimezone(tt.bctx).String())
		})
	}
}

func TestCheckAvailabilityFree(t *testing.T) {
	c := newTestCoordinator(&fakeCalendar{}, nil)

	res := c.CheckAvailability(context.Background(), Context{Tenant: businessTenant()}, monday9, 30*time.Minute)
	require.True(t, res.Success)
	assert.Equal(t, monday9, res.Start)
}

func TestCheckAvailabilityBusy(t *testing.T) {
	cal := &fakeCalendar{busy: map[time.Time]bool{monday9: true}}
	c := newTestCoordinator(cal, nil)

	res := c.CheckAvailability(context.Background(), Context{Tenant: businessTenant()}, monday9, 30*time.Minute)
	require.False(t, res.Success)
	assert.NotEmpty(t, res.Alternatives)
}
