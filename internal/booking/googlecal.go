package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleCalendar implements Calendar against the Google Calendar API
type GoogleCalendar struct {
	service *calendar.Service
	logger  zerolog.Logger
}

// NewGoogleCalendar creates a calendar client from a credentials file
func NewGoogleCalendar(ctx context.Context, credentialsPath string, logger zerolog.Logger) (*GoogleCalendar, error) {
	service, err := calendar.NewService(ctx, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &GoogleCalendar{service: service, logger: logger}, nil
}

// FreeBusy reports whether the window overlaps any existing event
func (g *GoogleCalendar) FreeBusy(ctx context.Context, calendarID string, start, end time.Time) (bool, error) {
	resp, err := g.service.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: start.Format(time.RFC3339),
		TimeMax: end.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("freebusy query failed: %w", err)
	}

	cal, ok := resp.Calendars[calendarID]
	if !ok {
		return false, fmt.Errorf("freebusy response missing calendar %s", calendarID)
	}
	return len(cal.Busy) > 0, nil
}

// CreateEvent inserts the event and returns its id
func (g *GoogleCalendar) CreateEvent(ctx context.Context, calendarID string, ev Event) (string, error) {
	created, err := g.service.Events.Insert(calendarID, &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: ev.Timezone},
		End:         &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: ev.Timezone},
		Attendees:   []*calendar.EventAttendee{{Email: ev.AttendeeEmail, DisplayName: ev.AttendeeName}},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("event insert failed: %w", err)
	}

	g.logger.Debug().Str("event_id", created.Id).Str("calendar", calendarID).Msg("calendar event created")
	return created.Id, nil
}
