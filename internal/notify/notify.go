package notify

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Invite is a calendar-invite attachment for a confirmation message
type Invite struct {
	UID           string
	Summary       string
	Description   string
	Start         time.Time
	End           time.Time
	Organizer     string
	AttendeeEmail string
	AttendeeName  string
}

// Message is one outbound notification
type Message struct {
	To      string
	Subject string
	Body    string
	Invite  *Invite
}

// Sender delivers a message with an optional calendar-invite attachment
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ICS renders the invite as an iCalendar document
func (i *Invite) ICS() []byte {
	var b strings.Builder
	stamp := func(t time.Time) string { return t.UTC().Format("20060102T150405Z") }

	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//voicebridge//orchestrator//EN\r\n")
	b.WriteString("METHOD:REQUEST\r\n")
	b.WriteString("BEGIN:VEVENT\r\n")
	fmt.Fprintf(&b, "UID:%s\r\n", i.UID)
	fmt.Fprintf(&b, "DTSTAMP:%s\r\n", stamp(time.Now()))
	fmt.Fprintf(&b, "DTSTART:%s\r\n", stamp(i.Start))
	fmt.Fprintf(&b, "DTEND:%s\r\n", stamp(i.End))
	fmt.Fprintf(&b, "SUMMARY:%s\r\n", escapeICS(i.Summary))
	if i.Description != "" {
		fmt.Fprintf(&b, "DESCRIPTION:%s\r\n", escapeICS(i.Description))
	}
	if i.Organizer != "" {
		fmt.Fprintf(&b, "ORGANIZER:mailto:%s\r\n", i.Organizer)
	}
	fmt.Fprintf(&b, "ATTENDEE;CN=%s;RSVP=TRUE:mailto:%s\r\n", escapeICS(i.AttendeeName), i.AttendeeEmail)
	b.WriteString("END:VEVENT\r\n")
	b.WriteString("END:VCALENDAR\r\n")
	return []byte(b.String())
}

func escapeICS(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ";", `\;`)
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}
