package types

import "time"

// BookingRequest describes a desired appointment slot
type BookingRequest struct {
	Start          time.Time     `json:"start"`
	Duration       time.Duration `json:"duration"`
	AttendeeEmail  string        `json:"attendeeEmail"`
	AttendeeName   string        `json:"attendeeName,omitempty"`
	EmailConfirmed bool          `json:"emailConfirmed"`

	// EmailOnly is set when the caller accepted a confirmation email
	// instead of a calendar event (calendar integration unavailable).
	EmailOnly bool `json:"emailOnly"`

	Notes string `json:"notes,omitempty"`
}

// Slot is a candidate appointment window
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// BookingResult reports the outcome of a booking attempt
type BookingResult struct {
	Success      bool      `json:"success"`
	Start        time.Time `json:"start,omitempty"`
	End          time.Time `json:"end,omitempty"`
	EventRef     string    `json:"eventRef,omitempty"`
	EmailOnly    bool      `json:"emailOnly,omitempty"`
	Message      string    `json:"message,omitempty"`
	Alternatives []Slot    `json:"alternatives,omitempty"`
}
