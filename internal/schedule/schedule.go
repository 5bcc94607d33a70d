package schedule

import (
	"time"

	"github.com/voicebridge/voicebridge/internal/types"
)

// Evaluator answers open/closed for a schedule at an instant
type Evaluator interface {
	IsOpen(s *types.Schedule, at time.Time) bool
}

// Clock is the default Evaluator backed by the schedule's own time zone
type Clock struct{}

// IsOpen reports whether the instant falls inside any of the schedule's
// windows for its weekday. A window with CloseMinute < OpenMinute is an
// overnight window and wraps into the following day, so an instant early
// in the day is also checked against the previous day's windows.
func (Clock) IsOpen(s *types.Schedule, at time.Time) bool {
	if s == nil || len(s.Days) == 0 {
		// No schedule means always open
		return true
	}

	loc := time.UTC
	if s.Timezone != "" {
		if l, err := time.LoadLocation(s.Timezone); err == nil {
			loc = l
		}
	}
	local := at.In(loc)
	minute := local.Hour()*60 + local.Minute()

	for _, w := range s.Days[local.Weekday()] {
		if w.CloseMinute > w.OpenMinute {
			if minute >= w.OpenMinute && minute < w.CloseMinute {
				return true
			}
		} else if w.CloseMinute < w.OpenMinute {
			// Overnight window: open portion of today
			if minute >= w.OpenMinute {
				return true
			}
		}
	}

	// Spill-over portion of the previous day's overnight windows
	prev := local.Weekday() - 1
	if prev < time.Sunday {
		prev = time.Saturday
	}
	for _, w := range s.Days[prev] {
		if w.CloseMinute < w.OpenMinute && minute < w.CloseMinute {
			return true
		}
	}

	return false
}

// WindowFits reports whether the whole interval [start, end) stays inside
// the schedule's open windows. Used for booking validation.
func WindowFits(e Evaluator, s *types.Schedule, start, end time.Time) bool {
	if !end.After(start) {
		return false
	}
	// Windows are minute granular, so a minute walk cannot step over a
	// closed gap in the middle of the interval.
	for t := start; t.Before(end); t = t.Add(time.Minute) {
		if !e.IsOpen(s, t) {
			return false
		}
	}
	return true
}
