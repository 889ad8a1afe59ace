/*
window.go - Time-window matching for override sheets

PURPOSE:
  Decides whether a sheet's time window covers a concrete instant. Two
  window kinds exist:

  ABSOLUTE_TIME:   "HH:MM" clock range, compared against the wall-clock
                   time of the slice being resolved. [start, end)
  DURATION_BASED:  minute offsets relative to the booking start, compared
                   against the elapsed minutes of the slice. [start, end)

MIDNIGHT:
  Absolute windows must not cross midnight (22:00-02:00). Lexicographic
  HH:MM comparison cannot express them; such windows are rejected at
  validation time and skipped with a warning during resolution. Duration
  windows have no such limit and naturally span multiple days.

SEE ALSO:
  - resolve.go: Calls Matches per hour slice
  - factory/sheet.go: Validates windows at save time
*/
package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WINDOW TYPES
// =============================================================================

type WindowType string

const (
	WindowAbsoluteTime  WindowType = "absolute_time"
	WindowDurationBased WindowType = "duration_based"
)

// Window is one interval of a sheet with its value. Exactly one pair of
// bounds is meaningful depending on Type.
type Window struct {
	Type WindowType

	// ABSOLUTE_TIME bounds, zero-padded "HH:MM". End is exclusive and may
	// be "24:00" to cover through end of day.
	StartTime string
	EndTime   string

	// DURATION_BASED bounds, minutes relative to booking start. End exclusive.
	StartMinute int
	EndMinute   int

	Value decimal.Decimal
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the window's bounds. Malformed windows (bad clock syntax,
// start >= end, midnight-crossing absolute ranges) are invalid: the factory
// rejects them at save time and the resolver skips them with a warning.
func (w Window) Validate() error {
	switch w.Type {
	case WindowAbsoluteTime:
		if err := validateClock(w.StartTime, false); err != nil {
			return &InvalidWindowError{Window: w, Detail: fmt.Sprintf("start time: %v", err)}
		}
		if err := validateClock(w.EndTime, true); err != nil {
			return &InvalidWindowError{Window: w, Detail: fmt.Sprintf("end time: %v", err)}
		}
		if w.StartTime >= w.EndTime {
			return &InvalidWindowError{Window: w, Detail: "start must be before end (midnight-crossing windows are not supported)"}
		}
	case WindowDurationBased:
		if w.StartMinute < 0 {
			return &InvalidWindowError{Window: w, Detail: "start minute must be >= 0"}
		}
		if w.StartMinute >= w.EndMinute {
			return &InvalidWindowError{Window: w, Detail: "start minute must be before end minute"}
		}
	default:
		return &InvalidWindowError{Window: w, Detail: fmt.Sprintf("unknown window type %q", w.Type)}
	}
	return nil
}

// validateClock checks zero-padded "HH:MM". The exclusive end bound may be
// "24:00"; a start bound may not.
func validateClock(s string, isEnd bool) error {
	if len(s) != 5 || s[2] != ':' {
		return fmt.Errorf("%q is not in HH:MM form", s)
	}
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%02d:%02d", &hh, &mm); err != nil {
		return fmt.Errorf("%q is not in HH:MM form", s)
	}
	if isEnd && s == "24:00" {
		return nil
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return fmt.Errorf("%q is out of range", s)
	}
	return nil
}

// =============================================================================
// MATCHING
// =============================================================================

// Matches reports whether the window covers an instant described by its
// wall-clock time and its elapsed offset since the booking start. Pure
// function, no I/O. Callers must Validate first; a malformed window
// matches nothing.
func (w Window) Matches(clockHHMM string, elapsedMinutes int) bool {
	switch w.Type {
	case WindowAbsoluteTime:
		// Zero-padded HH:MM compares correctly as strings.
		return w.StartTime <= clockHHMM && clockHHMM < w.EndTime
	case WindowDurationBased:
		return w.StartMinute <= elapsedMinutes && elapsedMinutes < w.EndMinute
	default:
		return false
	}
}

// Clock formats an instant as the zero-padded "HH:MM" string the matcher
// compares against.
func Clock(t time.Time) string {
	return t.Format("15:04")
}

// FullDayWindow covers an entire day with one value. Used by the surge
// workflow when a config carries no windows of its own.
func FullDayWindow(value decimal.Decimal) Window {
	return Window{Type: WindowAbsoluteTime, StartTime: "00:00", EndTime: "24:00", Value: value}
}
