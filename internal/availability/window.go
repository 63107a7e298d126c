// Package availability computes bookable time slots per store, day and professional.
package availability

import (
	"fmt"
	"time"
)

const (
	// WindowDays is the number of consecutive days shown at once.
	WindowDays = 6
	// DayLayout is the wire format of a calendar day.
	DayLayout = "2006-01-02"
)

// Window is a run of consecutive calendar days, formatted with DayLayout.
type Window [WindowDays]string

// ComputeWindow returns the window starting at anchor's calendar date, or at
// now's date when anchor is nil. Time of day is truncated, never rounded, and
// dates are taken in the anchor's own location.
func ComputeWindow(anchor *time.Time, now time.Time) Window {
	base := now
	if anchor != nil {
		base = *anchor
	}
	y, m, d := base.Date()
	var w Window
	for i := range w {
		// noon keeps DST transitions from shifting the date
		w[i] = time.Date(y, m, d+i, 12, 0, 0, 0, base.Location()).Format(DayLayout)
	}
	return w
}

// Start is the first day of the window.
func (w Window) Start() string { return w[0] }

// Contains reports whether day is one of the window's days.
func (w Window) Contains(day string) bool {
	for _, candidate := range w {
		if candidate == day {
			return true
		}
	}
	return false
}

// Days returns the window as a slice.
func (w Window) Days() []string {
	out := make([]string, len(w))
	copy(out, w[:])
	return out
}

// ParseDay validates a YYYY-MM-DD day in loc.
func ParseDay(day string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DayLayout, day, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDay, day)
	}
	return t, nil
}
