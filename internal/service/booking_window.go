package service

import (
	"fmt"
	"time"
)

// BookingWindow gates how soon a new booking may be scheduled. Bookings open
// the day after the current date in the reference timezone; at or past the
// nightly cutoff the next day closes too.
type BookingWindow struct {
	loc        *time.Location
	cutoffHour int
}

// NewBookingWindow builds the booking window policy.
func NewBookingWindow(loc *time.Location, cutoffHour int) *BookingWindow {
	if loc == nil {
		loc = time.UTC
	}
	if cutoffHour <= 0 || cutoffHour > 23 {
		cutoffHour = 22
	}
	return &BookingWindow{loc: loc, cutoffHour: cutoffHour}
}

// EarliestBookableDate returns the first date (midnight, reference timezone)
// a new booking may target given the current time.
func (w *BookingWindow) EarliestBookableDate(now time.Time) time.Time {
	local := now.In(w.loc)
	earliest := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, w.loc).AddDate(0, 0, 1)
	if local.Hour() >= w.cutoffHour {
		earliest = earliest.AddDate(0, 0, 1)
	}
	return earliest
}

// Status reports whether the target date is bookable, with a reason when it
// is not. Same-day-or-past and after-cutoff denials carry distinct messages.
func (w *BookingWindow) Status(target, now time.Time) (bool, string) {
	local := now.In(w.loc)
	earliest := w.EarliestBookableDate(now)
	targetDay := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, w.loc)

	if !targetDay.Before(earliest) {
		return true, ""
	}

	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, w.loc)
	var reason string
	if !targetDay.After(today) {
		reason = "Same-day bookings are not available."
	} else {
		reason = fmt.Sprintf("After %s, next-day sessions close.", formatCutoff(w.cutoffHour))
	}
	return false, fmt.Sprintf("%s Earliest available date is %s.", reason, earliest.Format("January 02, 2006"))
}

func formatCutoff(hour int) string {
	return time.Date(0, 1, 1, hour, 0, 0, 0, time.UTC).Format("3:04 PM")
}
