package models

import (
	"fmt"
	"time"
)

// Tutor offers recurring weekly availability for a set of subjects.
// Phone numbers are stored digits-only and are unique.
type Tutor struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone"`
	PinHash   string    `db:"pin_hash" json:"-"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TutorRef is the public projection of a tutor offered for a slot.
type TutorRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Ref returns the public projection of the tutor.
func (t Tutor) Ref() TutorRef {
	return TutorRef{ID: t.ID, Name: t.Name}
}

// WeeklyAvailability is a recurring availability block. DayOfWeek uses
// 0=Monday through 6=Sunday. Times are clock values ("15:04" or "15:04:05").
type WeeklyAvailability struct {
	ID        string `db:"id" json:"id"`
	TutorID   string `db:"tutor_id" json:"tutor_id"`
	DayOfWeek int    `db:"day_of_week" json:"day_of_week"`
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
}

// TutorException is a date-specific blackout. Both time bounds absent means
// the whole day is blacked out.
type TutorException struct {
	ID        string    `db:"id" json:"id"`
	TutorID   string    `db:"tutor_id" json:"tutor_id"`
	Date      time.Time `db:"date" json:"date"`
	StartTime *string   `db:"start_time" json:"start_time,omitempty"`
	EndTime   *string   `db:"end_time" json:"end_time,omitempty"`
	Note      *string   `db:"note" json:"note,omitempty"`
}

// IsFullDay reports whether the exception blacks out the entire date.
// A row with exactly one bound present is malformed; it is treated as
// full-day so availability fails closed.
func (e TutorException) IsFullDay() bool {
	return e.StartTime == nil || e.EndTime == nil
}

// ParseClock parses a clock value in "15:04" or "15:04:05" form into a
// duration since midnight.
func ParseClock(value string) (time.Duration, error) {
	var h, m, s int
	if _, err := fmt.Sscanf(value, "%d:%d:%d", &h, &m, &s); err != nil {
		s = 0
		if _, err := fmt.Sscanf(value, "%d:%d", &h, &m); err != nil {
			return 0, fmt.Errorf("parse clock %q: %w", value, err)
		}
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || s < 0 || s > 59 {
		return 0, fmt.Errorf("parse clock %q: out of range", value)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second, nil
}

// WeekdayIndex maps a date to the 0=Monday..6=Sunday convention used by
// WeeklyAvailability.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
