package models

import "time"

// Booking is a committed tutoring session. Rows are never deleted;
// cancellation is a one-way flag and canceled rows are kept for audit
// and fairness history.
type Booking struct {
	ID           string     `db:"id" json:"id"`
	TutorID      string     `db:"tutor_id" json:"tutor_id"`
	SubjectID    *string    `db:"subject_id" json:"subject_id,omitempty"`
	StudentName  string     `db:"student_name" json:"student_name"`
	StudentPhone string     `db:"student_phone" json:"student_phone"`
	StartTime    time.Time  `db:"start_time" json:"start_time"`
	EndTime      time.Time  `db:"end_time" json:"end_time"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	IsCanceled   bool       `db:"is_canceled" json:"is_canceled"`
	CanceledAt   *time.Time `db:"canceled_at" json:"canceled_at,omitempty"`
	CancelReason *string    `db:"cancel_reason" json:"cancel_reason,omitempty"`
}

// IsActive reports whether the booking still occupies its slot.
func (b Booking) IsActive() bool {
	return !b.IsCanceled
}

// OpenSlot is one bookable interval with the tutors free to take it.
type OpenSlot struct {
	Start  time.Time  `json:"start"`
	End    time.Time  `json:"end"`
	Tutors []TutorRef `json:"tutors"`
}
