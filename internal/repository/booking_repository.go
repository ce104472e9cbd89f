package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pvhs-tutoring/peer-tutoring-api/internal/models"
)

// BookingRepository provides persistence for bookings. The partial unique
// index on active (tutor_id, start_time) rows is the final arbiter between
// concurrent booking attempts.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a booking. Returns ErrSlotTaken when another active booking
// already holds the (tutor, start time) slot.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO bookings (id, tutor_id, subject_id, student_name, student_phone, start_time, end_time, created_at, is_canceled, canceled_at, cancel_reason)
		VALUES (:id, :tutor_id, :subject_id, :student_name, :student_phone, :start_time, :end_time, :created_at, :is_canceled, :canceled_at, :cancel_reason)`
	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		if uniqueViolation(err, "uq_tutor_booking_start") {
			return ErrSlotTaken
		}
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// FindByID loads a booking by id.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	const query = `SELECT id, tutor_id, subject_id, student_name, student_phone, start_time, end_time, created_at, is_canceled, canceled_at, cancel_reason FROM bookings WHERE id = $1`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// ExistsActiveOverlap reports whether any active booking for the tutor
// overlaps the half-open interval [start, end).
func (r *BookingRepository) ExistsActiveOverlap(ctx context.Context, tutorID string, start, end time.Time) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM bookings
		WHERE tutor_id = $1 AND NOT is_canceled AND start_time < $3 AND end_time > $2
	)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, tutorID, start, end); err != nil {
		return false, fmt.Errorf("check booking overlap: %w", err)
	}
	return exists, nil
}

// ListActiveInRange returns active bookings for the tutor intersecting
// [from, to), ordered by start.
func (r *BookingRepository) ListActiveInRange(ctx context.Context, tutorID string, from, to time.Time) ([]models.Booking, error) {
	const query = `SELECT id, tutor_id, subject_id, student_name, student_phone, start_time, end_time, created_at, is_canceled, canceled_at, cancel_reason
		FROM bookings
		WHERE tutor_id = $1 AND NOT is_canceled AND start_time < $3 AND end_time > $2
		ORDER BY start_time ASC`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, tutorID, from, to); err != nil {
		return nil, fmt.Errorf("list bookings in range: %w", err)
	}
	return bookings, nil
}

// CountActiveByTutors returns the active booking count per tutor id. Tutors
// with no bookings are absent from the map.
func (r *BookingRepository) CountActiveByTutors(ctx context.Context, tutorIDs []string) (map[string]int, error) {
	if len(tutorIDs) == 0 {
		return map[string]int{}, nil
	}
	query, args, err := sqlx.In(`SELECT tutor_id, COUNT(*) AS load FROM bookings WHERE NOT is_canceled AND tutor_id IN (?) GROUP BY tutor_id`, tutorIDs)
	if err != nil {
		return nil, fmt.Errorf("build load query: %w", err)
	}
	query = r.db.Rebind(query)

	rows := []struct {
		TutorID string `db:"tutor_id"`
		Load    int    `db:"load"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count active bookings: %w", err)
	}

	loads := make(map[string]int, len(rows))
	for _, row := range rows {
		loads[row.TutorID] = row.Load
	}
	return loads, nil
}

// Cancel flags the booking canceled. Returns the number of rows updated;
// zero means the booking was already canceled or missing.
func (r *BookingRepository) Cancel(ctx context.Context, id string, canceledAt time.Time, reason *string) (int64, error) {
	const query = `UPDATE bookings SET is_canceled = TRUE, canceled_at = $2, cancel_reason = $3 WHERE id = $1 AND NOT is_canceled`
	res, err := r.db.ExecContext(ctx, query, id, canceledAt, reason)
	if err != nil {
		return 0, fmt.Errorf("cancel booking: %w", err)
	}
	return res.RowsAffected()
}

// ListUpcomingByTutor returns the tutor's active bookings starting at or
// after the given time.
func (r *BookingRepository) ListUpcomingByTutor(ctx context.Context, tutorID string, from time.Time) ([]models.Booking, error) {
	const query = `SELECT id, tutor_id, subject_id, student_name, student_phone, start_time, end_time, created_at, is_canceled, canceled_at, cancel_reason
		FROM bookings
		WHERE tutor_id = $1 AND NOT is_canceled AND start_time >= $2
		ORDER BY start_time ASC`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, tutorID, from); err != nil {
		return nil, fmt.Errorf("list upcoming bookings: %w", err)
	}
	return bookings, nil
}

// ListRecentCancellations returns the tutor's most recently canceled
// bookings, newest first.
func (r *BookingRepository) ListRecentCancellations(ctx context.Context, tutorID string, limit int) ([]models.Booking, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `SELECT id, tutor_id, subject_id, student_name, student_phone, start_time, end_time, created_at, is_canceled, canceled_at, cancel_reason
		FROM bookings
		WHERE tutor_id = $1 AND is_canceled
		ORDER BY canceled_at DESC
		LIMIT $2`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, tutorID, limit); err != nil {
		return nil, fmt.Errorf("list recent cancellations: %w", err)
	}
	return bookings, nil
}

// ListActiveStartingBetween returns all active bookings with start_time in
// [from, to), used by the reminder sweep.
func (r *BookingRepository) ListActiveStartingBetween(ctx context.Context, from, to time.Time) ([]models.Booking, error) {
	const query = `SELECT id, tutor_id, subject_id, student_name, student_phone, start_time, end_time, created_at, is_canceled, canceled_at, cancel_reason
		FROM bookings
		WHERE NOT is_canceled AND start_time >= $1 AND start_time < $2
		ORDER BY start_time ASC`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, from, to); err != nil {
		return nil, fmt.Errorf("list bookings for reminders: %w", err)
	}
	return bookings, nil
}

// ListAll returns every booking ordered by start time, for roster export.
func (r *BookingRepository) ListAll(ctx context.Context) ([]models.Booking, error) {
	const query = `SELECT id, tutor_id, subject_id, student_name, student_phone, start_time, end_time, created_at, is_canceled, canceled_at, cancel_reason
		FROM bookings
		ORDER BY start_time ASC`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query); err != nil {
		return nil, fmt.Errorf("list all bookings: %w", err)
	}
	return bookings, nil
}
