package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pvhs-tutoring/peer-tutoring-api/internal/models"
)

// TutorRepository provides persistence for tutors, their weekly availability
// blocks, and their blackout exceptions.
type TutorRepository struct {
	db *sqlx.DB
}

// NewTutorRepository creates a new tutor repository.
func NewTutorRepository(db *sqlx.DB) *TutorRepository {
	return &TutorRepository{db: db}
}

// FindByID loads a tutor by id.
func (r *TutorRepository) FindByID(ctx context.Context, id string) (*models.Tutor, error) {
	const query = `SELECT id, name, phone, pin_hash, active, created_at, updated_at FROM tutors WHERE id = $1`
	var tutor models.Tutor
	if err := r.db.GetContext(ctx, &tutor, query, id); err != nil {
		return nil, err
	}
	return &tutor, nil
}

// FindByPhone loads a tutor by normalized phone number.
func (r *TutorRepository) FindByPhone(ctx context.Context, phone string) (*models.Tutor, error) {
	const query = `SELECT id, name, phone, pin_hash, active, created_at, updated_at FROM tutors WHERE phone = $1`
	var tutor models.Tutor
	if err := r.db.GetContext(ctx, &tutor, query, phone); err != nil {
		return nil, err
	}
	return &tutor, nil
}

// FindByIDs returns the subset of tutors matching the given ids.
func (r *TutorRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Tutor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, name, phone, pin_hash, active, created_at, updated_at FROM tutors WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build tutor id query: %w", err)
	}
	query = r.db.Rebind(query)
	var tutors []models.Tutor
	if err := r.db.SelectContext(ctx, &tutors, query, args...); err != nil {
		return nil, fmt.Errorf("list tutors by ids: %w", err)
	}
	return tutors, nil
}

// ListActiveBySubject returns active tutors teaching the subject.
func (r *TutorRepository) ListActiveBySubject(ctx context.Context, subjectID string) ([]models.Tutor, error) {
	const query = `SELECT t.id, t.name, t.phone, t.pin_hash, t.active, t.created_at, t.updated_at
		FROM tutors t
		JOIN tutor_subjects ts ON ts.tutor_id = t.id
		WHERE ts.subject_id = $1 AND t.active
		ORDER BY t.created_at ASC`
	var tutors []models.Tutor
	if err := r.db.SelectContext(ctx, &tutors, query, subjectID); err != nil {
		return nil, fmt.Errorf("list tutors by subject: %w", err)
	}
	return tutors, nil
}

// Create stores a tutor and their taught subjects in one transaction.
func (r *TutorRepository) Create(ctx context.Context, tutor *models.Tutor, subjectIDs []string) error {
	if tutor.ID == "" {
		tutor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if tutor.CreatedAt.IsZero() {
		tutor.CreatedAt = now
	}
	tutor.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create tutor: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO tutors (id, name, phone, pin_hash, active, created_at, updated_at) VALUES (:id, :name, :phone, :pin_hash, :active, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, tutor); err != nil {
		if uniqueViolation(err, "") {
			err = ErrDuplicate
			return err
		}
		err = fmt.Errorf("create tutor: %w", err)
		return err
	}

	if err = replaceSubjects(ctx, tx, tutor.ID, subjectIDs); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit create tutor: %w", err)
		return err
	}
	return nil
}

// ReplaceSubjects swaps the tutor's taught subject set.
func (r *TutorRepository) ReplaceSubjects(ctx context.Context, tutorID string, subjectIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace subjects: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = replaceSubjects(ctx, tx, tutorID, subjectIDs); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit replace subjects: %w", err)
		return err
	}
	return nil
}

func replaceSubjects(ctx context.Context, tx *sqlx.Tx, tutorID string, subjectIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tutor_subjects WHERE tutor_id = $1`, tutorID); err != nil {
		return fmt.Errorf("clear tutor subjects: %w", err)
	}
	for _, subjectID := range subjectIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tutor_subjects (tutor_id, subject_id) VALUES ($1, $2)`, tutorID, subjectID); err != nil {
			return fmt.Errorf("assign tutor subject: %w", err)
		}
	}
	return nil
}

// ListSubjectIDs returns the subject ids the tutor teaches.
func (r *TutorRepository) ListSubjectIDs(ctx context.Context, tutorID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT subject_id FROM tutor_subjects WHERE tutor_id = $1`, tutorID); err != nil {
		return nil, fmt.Errorf("list tutor subjects: %w", err)
	}
	return ids, nil
}

// Deactivate marks the tutor inactive so they are never offered again.
func (r *TutorRepository) Deactivate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE tutors SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate tutor: %w", err)
	}
	return nil
}

// AvailabilityForDay returns the tutor's blocks for one weekday, earliest
// start first.
func (r *TutorRepository) AvailabilityForDay(ctx context.Context, tutorID string, dayOfWeek int) ([]models.WeeklyAvailability, error) {
	const query = `SELECT id, tutor_id, day_of_week, start_time, end_time FROM weekly_availability WHERE tutor_id = $1 AND day_of_week = $2 ORDER BY start_time ASC`
	var blocks []models.WeeklyAvailability
	if err := r.db.SelectContext(ctx, &blocks, query, tutorID, dayOfWeek); err != nil {
		return nil, fmt.Errorf("list availability for day: %w", err)
	}
	return blocks, nil
}

// ListAvailability returns all of the tutor's weekly blocks ordered by day
// and start.
func (r *TutorRepository) ListAvailability(ctx context.Context, tutorID string) ([]models.WeeklyAvailability, error) {
	const query = `SELECT id, tutor_id, day_of_week, start_time, end_time FROM weekly_availability WHERE tutor_id = $1 ORDER BY day_of_week ASC, start_time ASC`
	var blocks []models.WeeklyAvailability
	if err := r.db.SelectContext(ctx, &blocks, query, tutorID); err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return blocks, nil
}

// CreateAvailability stores a new weekly block.
func (r *TutorRepository) CreateAvailability(ctx context.Context, block *models.WeeklyAvailability) error {
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	const query = `INSERT INTO weekly_availability (id, tutor_id, day_of_week, start_time, end_time) VALUES (:id, :tutor_id, :day_of_week, :start_time, :end_time)`
	if _, err := r.db.NamedExecContext(ctx, query, block); err != nil {
		return fmt.Errorf("create availability: %w", err)
	}
	return nil
}

// DeleteAvailability removes a block owned by the tutor. Returns the number
// of rows removed so callers can distinguish missing from foreign rows.
func (r *TutorRepository) DeleteAvailability(ctx context.Context, id, tutorID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM weekly_availability WHERE id = $1 AND tutor_id = $2`, id, tutorID)
	if err != nil {
		return 0, fmt.Errorf("delete availability: %w", err)
	}
	return res.RowsAffected()
}

// ListExceptions returns all blackout exceptions for the tutor ordered by
// date then start.
func (r *TutorRepository) ListExceptions(ctx context.Context, tutorID string) ([]models.TutorException, error) {
	const query = `SELECT id, tutor_id, date, start_time, end_time, note FROM tutor_exceptions WHERE tutor_id = $1 ORDER BY date ASC, start_time ASC NULLS FIRST`
	var exceptions []models.TutorException
	if err := r.db.SelectContext(ctx, &exceptions, query, tutorID); err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}
	return exceptions, nil
}

// ListExceptionsOn returns the tutor's exceptions for a single date.
func (r *TutorRepository) ListExceptionsOn(ctx context.Context, tutorID string, date time.Time) ([]models.TutorException, error) {
	const query = `SELECT id, tutor_id, date, start_time, end_time, note FROM tutor_exceptions WHERE tutor_id = $1 AND date = $2`
	var exceptions []models.TutorException
	if err := r.db.SelectContext(ctx, &exceptions, query, tutorID, date.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("list exceptions on date: %w", err)
	}
	return exceptions, nil
}

// CreateException stores a new blackout. Duplicate (tutor, date, bounds)
// rows are rejected by the unique constraint.
func (r *TutorRepository) CreateException(ctx context.Context, exception *models.TutorException) error {
	if exception.ID == "" {
		exception.ID = uuid.NewString()
	}
	const query = `INSERT INTO tutor_exceptions (id, tutor_id, date, start_time, end_time, note) VALUES (:id, :tutor_id, :date, :start_time, :end_time, :note)`
	if _, err := r.db.NamedExecContext(ctx, query, exception); err != nil {
		if uniqueViolation(err, "") {
			return ErrDuplicate
		}
		return fmt.Errorf("create exception: %w", err)
	}
	return nil
}

// DeleteException removes a blackout owned by the tutor.
func (r *TutorRepository) DeleteException(ctx context.Context, id, tutorID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tutor_exceptions WHERE id = $1 AND tutor_id = $2`, id, tutorID)
	if err != nil {
		return 0, fmt.Errorf("delete exception: %w", err)
	}
	return res.RowsAffected()
}
