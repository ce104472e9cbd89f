package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvhs-tutoring/peer-tutoring-api/internal/models"
)

func newTutorMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func tutorColumns() []string {
	return []string{"id", "name", "phone", "pin_hash", "active", "created_at", "updated_at"}
}

func TestTutorRepositoryFindByPhone(t *testing.T) {
	db, mock, cleanup := newTutorMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, phone, pin_hash, active, created_at, updated_at FROM tutors WHERE phone = $1")).
		WithArgs("5551234567").
		WillReturnRows(sqlmock.NewRows(tutorColumns()).AddRow("t1", "Alice", "5551234567", "hash", true, now, now))

	tutor, err := repo.FindByPhone(context.Background(), "5551234567")
	require.NoError(t, err)
	assert.Equal(t, "t1", tutor.ID)
	assert.True(t, tutor.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newTutorMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tutors").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM tutor_subjects").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO tutor_subjects").
		WithArgs(sqlmock.AnyArg(), "subj").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tutor := &models.Tutor{Name: "Alice", Phone: "5551234567", PinHash: "hash", Active: true}
	err := repo.Create(context.Background(), tutor, []string{"subj"})
	require.NoError(t, err)
	assert.NotEmpty(t, tutor.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorRepositoryCreateDuplicatePhone(t *testing.T) {
	db, mock, cleanup := newTutorMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tutors").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "tutors_phone_key"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Tutor{Name: "Alice", Phone: "5551234567"}, nil)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorRepositoryCreateAvailability(t *testing.T) {
	db, mock, cleanup := newTutorMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	mock.ExpectExec("INSERT INTO weekly_availability").
		WillReturnResult(sqlmock.NewResult(1, 1))

	block := &models.WeeklyAvailability{TutorID: "t1", DayOfWeek: 0, StartTime: "15:00", EndTime: "17:00"}
	err := repo.CreateAvailability(context.Background(), block)
	require.NoError(t, err)
	assert.NotEmpty(t, block.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorRepositoryDeleteAvailabilityOwnership(t *testing.T) {
	db, mock, cleanup := newTutorMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	mock.ExpectExec("DELETE FROM weekly_availability").
		WithArgs("block1", "t1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	rows, err := repo.DeleteAvailability(context.Background(), "block1", "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorRepositoryListExceptionsOn(t *testing.T) {
	db, mock, cleanup := newTutorMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	date := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	start, end := "15:00:00", "16:00:00"
	rows := sqlmock.NewRows([]string{"id", "tutor_id", "date", "start_time", "end_time", "note"}).
		AddRow("e1", "t1", date, start, end, nil)

	mock.ExpectQuery("SELECT (.+) FROM tutor_exceptions").
		WithArgs("t1", "2026-08-31").
		WillReturnRows(rows)

	exceptions, err := repo.ListExceptionsOn(context.Background(), "t1", date)
	require.NoError(t, err)
	require.Len(t, exceptions, 1)
	assert.False(t, exceptions[0].IsFullDay())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorRepositoryCreateExceptionDuplicate(t *testing.T) {
	db, mock, cleanup := newTutorMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	mock.ExpectExec("INSERT INTO tutor_exceptions").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_tutor_exception_bounds"})

	err := repo.CreateException(context.Background(), &models.TutorException{TutorID: "t1", Date: time.Now()})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}
