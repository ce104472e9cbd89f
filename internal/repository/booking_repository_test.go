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

func newBookingMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestBookingRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec("INSERT INTO bookings").
		WillReturnResult(sqlmock.NewResult(1, 1))

	booking := &models.Booking{
		TutorID:      "t1",
		StudentName:  "Jamie",
		StudentPhone: "5551234567",
		StartTime:    time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC),
		EndTime:      time.Date(2026, 8, 31, 15, 30, 0, 0, time.UTC),
	}
	err := repo.Create(context.Background(), booking)
	require.NoError(t, err)
	assert.NotEmpty(t, booking.ID)
	assert.False(t, booking.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateSlotTaken(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec("INSERT INTO bookings").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_tutor_booking_start"})

	err := repo.Create(context.Background(), &models.Booking{TutorID: "t1"})
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateOtherUniqueViolation(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec("INSERT INTO bookings").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "some_other_constraint"})

	err := repo.Create(context.Background(), &models.Booking{TutorID: "t1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryExistsActiveOverlap(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	start := time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("t1", start, end).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsActiveOverlap(context.Background(), "t1", start, end)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCountActiveByTutors(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectQuery("SELECT tutor_id, COUNT").
		WithArgs("t1", "t2").
		WillReturnRows(sqlmock.NewRows([]string{"tutor_id", "load"}).
			AddRow("t1", 3).
			AddRow("t2", 5))

	loads, err := repo.CountActiveByTutors(context.Background(), []string{"t1", "t2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"t1": 3, "t2": 5}, loads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCountActiveByTutorsEmpty(t *testing.T) {
	db, _, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	loads, err := repo.CountActiveByTutors(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, loads)
}

func TestBookingRepositoryCancel(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	canceledAt := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	reason := "sick"

	mock.ExpectExec("UPDATE bookings SET is_canceled").
		WithArgs("b1", canceledAt, "sick").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows, err := repo.Cancel(context.Background(), "b1", canceledAt, &reason)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCancelAlreadyCanceled(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	canceledAt := time.Now().UTC()

	mock.ExpectExec("UPDATE bookings SET is_canceled").
		WillReturnResult(sqlmock.NewResult(0, 0))

	rows, err := repo.Cancel(context.Background(), "b1", canceledAt, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryListUpcomingByTutor(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	from := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "tutor_id", "subject_id", "student_name", "student_phone", "start_time", "end_time", "created_at", "is_canceled", "canceled_at", "cancel_reason"}).
		AddRow("b1", "t1", nil, "Jamie", "5551234567", from.Add(24*time.Hour), from.Add(24*time.Hour+30*time.Minute), from, false, nil, nil)

	mock.ExpectQuery("SELECT (.+) FROM bookings").
		WithArgs("t1", from).
		WillReturnRows(rows)

	bookings, err := repo.ListUpcomingByTutor(context.Background(), "t1", from)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "b1", bookings[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
