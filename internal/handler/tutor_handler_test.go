package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pvhs-tutoring/peer-tutoring-api/internal/middleware"
	"github.com/pvhs-tutoring/peer-tutoring-api/internal/models"
	"github.com/pvhs-tutoring/peer-tutoring-api/internal/service"
)

type fakeScheduleRepo struct {
	blocks []models.WeeklyAvailability
}

func (r *fakeScheduleRepo) ListAvailability(ctx context.Context, tutorID string) ([]models.WeeklyAvailability, error) {
	return r.blocks, nil
}

func (r *fakeScheduleRepo) CreateAvailability(ctx context.Context, block *models.WeeklyAvailability) error {
	block.ID = "block1"
	r.blocks = append(r.blocks, *block)
	return nil
}

func (r *fakeScheduleRepo) DeleteAvailability(ctx context.Context, id, tutorID string) (int64, error) {
	return 0, nil
}

func (r *fakeScheduleRepo) ListExceptions(ctx context.Context, tutorID string) ([]models.TutorException, error) {
	return nil, nil
}

func (r *fakeScheduleRepo) ListExceptionsOn(ctx context.Context, tutorID string, date time.Time) ([]models.TutorException, error) {
	return nil, nil
}

func (r *fakeScheduleRepo) CreateException(ctx context.Context, exception *models.TutorException) error {
	exception.ID = "e1"
	return nil
}

func (r *fakeScheduleRepo) DeleteException(ctx context.Context, id, tutorID string) (int64, error) {
	return 0, nil
}

func (r *fakeScheduleRepo) ReplaceSubjects(ctx context.Context, tutorID string, subjectIDs []string) error {
	return nil
}

func (r *fakeScheduleRepo) ListSubjectIDs(ctx context.Context, tutorID string) ([]string, error) {
	return []string{"subj"}, nil
}

type fakeBookingReader struct{}

func (r *fakeBookingReader) ListUpcomingByTutor(ctx context.Context, tutorID string, from time.Time) ([]models.Booking, error) {
	return nil, nil
}

func (r *fakeBookingReader) ListRecentCancellations(ctx context.Context, tutorID string, limit int) ([]models.Booking, error) {
	return nil, nil
}

type cancelableBookings struct {
	booking    models.Booking
	cancelRows int64
}

func (s *cancelableBookings) Create(ctx context.Context, booking *models.Booking) error {
	return nil
}

func (s *cancelableBookings) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	if id != s.booking.ID {
		return nil, sql.ErrNoRows
	}
	cp := s.booking
	return &cp, nil
}

func (s *cancelableBookings) CountActiveByTutors(ctx context.Context, tutorIDs []string) (map[string]int, error) {
	return map[string]int{}, nil
}

func (s *cancelableBookings) Cancel(ctx context.Context, id string, canceledAt time.Time, reason *string) (int64, error) {
	return s.cancelRows, nil
}

func newTutorFixture(store *cancelableBookings) *TutorHandler {
	tutors := service.NewTutorService(&fakeScheduleRepo{}, &fakeBookingReader{}, nil, zap.NewNop(), time.UTC)
	window := service.NewBookingWindow(time.UTC, 22)
	bookings := service.NewBookingService(
		store,
		&stubSubjects{},
		&stubEligibility{},
		window,
		nil,
		zap.NewNop(),
		nil,
		rand.New(rand.NewSource(1)),
	)
	return NewTutorHandler(nil, tutors, bookings, nil)
}

func authedContext(t *testing.T, rec *httptest.ResponseRecorder, tutor *models.Tutor) *gin.Context {
	t.Helper()
	c, _ := gin.CreateTestContext(rec)
	c.Set(middleware.ContextTutorKey, tutor)
	return c
}

func TestAddAvailability(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTutorFixture(&cancelableBookings{})

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, &models.Tutor{ID: "t1", Name: "Alice", Active: true})
	c.Request = httptest.NewRequest(http.MethodPost, "/tutors/me/availability",
		strings.NewReader(`{"day_of_week":0,"start_time":"15:00","end_time":"17:00"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.AddAvailability(c)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	var block models.WeeklyAvailability
	require.NoError(t, json.Unmarshal(body.Data, &block))
	assert.Equal(t, "block1", block.ID)
	assert.Equal(t, "t1", block.TutorID)
}

func TestAddAvailabilityUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTutorFixture(&cancelableBookings{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/tutors/me/availability",
		strings.NewReader(`{"day_of_week":0,"start_time":"15:00","end_time":"17:00"}`))

	handler.AddAvailability(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCancelBooking(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &cancelableBookings{
		booking: models.Booking{
			ID:        "b1",
			TutorID:   "t1",
			StartTime: time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC),
		},
		cancelRows: 1,
	}
	handler := newTutorFixture(store)

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, &models.Tutor{ID: "t1", Name: "Alice", Active: true})
	c.Request = httptest.NewRequest(http.MethodPost, "/tutors/me/bookings/b1/cancel",
		strings.NewReader(`{"reason":"sick"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "b1"}}

	handler.CancelBooking(c)
	require.Equal(t, http.StatusOK, rec.Code)

	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	var booking models.Booking
	require.NoError(t, json.Unmarshal(body.Data, &booking))
	assert.True(t, booking.IsCanceled)
	require.NotNil(t, booking.CancelReason)
	assert.Equal(t, "sick", *booking.CancelReason)
}

func TestCancelBookingWrongTutor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &cancelableBookings{
		booking: models.Booking{ID: "b1", TutorID: "t1"},
	}
	handler := newTutorFixture(store)

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, &models.Tutor{ID: "t2", Name: "Bea", Active: true})
	c.Request = httptest.NewRequest(http.MethodPost, "/tutors/me/bookings/b1/cancel", nil)
	c.Params = gin.Params{{Key: "id", Value: "b1"}}

	handler.CancelBooking(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCancelBookingNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTutorFixture(&cancelableBookings{})

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, &models.Tutor{ID: "t1", Active: true})
	c.Request = httptest.NewRequest(http.MethodPost, "/tutors/me/bookings/missing/cancel", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.CancelBooking(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
