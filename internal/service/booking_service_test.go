package service

import (
	"context"
	"database/sql"
	"math/rand"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pvhs-tutoring/peer-tutoring-api/internal/models"
	"github.com/pvhs-tutoring/peer-tutoring-api/internal/repository"
	appErrors "github.com/pvhs-tutoring/peer-tutoring-api/pkg/errors"
)

type mockBookingStore struct {
	created    []models.Booking
	createErrs []error
	bookings   map[string]*models.Booking
	loads      map[string]int
	cancelRows int64
	cancelErr  error
}

func (m *mockBookingStore) Create(ctx context.Context, booking *models.Booking) error {
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return err
		}
	}
	booking.ID = "generated"
	m.created = append(m.created, *booking)
	return nil
}

func (m *mockBookingStore) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	if booking, ok := m.bookings[id]; ok {
		cp := *booking
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookingStore) CountActiveByTutors(ctx context.Context, tutorIDs []string) (map[string]int, error) {
	out := map[string]int{}
	for _, id := range tutorIDs {
		if load, ok := m.loads[id]; ok {
			out[id] = load
		}
	}
	return out, nil
}

func (m *mockBookingStore) Cancel(ctx context.Context, id string, canceledAt time.Time, reason *string) (int64, error) {
	if m.cancelErr != nil {
		return 0, m.cancelErr
	}
	if m.cancelRows > 0 {
		if booking, ok := m.bookings[id]; ok {
			booking.IsCanceled = true
			booking.CanceledAt = &canceledAt
			booking.CancelReason = reason
		}
	}
	return m.cancelRows, nil
}

type mockSubjectStore struct {
	subjects map[string]*models.Subject
}

func (m *mockSubjectStore) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if subject, ok := m.subjects[id]; ok {
		cp := *subject
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockEligibility struct {
	tutors      []models.Tutor
	err         error
	invalidated []time.Time
}

func (m *mockEligibility) EligibleTutorsForSlot(ctx context.Context, subjectID string, start, end time.Time) ([]models.Tutor, error) {
	return m.tutors, m.err
}

func (m *mockEligibility) SlotLength() time.Duration { return 30 * time.Minute }

func (m *mockEligibility) Location() *time.Location { return time.UTC }

func (m *mockEligibility) InvalidateDate(ctx context.Context, date time.Time) {
	m.invalidated = append(m.invalidated, date)
}

func newBookingService(store *mockBookingStore, subjects *mockSubjectStore, eligibility *mockEligibility) *BookingService {
	window := NewBookingWindow(time.UTC, 22)
	rng := rand.New(rand.NewSource(1))
	svc := NewBookingService(store, subjects, eligibility, window, validator.New(), zap.NewNop(), nil, rng)
	return svc.WithClock(func() time.Time {
		return time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	})
}

func validBookRequest() BookSessionRequest {
	return BookSessionRequest{
		SubjectID:    "subj",
		Date:         "2026-08-31",
		StartTime:    "15:00",
		StudentName:  "Jamie",
		StudentPhone: "(555) 123-4567",
	}
}

func mathSubject() *mockSubjectStore {
	return &mockSubjectStore{subjects: map[string]*models.Subject{
		"subj": {ID: "subj", Name: "Algebra II"},
	}}
}

func TestBookAssignsLeastLoadedTutor(t *testing.T) {
	store := &mockBookingStore{loads: map[string]int{"a": 3, "b": 5}}
	eligibility := &mockEligibility{tutors: []models.Tutor{{ID: "a", Name: "Alice"}, {ID: "b", Name: "Ben"}}}
	svc := newBookingService(store, mathSubject(), eligibility)

	result, err := svc.Book(context.Background(), validBookRequest())
	require.NoError(t, err)
	assert.Equal(t, "a", result.Tutor.ID)
	assert.Equal(t, "5551234567", result.Booking.StudentPhone)
	assert.Equal(t, time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC), result.Booking.StartTime)
	assert.Equal(t, time.Date(2026, 8, 31, 15, 30, 0, 0, time.UTC), result.Booking.EndTime)
	require.Len(t, store.created, 1)
	assert.Len(t, eligibility.invalidated, 1)
}

func TestBookRejectsShortPhone(t *testing.T) {
	svc := newBookingService(&mockBookingStore{}, mathSubject(), &mockEligibility{})

	req := validBookRequest()
	req.StudentPhone = "12345"
	_, err := svc.Book(context.Background(), req)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestBookUnknownSubject(t *testing.T) {
	svc := newBookingService(&mockBookingStore{}, &mockSubjectStore{}, &mockEligibility{})

	_, err := svc.Book(context.Background(), validBookRequest())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestBookOutsideWindow(t *testing.T) {
	svc := newBookingService(&mockBookingStore{}, mathSubject(), &mockEligibility{})

	req := validBookRequest()
	req.Date = "2026-08-27"
	_, err := svc.Book(context.Background(), req)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrBookingWindow))
}

func TestBookCapacityConflict(t *testing.T) {
	svc := newBookingService(&mockBookingStore{}, mathSubject(), &mockEligibility{})

	_, err := svc.Book(context.Background(), validBookRequest())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrCapacityConflict))
}

func TestBookRaceConflict(t *testing.T) {
	store := &mockBookingStore{createErrs: []error{repository.ErrSlotTaken}}
	eligibility := &mockEligibility{tutors: []models.Tutor{{ID: "a", Name: "Alice"}}}
	svc := newBookingService(store, mathSubject(), eligibility)

	_, err := svc.Book(context.Background(), validBookRequest())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrRaceConflict))
	assert.Empty(t, store.created)
	assert.Empty(t, eligibility.invalidated)
}

func TestBookSequentialAttemptsOneWinsOneLoses(t *testing.T) {
	store := &mockBookingStore{createErrs: []error{nil, repository.ErrSlotTaken}}
	eligibility := &mockEligibility{tutors: []models.Tutor{{ID: "a", Name: "Alice"}}}
	svc := newBookingService(store, mathSubject(), eligibility)

	_, err := svc.Book(context.Background(), validBookRequest())
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), validBookRequest())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrRaceConflict))
	assert.Len(t, store.created, 1)
}

func TestCancelNotFound(t *testing.T) {
	svc := newBookingService(&mockBookingStore{}, mathSubject(), &mockEligibility{})

	_, _, err := svc.Cancel(context.Background(), "missing", "t1", "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestCancelForeignBookingForbidden(t *testing.T) {
	store := &mockBookingStore{bookings: map[string]*models.Booking{
		"b1": {ID: "b1", TutorID: "other"},
	}}
	svc := newBookingService(store, mathSubject(), &mockEligibility{})

	_, _, err := svc.Cancel(context.Background(), "b1", "t1", "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
}

func TestCancelTransitionsOnce(t *testing.T) {
	store := &mockBookingStore{
		bookings: map[string]*models.Booking{
			"b1": {ID: "b1", TutorID: "t1", StartTime: time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)},
		},
		cancelRows: 1,
	}
	eligibility := &mockEligibility{}
	svc := newBookingService(store, mathSubject(), eligibility)

	booking, canceled, err := svc.Cancel(context.Background(), "b1", "t1", "family emergency")
	require.NoError(t, err)
	assert.True(t, canceled)
	assert.True(t, booking.IsCanceled)
	require.NotNil(t, booking.CancelReason)
	assert.Equal(t, "family emergency", *booking.CancelReason)
	assert.Len(t, eligibility.invalidated, 1)

	booking, canceled, err = svc.Cancel(context.Background(), "b1", "t1", "again")
	require.NoError(t, err)
	assert.False(t, canceled)
	assert.True(t, booking.IsCanceled)
	assert.Len(t, eligibility.invalidated, 1)
}

func TestCancelConcurrentLoserReloads(t *testing.T) {
	store := &mockBookingStore{
		bookings: map[string]*models.Booking{
			"b1": {ID: "b1", TutorID: "t1"},
		},
		cancelRows: 0,
	}
	svc := newBookingService(store, mathSubject(), &mockEligibility{})

	booking, canceled, err := svc.Cancel(context.Background(), "b1", "t1", "")
	require.NoError(t, err)
	assert.False(t, canceled)
	assert.NotNil(t, booking)
}

func TestCancelTruncatesLongReason(t *testing.T) {
	store := &mockBookingStore{
		bookings: map[string]*models.Booking{
			"b1": {ID: "b1", TutorID: "t1"},
		},
		cancelRows: 1,
	}
	svc := newBookingService(store, mathSubject(), &mockEligibility{})

	long := make([]byte, 400)
	for i := range long {
		long[i] = 'x'
	}
	booking, _, err := svc.Cancel(context.Background(), "b1", "t1", string(long))
	require.NoError(t, err)
	require.NotNil(t, booking.CancelReason)
	assert.Len(t, *booking.CancelReason, cancelReasonMaxLen)
}
