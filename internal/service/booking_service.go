package service

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pvhs-tutoring/peer-tutoring-api/internal/models"
	"github.com/pvhs-tutoring/peer-tutoring-api/internal/repository"
	appErrors "github.com/pvhs-tutoring/peer-tutoring-api/pkg/errors"
)

const cancelReasonMaxLen = 255

type bookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	CountActiveByTutors(ctx context.Context, tutorIDs []string) (map[string]int, error)
	Cancel(ctx context.Context, id string, canceledAt time.Time, reason *string) (int64, error)
}

type bookingSubjectStore interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type slotEligibility interface {
	EligibleTutorsForSlot(ctx context.Context, subjectID string, start, end time.Time) ([]models.Tutor, error)
	SlotLength() time.Duration
	Location() *time.Location
	InvalidateDate(ctx context.Context, date time.Time)
}

// BookSessionRequest is the payload for committing a booking.
type BookSessionRequest struct {
	SubjectID    string `json:"subject_id" validate:"required"`
	Date         string `json:"date" validate:"required"`
	StartTime    string `json:"start_time" validate:"required"`
	StudentName  string `json:"student_name" validate:"required"`
	StudentPhone string `json:"student_phone" validate:"required"`
}

// BookingResult pairs the persisted booking with its assigned tutor.
type BookingResult struct {
	Booking models.Booking `json:"booking"`
	Tutor   models.Tutor   `json:"-"`
	Subject models.Subject `json:"-"`
}

// BookingService owns the read-select-write booking sequence and
// cancellation. The design is optimistic: eligibility is computed from a
// non-isolated read and the insert's uniqueness guarantee is the only
// linearization point, so a lost race surfaces as RACE_CONFLICT and the
// caller restarts with fresh availability.
type BookingService struct {
	bookings     bookingStore
	subjects     bookingSubjectStore
	availability slotEligibility
	window       *BookingWindow
	validator    *validator.Validate
	logger       *zap.Logger
	metrics      *MetricsService
	now          func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBookingService wires the booking transaction dependencies. The rng is
// used for fair-selection tie-breaks and must not be shared unsynchronized.
func NewBookingService(
	bookings bookingStore,
	subjects bookingSubjectStore,
	availability slotEligibility,
	window *BookingWindow,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
	rng *rand.Rand,
) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &BookingService{
		bookings:     bookings,
		subjects:     subjects,
		availability: availability,
		window:       window,
		validator:    validate,
		logger:       logger,
		metrics:      metrics,
		now:          time.Now,
		rng:          rng,
	}
}

// WithClock overrides the time source, for tests.
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

// Window exposes the booking window policy.
func (s *BookingService) Window() *BookingWindow {
	return s.window
}

// Book commits a booking for the requested subject and slot. The eligible
// tutor set is re-derived here; caller-rendered availability is never
// trusted.
func (s *BookingService) Book(ctx context.Context, req BookSessionRequest) (*BookingResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	phone := NormalizePhone(req.StudentPhone)
	if len(phone) < 10 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student phone must have at least 10 digits")
	}

	loc := s.availability.Location()
	date, err := time.ParseInLocation("2006-01-02", req.Date, loc)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	startClock, err := models.ParseClock(req.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start time, expected HH:MM")
	}

	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown subject")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load subject")
	}

	now := s.now()
	if allowed, reason := s.window.Status(date, now); !allowed {
		return nil, appErrors.Clone(appErrors.ErrBookingWindow, reason)
	}

	start := date.Add(startClock)
	end := start.Add(s.availability.SlotLength())

	candidates, err := s.availability.EligibleTutorsForSlot(ctx, subject.ID, start, end)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		s.recordOutcome(BookingOutcomeCapacity)
		return nil, appErrors.Clone(appErrors.ErrCapacityConflict, "no tutor is free for that slot, please pick another time")
	}

	ids := make([]string, len(candidates))
	for i, tutor := range candidates {
		ids[i] = tutor.ID
	}
	loads, err := s.bookings.CountActiveByTutors(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load tutor booking counts")
	}

	s.mu.Lock()
	tutor := pickFairTutor(candidates, loads, s.rng)
	s.mu.Unlock()

	subjectID := subject.ID
	booking := models.Booking{
		TutorID:      tutor.ID,
		SubjectID:    &subjectID,
		StudentName:  req.StudentName,
		StudentPhone: phone,
		StartTime:    start,
		EndTime:      end,
	}
	if err := s.bookings.Create(ctx, &booking); err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			s.recordOutcome(BookingOutcomeRace)
			s.logger.Info("booking lost commit race",
				zap.String("tutor_id", tutor.ID),
				zap.Time("start", start))
			return nil, appErrors.Clone(appErrors.ErrRaceConflict, "that time was just booked, please choose another slot")
		}
		s.recordOutcome(BookingOutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to persist booking")
	}

	s.recordOutcome(BookingOutcomeConfirmed)
	s.availability.InvalidateDate(ctx, start)
	s.logger.Info("booking confirmed",
		zap.String("booking_id", booking.ID),
		zap.String("tutor_id", tutor.ID),
		zap.String("subject_id", subject.ID),
		zap.Time("start", start))

	return &BookingResult{Booking: booking, Tutor: *tutor, Subject: *subject}, nil
}

// Cancel flags the booking canceled on behalf of its tutor. Canceling an
// already-canceled booking is a no-op returning the current row; the bool
// reports whether this call performed the cancellation.
func (s *BookingService) Cancel(ctx context.Context, bookingID, tutorID, reason string) (*models.Booking, bool, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load booking")
	}
	if booking.TutorID != tutorID {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "booking belongs to another tutor")
	}
	if booking.IsCanceled {
		return booking, false, nil
	}

	var reasonPtr *string
	if trimmed := truncate(reason, cancelReasonMaxLen); trimmed != "" {
		reasonPtr = &trimmed
	}

	canceledAt := s.now().UTC()
	rows, err := s.bookings.Cancel(ctx, bookingID, canceledAt, reasonPtr)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to cancel booking")
	}
	if rows == 0 {
		// A concurrent cancel won; reload and report the stored state.
		stored, err := s.bookings.FindByID(ctx, bookingID)
		return stored, false, err
	}

	booking.IsCanceled = true
	booking.CanceledAt = &canceledAt
	booking.CancelReason = reasonPtr
	s.availability.InvalidateDate(ctx, booking.StartTime)
	s.logger.Info("booking canceled", zap.String("booking_id", bookingID), zap.String("tutor_id", tutorID))
	return booking, true, nil
}

func (s *BookingService) recordOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordBookingOutcome(outcome)
	}
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
