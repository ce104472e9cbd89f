package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pvhs-tutoring/peer-tutoring-api/internal/models"
	"github.com/pvhs-tutoring/peer-tutoring-api/internal/repository"
	appErrors "github.com/pvhs-tutoring/peer-tutoring-api/pkg/errors"
)

type tutorScheduleRepository interface {
	ListAvailability(ctx context.Context, tutorID string) ([]models.WeeklyAvailability, error)
	CreateAvailability(ctx context.Context, block *models.WeeklyAvailability) error
	DeleteAvailability(ctx context.Context, id, tutorID string) (int64, error)
	ListExceptions(ctx context.Context, tutorID string) ([]models.TutorException, error)
	ListExceptionsOn(ctx context.Context, tutorID string, date time.Time) ([]models.TutorException, error)
	CreateException(ctx context.Context, exception *models.TutorException) error
	DeleteException(ctx context.Context, id, tutorID string) (int64, error)
	ReplaceSubjects(ctx context.Context, tutorID string, subjectIDs []string) error
	ListSubjectIDs(ctx context.Context, tutorID string) ([]string, error)
}

type tutorBookingReader interface {
	ListUpcomingByTutor(ctx context.Context, tutorID string, from time.Time) ([]models.Booking, error)
	ListRecentCancellations(ctx context.Context, tutorID string, limit int) ([]models.Booking, error)
}

// AddAvailabilityRequest creates a recurring weekly block.
type AddAvailabilityRequest struct {
	DayOfWeek *int   `json:"day_of_week" validate:"required,min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// AddExceptionRequest creates a blackout. Leave both times empty for a
// full-day blackout; a single bound is rejected.
type AddExceptionRequest struct {
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Note      string `json:"note"`
}

// TutorDashboard aggregates what the tutor portal shows.
type TutorDashboard struct {
	Tutor               models.TutorRef             `json:"tutor"`
	SubjectIDs          []string                    `json:"subject_ids"`
	Availability        []models.WeeklyAvailability `json:"availability"`
	Exceptions          []models.TutorException     `json:"exceptions"`
	UpcomingBookings    []models.Booking            `json:"upcoming_bookings"`
	RecentCancellations []models.Booking            `json:"recent_cancellations"`
}

// TutorService manages a tutor's schedule: weekly blocks, blackout
// exceptions, and taught subjects.
type TutorService struct {
	repo      tutorScheduleRepository
	bookings  tutorBookingReader
	validator *validator.Validate
	logger    *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewTutorService instantiates TutorService.
func NewTutorService(repo tutorScheduleRepository, bookings tutorBookingReader, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *TutorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &TutorService{repo: repo, bookings: bookings, validator: validate, logger: logger, loc: loc, now: time.Now}
}

// Dashboard loads the tutor portal view.
func (s *TutorService) Dashboard(ctx context.Context, tutor *models.Tutor) (*TutorDashboard, error) {
	availability, err := s.repo.ListAvailability(ctx, tutor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list availability")
	}
	exceptions, err := s.repo.ListExceptions(ctx, tutor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list exceptions")
	}
	subjectIDs, err := s.repo.ListSubjectIDs(ctx, tutor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list subjects")
	}
	upcoming, err := s.bookings.ListUpcomingByTutor(ctx, tutor.ID, s.now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list upcoming bookings")
	}
	canceled, err := s.bookings.ListRecentCancellations(ctx, tutor.ID, 5)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list cancellations")
	}

	return &TutorDashboard{
		Tutor:               tutor.Ref(),
		SubjectIDs:          subjectIDs,
		Availability:        availability,
		Exceptions:          exceptions,
		UpcomingBookings:    upcoming,
		RecentCancellations: canceled,
	}, nil
}

// ReplaceSubjects swaps the tutor's taught subject set.
func (s *TutorService) ReplaceSubjects(ctx context.Context, tutorID string, subjectIDs []string) error {
	if err := s.repo.ReplaceSubjects(ctx, tutorID, subjectIDs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to update subjects")
	}
	return nil
}

// AddAvailability creates a weekly block after validating end > start.
func (s *TutorService) AddAvailability(ctx context.Context, tutorID string, req AddAvailabilityRequest) (*models.WeeklyAvailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	start, err := models.ParseClock(req.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start time, expected HH:MM")
	}
	end, err := models.ParseClock(req.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end time, expected HH:MM")
	}
	if end <= start {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}

	block := models.WeeklyAvailability{
		TutorID:   tutorID,
		DayOfWeek: *req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	if err := s.repo.CreateAvailability(ctx, &block); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to create availability")
	}
	return &block, nil
}

// DeleteAvailability removes a weekly block owned by the tutor.
func (s *TutorService) DeleteAvailability(ctx context.Context, tutorID, blockID string) error {
	rows, err := s.repo.DeleteAvailability(ctx, blockID, tutorID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to delete availability")
	}
	if rows == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "availability block not found")
	}
	return nil
}

// AddException creates a blackout. Full-day blackouts leave both bounds
// empty; a partial blackout requires both bounds with end > start. A single
// bound is malformed input and is rejected rather than silently widened.
func (s *TutorService) AddException(ctx context.Context, tutorID string, req AddExceptionRequest) (*models.TutorException, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exception payload")
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, s.loc)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}

	var startPtr, endPtr *string
	if req.StartTime != "" || req.EndTime != "" {
		if req.StartTime == "" || req.EndTime == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "partial blackouts need both start and end time")
		}
		start, err := models.ParseClock(req.StartTime)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start time, expected HH:MM")
		}
		end, err := models.ParseClock(req.EndTime)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end time, expected HH:MM")
		}
		if end <= start {
			return nil, appErrors.Clone(appErrors.ErrValidation, "blackout end time must be after the start time")
		}
		startPtr = &req.StartTime
		endPtr = &req.EndTime
	}

	existing, err := s.repo.ListExceptionsOn(ctx, tutorID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list exceptions")
	}
	if overlapsExisting(existing, date, startPtr, endPtr) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "that blackout overlaps with an existing one")
	}

	exception := models.TutorException{
		TutorID:   tutorID,
		Date:      date,
		StartTime: startPtr,
		EndTime:   endPtr,
	}
	if req.Note != "" {
		note := truncate(req.Note, 255)
		exception.Note = &note
	}
	if err := s.repo.CreateException(ctx, &exception); err != nil {
		if err == repository.ErrDuplicate {
			return nil, appErrors.Clone(appErrors.ErrConflict, "you already marked that time as unavailable")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to create exception")
	}
	return &exception, nil
}

// overlapsExisting applies the blackout overlap predicate against the new
// exception's provisional bounds (full-day bounds when absent).
func overlapsExisting(existing []models.TutorException, date time.Time, startPtr, endPtr *string) bool {
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	provStart := midnight
	provEnd := midnight.Add(24*time.Hour - time.Second)
	if startPtr != nil && endPtr != nil {
		if start, err := models.ParseClock(*startPtr); err == nil {
			provStart = midnight.Add(start)
		}
		if end, err := models.ParseClock(*endPtr); err == nil {
			provEnd = midnight.Add(end)
		}
	}
	for _, exception := range existing {
		if overlaps, err := exceptionOverlaps(exception, provStart, provEnd); err != nil || overlaps {
			return true
		}
	}
	return false
}

// DeleteException removes a blackout owned by the tutor.
func (s *TutorService) DeleteException(ctx context.Context, tutorID, exceptionID string) error {
	rows, err := s.repo.DeleteException(ctx, exceptionID, tutorID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to delete exception")
	}
	if rows == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "exception not found")
	}
	return nil
}
