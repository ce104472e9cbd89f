package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/pvhs-tutoring/peer-tutoring-api/internal/models"
	appErrors "github.com/pvhs-tutoring/peer-tutoring-api/pkg/errors"
)

type availabilityTutorStore interface {
	ListActiveBySubject(ctx context.Context, subjectID string) ([]models.Tutor, error)
	AvailabilityForDay(ctx context.Context, tutorID string, dayOfWeek int) ([]models.WeeklyAvailability, error)
	ListExceptionsOn(ctx context.Context, tutorID string, date time.Time) ([]models.TutorException, error)
}

type availabilityBookingStore interface {
	ExistsActiveOverlap(ctx context.Context, tutorID string, start, end time.Time) (bool, error)
}

// SlotInterval is one candidate booking interval.
type SlotInterval struct {
	Start time.Time
	End   time.Time
}

// GenerateSlots expands a weekly block into discrete candidate slots on the
// given date, earliest first. Stepping starts at the block start and a slot
// that would overrun the block end is dropped, never truncated. The date's
// location is preserved.
func GenerateSlots(block models.WeeklyAvailability, date time.Time, slotLength time.Duration) ([]SlotInterval, error) {
	if slotLength <= 0 {
		return nil, fmt.Errorf("slot length must be positive")
	}
	startClock, err := models.ParseClock(block.StartTime)
	if err != nil {
		return nil, err
	}
	endClock, err := models.ParseClock(block.EndTime)
	if err != nil {
		return nil, err
	}

	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	blockEnd := midnight.Add(endClock)

	var slots []SlotInterval
	for cursor := midnight.Add(startClock); !cursor.Add(slotLength).After(blockEnd); cursor = cursor.Add(slotLength) {
		slots = append(slots, SlotInterval{Start: cursor, End: cursor.Add(slotLength)})
	}
	return slots, nil
}

// AvailabilityService computes which tutors are free for candidate intervals
// from weekly blocks, blackout exceptions, and committed bookings.
type AvailabilityService struct {
	tutors   availabilityTutorStore
	bookings availabilityBookingStore
	cache    *CacheService
	slotLen  time.Duration
	loc      *time.Location
	logger   *zap.Logger
}

// NewAvailabilityService wires the availability engine.
func NewAvailabilityService(tutors availabilityTutorStore, bookings availabilityBookingStore, cache *CacheService, slotMinutes int, loc *time.Location, logger *zap.Logger) *AvailabilityService {
	if slotMinutes <= 0 {
		slotMinutes = 30
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		tutors:   tutors,
		bookings: bookings,
		cache:    cache,
		slotLen:  time.Duration(slotMinutes) * time.Minute,
		loc:      loc,
		logger:   logger,
	}
}

// SlotLength returns the configured slot granularity.
func (s *AvailabilityService) SlotLength() time.Duration {
	return s.slotLen
}

// Location returns the reference timezone.
func (s *AvailabilityService) Location() *time.Location {
	return s.loc
}

// IsAvailable decides whether the tutor is free for [start, end). It fails
// closed: a store error makes the tutor unavailable.
//
// Gates, in order: no exception on start's date overlaps the interval, some
// weekly block on start's weekday fully contains it, and no active booking
// overlaps it. All three are independent; the order is only an early exit.
func (s *AvailabilityService) IsAvailable(ctx context.Context, tutorID string, start, end time.Time) (bool, error) {
	exceptions, err := s.tutors.ListExceptionsOn(ctx, tutorID, start)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load exceptions")
	}
	for _, exception := range exceptions {
		overlaps, err := exceptionOverlaps(exception, start, end)
		if err != nil {
			// Malformed time bounds black out the interval.
			s.logger.Warn("unparseable exception bounds", zap.String("exception_id", exception.ID), zap.Error(err))
			return false, nil
		}
		if overlaps {
			return false, nil
		}
	}

	blocks, err := s.tutors.AvailabilityForDay(ctx, tutorID, models.WeekdayIndex(start))
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load availability blocks")
	}
	if !anyBlockContains(blocks, start, end) {
		return false, nil
	}

	overlap, err := s.bookings.ExistsActiveOverlap(ctx, tutorID, start, end)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to check booking overlap")
	}
	return !overlap, nil
}

// exceptionOverlaps applies the blackout predicate for one exception against
// [start, end). A full-day exception (either bound absent) overlaps
// unconditionally on its date.
func exceptionOverlaps(exception models.TutorException, start, end time.Time) (bool, error) {
	if !sameDate(exception.Date, start) {
		return false, nil
	}
	if exception.IsFullDay() {
		return true, nil
	}
	startClock, err := models.ParseClock(*exception.StartTime)
	if err != nil {
		return false, err
	}
	endClock, err := models.ParseClock(*exception.EndTime)
	if err != nil {
		return false, err
	}
	midnight := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	excStart := midnight.Add(startClock)
	excEnd := midnight.Add(endClock)
	return start.Before(excEnd) && end.After(excStart), nil
}

func anyBlockContains(blocks []models.WeeklyAvailability, start, end time.Time) bool {
	midnight := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	startClock := start.Sub(midnight)
	endClock := end.Sub(midnight)
	for _, block := range blocks {
		blockStart, err := models.ParseClock(block.StartTime)
		if err != nil {
			continue
		}
		blockEnd, err := models.ParseClock(block.EndTime)
		if err != nil {
			continue
		}
		if blockStart <= startClock && blockEnd >= endClock {
			return true
		}
	}
	return false
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// CollectOpenSlots returns every open slot for the subject on the date with
// the tutors free to take it, sorted by start time. A slot with no free
// tutor is never materialized.
func (s *AvailabilityService) CollectOpenSlots(ctx context.Context, subjectID string, date time.Time) ([]models.OpenSlot, error) {
	cacheKey := fmt.Sprintf("availability:%s:%s", subjectID, date.Format("2006-01-02"))
	if s.cache.Enabled() {
		var cached []models.OpenSlot
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	tutors, err := s.tutors.ListActiveBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load tutors")
	}

	byStart := make(map[time.Time]*models.OpenSlot)
	weekday := models.WeekdayIndex(date)
	for _, tutor := range tutors {
		blocks, err := s.tutors.AvailabilityForDay(ctx, tutor.ID, weekday)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load availability blocks")
		}
		for _, block := range blocks {
			slots, err := GenerateSlots(block, date, s.slotLen)
			if err != nil {
				s.logger.Warn("skipping malformed availability block", zap.String("block_id", block.ID), zap.Error(err))
				continue
			}
			for _, slot := range slots {
				free, err := s.IsAvailable(ctx, tutor.ID, slot.Start, slot.End)
				if err != nil {
					return nil, err
				}
				if !free {
					continue
				}
				open, ok := byStart[slot.Start]
				if !ok {
					open = &models.OpenSlot{Start: slot.Start, End: slot.End}
					byStart[slot.Start] = open
				}
				open.Tutors = append(open.Tutors, tutor.Ref())
			}
		}
	}

	result := make([]models.OpenSlot, 0, len(byStart))
	for _, open := range byStart {
		result = append(result, *open)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Start.Before(result[j].Start) })

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, result, 0); err != nil {
			s.logger.Warn("failed to cache availability", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return result, nil
}

// EligibleTutorsForSlot re-derives the tutors free for one exact interval.
// Booking commits call this instead of trusting a previously rendered slot
// list, since availability may have changed.
func (s *AvailabilityService) EligibleTutorsForSlot(ctx context.Context, subjectID string, start, end time.Time) ([]models.Tutor, error) {
	tutors, err := s.tutors.ListActiveBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load tutors")
	}

	var eligible []models.Tutor
	for _, tutor := range tutors {
		free, err := s.IsAvailable(ctx, tutor.ID, start, end)
		if err != nil {
			return nil, err
		}
		if free {
			eligible = append(eligible, tutor)
		}
	}
	return eligible, nil
}

// InvalidateDate drops cached availability for every subject on the date.
func (s *AvailabilityService) InvalidateDate(ctx context.Context, date time.Time) {
	if !s.cache.Enabled() {
		return
	}
	pattern := fmt.Sprintf("availability:*:%s", date.Format("2006-01-02"))
	if err := s.cache.Invalidate(ctx, pattern); err != nil {
		s.logger.Warn("failed to invalidate availability cache", zap.String("pattern", pattern), zap.Error(err))
	}
}
