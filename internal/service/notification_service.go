package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pvhs-tutoring/peer-tutoring-api/internal/models"
	"github.com/pvhs-tutoring/peer-tutoring-api/pkg/sms"
)

const slotLabelLayout = "Monday, January 2 at 3:04 PM"

type notificationTutorStore interface {
	FindByID(ctx context.Context, id string) (*models.Tutor, error)
}

type notificationSubjectStore interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type notificationBookingStore interface {
	ListActiveStartingBetween(ctx context.Context, from, to time.Time) ([]models.Booking, error)
}

// NotificationService sends booking confirmations, cancellation notices, and
// the day-before reminder sweep over SMS. Delivery failures are logged, never
// surfaced to the booking flow.
type NotificationService struct {
	sender   sms.Sender
	tutors   notificationTutorStore
	subjects notificationSubjectStore
	bookings notificationBookingStore
	logger   *zap.Logger
	loc      *time.Location
	now      func() time.Time
}

// NewNotificationService instantiates NotificationService.
func NewNotificationService(
	sender sms.Sender,
	tutors notificationTutorStore,
	subjects notificationSubjectStore,
	bookings notificationBookingStore,
	logger *zap.Logger,
	loc *time.Location,
) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &NotificationService{
		sender:   sender,
		tutors:   tutors,
		subjects: subjects,
		bookings: bookings,
		logger:   logger,
		loc:      loc,
		now:      time.Now,
	}
}

// SlotLabel renders a session start for student-facing messages.
func (s *NotificationService) SlotLabel(start time.Time) string {
	return start.In(s.loc).Format(slotLabelLayout)
}

// SendBookingConfirmation texts both parties after a successful booking.
func (s *NotificationService) SendBookingConfirmation(ctx context.Context, result *BookingResult) {
	label := s.SlotLabel(result.Booking.StartTime)

	studentMsg := fmt.Sprintf(
		"PVHS Peer Tutoring: You're booked for %s on %s with %s. Tutor contact: %s. Reply to this number if you need to reschedule.",
		result.Subject.Name, label, result.Tutor.Name, FormatPhoneDisplay(result.Tutor.Phone))
	s.deliver(ctx, result.Booking.StudentPhone, studentMsg, "booking confirmation", result.Booking.ID)

	tutorMsg := fmt.Sprintf(
		"PVHS Peer Tutoring: New session booked. %s on %s with %s (%s).",
		result.Subject.Name, label, result.Booking.StudentName, FormatPhoneDisplay(result.Booking.StudentPhone))
	s.deliver(ctx, result.Tutor.Phone, tutorMsg, "booking confirmation", result.Booking.ID)
}

// SendCancellationNotice texts the student when a tutor cancels.
func (s *NotificationService) SendCancellationNotice(ctx context.Context, booking *models.Booking) {
	label := s.SlotLabel(booking.StartTime)
	subjectName := s.subjectName(ctx, booking.SubjectID)

	msg := fmt.Sprintf(
		"PVHS Peer Tutoring: Your %s session on %s was canceled by the tutor. Please rebook at a time that works for you.",
		subjectName, label)
	if booking.CancelReason != nil && *booking.CancelReason != "" {
		msg = fmt.Sprintf("%s Reason: %s", msg, *booking.CancelReason)
	}
	s.deliver(ctx, booking.StudentPhone, msg, "cancellation notice", booking.ID)
}

// SendReminders texts both parties of every active session starting roughly a
// day out. The sweep window is [now+24h, now+25h), so an hourly scheduler
// visits each booking exactly once.
func (s *NotificationService) SendReminders(ctx context.Context) (int, error) {
	now := s.now().In(s.loc)
	from := now.Add(24 * time.Hour)
	to := now.Add(25 * time.Hour)

	bookings, err := s.bookings.ListActiveStartingBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("load bookings for reminder sweep: %w", err)
	}

	sent := 0
	for _, booking := range bookings {
		label := s.SlotLabel(booking.StartTime)
		subjectName := s.subjectName(ctx, booking.SubjectID)

		tutor, err := s.tutors.FindByID(ctx, booking.TutorID)
		if err != nil {
			s.logger.Warn("reminder skipped, tutor lookup failed",
				zap.String("booking_id", booking.ID), zap.Error(err))
			continue
		}

		studentMsg := fmt.Sprintf(
			"PVHS Peer Tutoring reminder: %s session tomorrow, %s with %s.",
			subjectName, label, tutor.Name)
		s.deliver(ctx, booking.StudentPhone, studentMsg, "reminder", booking.ID)

		tutorMsg := fmt.Sprintf(
			"PVHS Peer Tutoring reminder: %s session tomorrow, %s with %s.",
			subjectName, label, booking.StudentName)
		s.deliver(ctx, tutor.Phone, tutorMsg, "reminder", booking.ID)
		sent++
	}

	s.logger.Info("reminder sweep finished",
		zap.Int("bookings", len(bookings)), zap.Int("reminded", sent))
	return sent, nil
}

func (s *NotificationService) subjectName(ctx context.Context, subjectID *string) string {
	if subjectID == nil {
		return "tutoring"
	}
	subject, err := s.subjects.FindByID(ctx, *subjectID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("subject lookup failed for notification", zap.Error(err))
		}
		return "tutoring"
	}
	return subject.Name
}

func (s *NotificationService) deliver(ctx context.Context, phone, message, kind, bookingID string) {
	if err := s.sender.Send(ctx, smsPhone(phone), message); err != nil {
		s.logger.Warn("sms delivery failed",
			zap.String("kind", kind),
			zap.String("booking_id", bookingID),
			zap.Error(err))
		return
	}
	s.logger.Debug("sms delivered",
		zap.String("kind", kind),
		zap.String("booking_id", bookingID))
}
