package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pvhs-tutoring/peer-tutoring-api/internal/models"
	appErrors "github.com/pvhs-tutoring/peer-tutoring-api/pkg/errors"
	"github.com/pvhs-tutoring/peer-tutoring-api/pkg/export"
)

type exportBookingStore interface {
	ListAll(ctx context.Context) ([]models.Booking, error)
}

type exportTutorStore interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Tutor, error)
}

type exportSubjectStore interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Subject, error)
}

// ExportService renders the full booking roster as CSV or PDF for the
// program coordinator.
type ExportService struct {
	bookings exportBookingStore
	tutors   exportTutorStore
	subjects exportSubjectStore
	logger   *zap.Logger
	loc      *time.Location
}

// NewExportService instantiates ExportService.
func NewExportService(bookings exportBookingStore, tutors exportTutorStore, subjects exportSubjectStore, logger *zap.Logger, loc *time.Location) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ExportService{bookings: bookings, tutors: tutors, subjects: subjects, logger: logger, loc: loc}
}

var rosterHeaders = []string{"Date", "Start", "End", "Subject", "Tutor", "Student", "Student Phone", "Status"}

// RosterCSV renders every booking as CSV.
func (s *ExportService) RosterCSV(ctx context.Context) ([]byte, error) {
	table, err := s.rosterTable(ctx)
	if err != nil {
		return nil, err
	}
	data, err := export.RenderCSV(*table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return data, nil
}

// RosterPDF renders every booking as a PDF document.
func (s *ExportService) RosterPDF(ctx context.Context) ([]byte, error) {
	table, err := s.rosterTable(ctx)
	if err != nil {
		return nil, err
	}
	data, err := export.RenderPDF(*table, "Peer Tutoring Booking Roster")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return data, nil
}

func (s *ExportService) rosterTable(ctx context.Context) (*export.Table, error) {
	bookings, err := s.bookings.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list bookings")
	}

	tutorIDs := make([]string, 0, len(bookings))
	subjectIDs := make([]string, 0, len(bookings))
	seenTutors := map[string]bool{}
	seenSubjects := map[string]bool{}
	for _, booking := range bookings {
		if !seenTutors[booking.TutorID] {
			seenTutors[booking.TutorID] = true
			tutorIDs = append(tutorIDs, booking.TutorID)
		}
		if booking.SubjectID != nil && !seenSubjects[*booking.SubjectID] {
			seenSubjects[*booking.SubjectID] = true
			subjectIDs = append(subjectIDs, *booking.SubjectID)
		}
	}

	tutors, err := s.tutors.FindByIDs(ctx, tutorIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list tutors")
	}
	subjects, err := s.subjects.FindByIDs(ctx, subjectIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list subjects")
	}

	tutorNames := make(map[string]string, len(tutors))
	for _, tutor := range tutors {
		tutorNames[tutor.ID] = tutor.Name
	}
	subjectNames := make(map[string]string, len(subjects))
	for _, subject := range subjects {
		subjectNames[subject.ID] = subject.Name
	}

	rows := make([][]string, 0, len(bookings))
	for _, booking := range bookings {
		start := booking.StartTime.In(s.loc)
		end := booking.EndTime.In(s.loc)

		subjectName := ""
		if booking.SubjectID != nil {
			subjectName = subjectNames[*booking.SubjectID]
		}
		status := "Confirmed"
		if booking.IsCanceled {
			status = "Canceled"
		}

		rows = append(rows, []string{
			start.Format("2006-01-02"),
			start.Format("3:04 PM"),
			end.Format("3:04 PM"),
			subjectName,
			tutorNames[booking.TutorID],
			booking.StudentName,
			FormatPhoneDisplay(booking.StudentPhone),
			status,
		})
	}

	return &export.Table{Headers: rosterHeaders, Rows: rows}, nil
}
