package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/pvhs-tutoring/peer-tutoring-api/internal/models"
	appErrors "github.com/pvhs-tutoring/peer-tutoring-api/pkg/errors"
)

type subjectRepository interface {
	ListOrdered(ctx context.Context) ([]models.Subject, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// SubjectService serves the read-only subject catalog.
type SubjectService struct {
	repo   subjectRepository
	logger *zap.Logger
}

// NewSubjectService instantiates SubjectService.
func NewSubjectService(repo subjectRepository, logger *zap.Logger) *SubjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, logger: logger}
}

// ListGrouped returns the catalog grouped by category in display order.
func (s *SubjectService) ListGrouped(ctx context.Context) ([]models.SubjectGroup, error) {
	subjects, err := s.repo.ListOrdered(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list subjects")
	}
	return models.GroupSubjects(subjects), nil
}

// Get returns one subject by id.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load subject")
	}
	return subject, nil
}
