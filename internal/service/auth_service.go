package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pvhs-tutoring/peer-tutoring-api/internal/models"
	"github.com/pvhs-tutoring/peer-tutoring-api/internal/repository"
	appErrors "github.com/pvhs-tutoring/peer-tutoring-api/pkg/errors"
)

type authTutorRepository interface {
	FindByPhone(ctx context.Context, phone string) (*models.Tutor, error)
	FindByID(ctx context.Context, id string) (*models.Tutor, error)
	Create(ctx context.Context, tutor *models.Tutor, subjectIDs []string) error
}

// AuthConfig defines configuration for tutor authentication.
type AuthConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// AuthService signs tutors up and issues access tokens against phone + PIN
// credentials.
type AuthService struct {
	repo      authTutorRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authTutorRepository, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Expiration <= 0 {
		config.Expiration = 24 * time.Hour
	}
	return &AuthService{repo: repo, validator: validate, logger: logger, config: config}
}

// SignupRequest registers a new tutor.
type SignupRequest struct {
	Name       string   `json:"name" validate:"required"`
	Phone      string   `json:"phone" validate:"required"`
	PIN        string   `json:"pin" validate:"required,min=4"`
	SubjectIDs []string `json:"subject_ids"`
}

// Signup creates a tutor account and returns an issued token.
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid signup payload")
	}

	phone := NormalizePhone(req.Phone)
	if len(phone) < 10 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "phone must have at least 10 digits")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash PIN")
	}

	tutor := models.Tutor{
		Name:    req.Name,
		Phone:   phone,
		PinHash: string(hash),
		Active:  true,
	}
	if err := s.repo.Create(ctx, &tutor, req.SubjectIDs); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a tutor with that phone number already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to create tutor")
	}

	s.logger.Info("tutor signed up", zap.String("tutor_id", tutor.ID))
	return s.issueToken(tutor)
}

// Login authenticates a tutor and returns an issued token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	tutor, err := s.repo.FindByPhone(ctx, NormalizePhone(req.Phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load tutor")
	}
	if !tutor.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(tutor.PinHash), []byte(req.PIN)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	return s.issueToken(*tutor)
}

func (s *AuthService) issueToken(tutor models.Tutor) (*models.LoginResponse, error) {
	now := time.Now().UTC()
	claims := models.TutorClaims{
		TutorID: tutor.ID,
		Name:    tutor.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tutor.ID,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}

	return &models.LoginResponse{
		Token:     signed,
		ExpiresIn: int64(s.config.Expiration.Seconds()),
		Tutor:     tutor.Ref(),
	}, nil
}

// ValidateToken parses and verifies an access token.
func (s *AuthService) ValidateToken(tokenString string) (*models.TutorClaims, error) {
	claims := &models.TutorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	return claims, nil
}

// CurrentTutor resolves the claims to a live, active tutor record.
func (s *AuthService) CurrentTutor(ctx context.Context, claims *models.TutorClaims) (*models.Tutor, error) {
	tutor, err := s.repo.FindByID(ctx, claims.TutorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "tutor no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load tutor")
	}
	if !tutor.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}
	return tutor, nil
}
