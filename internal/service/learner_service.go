package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hawkerboys/tms-api/internal/models"
	appErrors "github.com/hawkerboys/tms-api/pkg/errors"
)

type learnerRepository interface {
	FindByID(ctx context.Context, id string) (*models.Learner, error)
	List(ctx context.Context, search string, page, pageSize int) ([]models.Learner, int, error)
	Create(ctx context.Context, learner *models.Learner) error
	Update(ctx context.Context, learner *models.Learner) error
}

// CreateLearnerRequest describes learner registration payload.
type CreateLearnerRequest struct {
	GivenName     string  `json:"given_name" validate:"required,max=128"`
	FamilyName    string  `json:"family_name" validate:"required,max=128"`
	Email         *string `json:"email" validate:"omitempty,email"`
	ContactNumber *string `json:"contact_number"`
	MaskedNRIC    *string `json:"masked_nric" validate:"omitempty,max=16"`
}

// LearnerService manages learner records.
type LearnerService struct {
	repo      learnerRepository
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLearnerService constructs LearnerService.
func NewLearnerService(repo learnerRepository, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *LearnerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LearnerService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns learners with pagination metadata.
func (s *LearnerService) List(ctx context.Context, search string, page, pageSize int) ([]models.Learner, *models.Pagination, error) {
	learners, total, err := s.repo.List(ctx, search, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list learners")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return learners, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns one learner.
func (s *LearnerService) Get(ctx context.Context, id string) (*models.Learner, error) {
	learner, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "learner not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load learner")
	}
	return learner, nil
}

// Create registers a learner.
func (s *LearnerService) Create(ctx context.Context, req CreateLearnerRequest, actorID string) (*models.Learner, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid learner payload")
	}
	learner := &models.Learner{
		GivenName:     req.GivenName,
		FamilyName:    req.FamilyName,
		Email:         req.Email,
		ContactNumber: req.ContactNumber,
		MaskedNRIC:    req.MaskedNRIC,
	}
	if err := s.repo.Create(ctx, learner); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create learner")
	}
	s.recordAudit(ctx, actorID, models.AuditActionCreate, "learner", learner.ID)
	return learner, nil
}

// Update modifies a learner's identity and contact fields.
func (s *LearnerService) Update(ctx context.Context, id string, req CreateLearnerRequest, actorID string) (*models.Learner, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid learner payload")
	}
	learner, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "learner not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load learner")
	}
	learner.GivenName = req.GivenName
	learner.FamilyName = req.FamilyName
	learner.Email = req.Email
	learner.ContactNumber = req.ContactNumber
	learner.MaskedNRIC = req.MaskedNRIC
	if err := s.repo.Update(ctx, learner); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update learner")
	}
	s.recordAudit(ctx, actorID, models.AuditActionUpdate, "learner", learner.ID)
	return learner, nil
}

func (s *LearnerService) recordAudit(ctx context.Context, actorID string, action models.AuditAction, entityType, entityID string) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditEntry{Action: action, EntityType: entityType, EntityID: entityID}
	if actorID != "" {
		entry.PerformedBy = &actorID
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit entry", zap.String("entity_id", entityID), zap.Error(err))
	}
}
