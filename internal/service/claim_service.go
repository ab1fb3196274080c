package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hawkerboys/tms-api/internal/models"
	"github.com/hawkerboys/tms-api/internal/registry"
	appErrors "github.com/hawkerboys/tms-api/pkg/errors"
)

type claimEnrollmentReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

// ClaimSubmitter is the subset of the registry client claims need.
type ClaimSubmitter interface {
	SubmitClaim(ctx context.Context, payload registry.ClaimPayload) (*registry.ClaimResponse, error)
}

// ClaimClientFactory builds a registry client per submission so rotated
// credentials apply without a restart, matching the sync worker.
type ClaimClientFactory func() ClaimSubmitter

// SubmitClaimRequest describes a funding claim submission.
type SubmitClaimRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// ClaimService submits funding claims to the registry. Claims are
// operator-triggered and synchronous: the caller sees the registry's
// answer directly instead of going through the sync queue.
type ClaimService struct {
	enrollments claimEnrollmentReader
	newClient   ClaimClientFactory
	audit       auditRecorder
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewClaimService constructs ClaimService.
func NewClaimService(enrollments claimEnrollmentReader, newClient ClaimClientFactory, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *ClaimService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaimService{
		enrollments: enrollments,
		newClient:   newClient,
		audit:       audit,
		validator:   validate,
		logger:      logger,
	}
}

// Submit files a funding claim for a completed enrollment. The
// enrollment must already carry its registry-assigned id; a claim
// without one would be rejected by the registry anyway.
func (s *ClaimService) Submit(ctx context.Context, enrollmentID string, req SubmitClaimRequest, actorID string) (*registry.ClaimResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid claim payload")
	}

	enrollment, err := s.enrollments.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "claims require a completed enrollment")
	}
	if enrollment.RegistryEnrollmentID == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment has not been synced to the registry yet")
	}

	resp, err := s.newClient().SubmitClaim(ctx, registry.ClaimPayload{
		CourseRunCode:      enrollment.RunReferenceCode,
		LearnerIdentifier:  enrollment.LearnerIdentifier(),
		EnrolmentReference: *enrollment.RegistryEnrollmentID,
		Amount:             req.Amount,
	})
	if err != nil {
		s.logger.Warn("claim submission rejected",
			zap.String("enrollment_id", enrollmentID), zap.Error(err))
		return nil, appErrors.Wrap(err, "REGISTRY_CLAIM_FAILED", appErrors.ErrInternal.Status, "registry rejected the claim")
	}

	s.logger.Info("claim submitted",
		zap.String("enrollment_id", enrollmentID),
		zap.String("claim_id", resp.ClaimID))
	s.recordAudit(ctx, actorID, models.AuditActionCreate, "claim", resp.ClaimID)
	return resp, nil
}

func (s *ClaimService) recordAudit(ctx context.Context, actorID string, action models.AuditAction, entityType, entityID string) {
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
