package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hawkerboys/tms-api/internal/models"
	appErrors "github.com/hawkerboys/tms-api/pkg/errors"
)

// Assessments at or above this score earn a certificate.
const passingScore = 50

type certificateRepository interface {
	CreateAssessment(ctx context.Context, assessment *models.Assessment) error
	FindAssessmentByEnrollment(ctx context.Context, enrollmentID string) (*models.Assessment, error)
	Create(ctx context.Context, cert *models.Certificate) error
	FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Certificate, error)
	FindDetailByID(ctx context.Context, id string) (*models.CertificateDetail, error)
	CountIssuedInYear(ctx context.Context, year int) (int, error)
}

type enrollmentDetailReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type certificateRenderer interface {
	Render(detail *models.CertificateDetail) ([]byte, error)
}

// RecordAssessmentRequest describes an assessment payload.
type RecordAssessmentRequest struct {
	Score   int     `json:"score" validate:"gte=0,lte=100"`
	Remarks *string `json:"remarks"`
}

// CertificateService records assessments and issues completion certificates.
type CertificateService struct {
	repo        certificateRepository
	enrollments enrollmentDetailReader
	renderer    certificateRenderer
	audit       auditRecorder
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCertificateService constructs CertificateService.
func NewCertificateService(repo certificateRepository, enrollments enrollmentDetailReader, renderer certificateRenderer, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *CertificateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{repo: repo, enrollments: enrollments, renderer: renderer, audit: audit, validator: validate, logger: logger}
}

// RecordAssessment stores an assessment result for a completed enrollment.
func (s *CertificateService) RecordAssessment(ctx context.Context, enrollmentID string, req RecordAssessmentRequest, actorID string) (*models.Assessment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment payload")
	}
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status == models.EnrollmentStatusWithdrawn {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment withdrawn")
	}
	if _, err := s.repo.FindAssessmentByEnrollment(ctx, enrollmentID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "assessment already recorded")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assessment")
	}

	assessment := &models.Assessment{
		EnrollmentID: enrollmentID,
		Score:        req.Score,
		Remarks:      req.Remarks,
		AssessedOn:   time.Now().UTC(),
	}
	if err := s.repo.CreateAssessment(ctx, assessment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record assessment")
	}
	s.recordAudit(ctx, actorID, models.AuditActionCreate, "assessment", assessment.ID)
	return assessment, nil
}

// Issue creates a certificate for a passed, completed enrollment.
func (s *CertificateService) Issue(ctx context.Context, enrollmentID, actorID string) (*models.Certificate, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment not completed")
	}
	assessment, err := s.repo.FindAssessmentByEnrollment(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no assessment recorded")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment")
	}
	if assessment.Score < passingScore {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "assessment score below passing mark")
	}
	if _, err := s.repo.FindByEnrollment(ctx, enrollmentID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "certificate already issued")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check certificate")
	}

	now := time.Now().UTC()
	issued, err := s.repo.CountIssuedInYear(ctx, now.Year())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate serial number")
	}
	cert := &models.Certificate{
		EnrollmentID: enrollmentID,
		SerialNumber: fmt.Sprintf("CERT-%d-%05d", now.Year(), issued+1),
		IssuedOn:     now,
	}
	if err := s.repo.Create(ctx, cert); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue certificate")
	}
	s.recordAudit(ctx, actorID, models.AuditActionCreate, "certificate", cert.ID)
	return cert, nil
}

// RenderPDF produces the printable certificate document.
func (s *CertificateService) RenderPDF(ctx context.Context, certificateID string) ([]byte, string, error) {
	detail, err := s.repo.FindDetailByID(ctx, certificateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	data, err := s.renderer.Render(detail)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}
	filename := fmt.Sprintf("certificate-%s.pdf", detail.SerialNumber)
	return data, filename, nil
}

func (s *CertificateService) recordAudit(ctx context.Context, actorID string, action models.AuditAction, entityType, entityID string) {
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
