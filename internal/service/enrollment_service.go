package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hawkerboys/tms-api/internal/models"
	syncjobs "github.com/hawkerboys/tms-api/internal/sync"
	appErrors "github.com/hawkerboys/tms-api/pkg/errors"
)

type enrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	Exists(ctx context.Context, classRunID, learnerID string) (bool, error)
	CountActive(ctx context.Context, classRunID string) (int, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
}

type classRunReader interface {
	FindByID(ctx context.Context, id string) (*models.ClassRun, error)
}

type learnerReader interface {
	FindByID(ctx context.Context, id string) (*models.Learner, error)
}

// EnrollRequest describes enrollment creation payload.
type EnrollRequest struct {
	ClassRunID string `json:"class_run_id" validate:"required"`
	LearnerID  string `json:"learner_id" validate:"required"`
}

// EnrollmentService orchestrates enrollment workflows and queues registry sync.
type EnrollmentService struct {
	repo      enrollmentRepository
	runs      classRunReader
	learners  learnerReader
	jobs      syncEnqueuer
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, runs classRunReader, learners learnerReader, jobs syncEnqueuer, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, runs: runs, learners: learners, jobs: jobs, audit: audit, validator: validate, logger: logger}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Enroll registers a learner into a class run and queues the registry sync.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest, actorID string) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	run, err := s.runs.FindByID(ctx, req.ClassRunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class run")
	}
	if run.Status != models.ClassRunStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class run is not open for enrollment")
	}
	if _, err := s.learners.FindByID(ctx, req.LearnerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "learner not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load learner")
	}
	exists, err := s.repo.Exists(ctx, req.ClassRunID, req.LearnerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "learner already enrolled in class run")
	}
	active, err := s.repo.CountActive(ctx, req.ClassRunID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check run capacity")
	}
	if active >= run.Capacity {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class run is full")
	}

	enrollment := &models.Enrollment{
		ClassRunID: req.ClassRunID,
		LearnerID:  req.LearnerID,
		Status:     models.EnrollmentStatusRegistered,
		EnrolledOn: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.recordAudit(ctx, actorID, models.AuditActionCreate, "enrollment", enrollment.ID)
	s.enqueueSync(ctx, enrollment.ID)

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// UpdateStatus transitions an enrollment and queues a registry sync carrying
// the new state.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, actorID string) (*models.EnrollmentDetail, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid enrollment status")
	}
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status == models.EnrollmentStatusWithdrawn {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment already withdrawn")
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
	}
	s.recordAudit(ctx, actorID, models.AuditActionUpdate, "enrollment", id)
	s.enqueueSync(ctx, id)

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

func (s *EnrollmentService) enqueueSync(ctx context.Context, enrollmentID string) {
	if s.jobs == nil {
		return
	}
	if _, err := s.jobs.Enqueue(ctx, string(syncjobs.KindEnrollment), enrollmentID); err != nil {
		s.logger.Warn("failed to enqueue enrollment sync", zap.String("enrollment_id", enrollmentID), zap.Error(err))
	}
}

func (s *EnrollmentService) recordAudit(ctx context.Context, actorID string, action models.AuditAction, entityType, entityID string) {
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
