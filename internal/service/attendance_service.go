package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hawkerboys/tms-api/internal/models"
	syncjobs "github.com/hawkerboys/tms-api/internal/sync"
	appErrors "github.com/hawkerboys/tms-api/pkg/errors"
)

type attendanceRepository interface {
	FindByID(ctx context.Context, id string) (*models.Attendance, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.Attendance, error)
	Upsert(ctx context.Context, record *models.Attendance) error
}

type sessionReader interface {
	FindSessionByID(ctx context.Context, id string) (*models.Session, error)
}

type enrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// MarkAttendanceRequest describes an attendance marking payload.
type MarkAttendanceRequest struct {
	EnrollmentID string                  `json:"enrollment_id" validate:"required"`
	Status       models.AttendanceStatus `json:"status" validate:"required"`
	Remarks      *string                 `json:"remarks"`
}

// AttendanceService orchestrates attendance marking and queues registry sync.
type AttendanceService struct {
	repo        attendanceRepository
	sessions    sessionReader
	enrollments enrollmentReader
	jobs        syncEnqueuer
	audit       auditRecorder
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, sessions sessionReader, enrollments enrollmentReader, jobs syncEnqueuer, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, sessions: sessions, enrollments: enrollments, jobs: jobs, audit: audit, validator: validate, logger: logger}
}

// ListBySession returns attendance records for one session.
func (s *AttendanceService) ListBySession(ctx context.Context, sessionID string) ([]models.Attendance, error) {
	if _, err := s.sessions.FindSessionByID(ctx, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	records, err := s.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// Mark records or corrects attendance for an enrollment in a session.
// Re-marking overwrites the previous status and schedules a fresh registry
// submission for the corrected record.
func (s *AttendanceService) Mark(ctx context.Context, sessionID string, req MarkAttendanceRequest, actorID string) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid attendance status")
	}
	session, err := s.sessions.FindSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.ClassRunID != session.ClassRunID {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment does not belong to this class run")
	}
	if enrollment.Status == models.EnrollmentStatusWithdrawn {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment withdrawn")
	}

	record := &models.Attendance{
		SessionID:    sessionID,
		EnrollmentID: req.EnrollmentID,
		Status:       req.Status,
		Remarks:      req.Remarks,
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	s.recordAudit(ctx, actorID, models.AuditActionUpdate, "attendance", record.ID)
	s.enqueueSync(ctx, record.ID)
	return record, nil
}

func (s *AttendanceService) enqueueSync(ctx context.Context, attendanceID string) {
	if s.jobs == nil {
		return
	}
	if _, err := s.jobs.Enqueue(ctx, string(syncjobs.KindAttendance), attendanceID); err != nil {
		s.logger.Warn("failed to enqueue attendance sync", zap.String("attendance_id", attendanceID), zap.Error(err))
	}
}

func (s *AttendanceService) recordAudit(ctx context.Context, actorID string, action models.AuditAction, entityType, entityID string) {
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
