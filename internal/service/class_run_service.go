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

type classRunRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassRun, error)
	FindDetailByID(ctx context.Context, id string) (*models.ClassRunDetail, error)
	List(ctx context.Context, filter models.ClassRunFilter) ([]models.ClassRunDetail, int, error)
	Create(ctx context.Context, run *models.ClassRun) error
	Update(ctx context.Context, run *models.ClassRun) error
	CreateSession(ctx context.Context, session *models.Session) error
	ListSessions(ctx context.Context, runID string) ([]models.Session, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// CreateClassRunRequest describes class run creation payload.
type CreateClassRunRequest struct {
	CourseID      string  `json:"course_id" validate:"required"`
	ReferenceCode string  `json:"reference_code" validate:"required,max=64"`
	StartDate     string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate       string  `json:"end_date" validate:"required,datetime=2006-01-02"`
	Capacity      int     `json:"capacity" validate:"required,gt=0"`
	Location      *string `json:"location"`
}

// UpdateClassRunRequest describes class run update payload.
type UpdateClassRunRequest struct {
	StartDate string                `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string                `json:"end_date" validate:"required,datetime=2006-01-02"`
	Capacity  int                   `json:"capacity" validate:"required,gt=0"`
	Location  *string               `json:"location"`
	Status    models.ClassRunStatus `json:"status" validate:"required"`
}

// AddSessionRequest describes a session payload.
type AddSessionRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
}

// ClassRunService orchestrates class run workflows and queues registry sync.
type ClassRunService struct {
	repo      classRunRepository
	courses   courseReader
	jobs      syncEnqueuer
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassRunService constructs ClassRunService.
func NewClassRunService(repo classRunRepository, courses courseReader, jobs syncEnqueuer, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *ClassRunService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassRunService{repo: repo, courses: courses, jobs: jobs, audit: audit, validator: validate, logger: logger}
}

// List returns class runs with pagination metadata.
func (s *ClassRunService) List(ctx context.Context, filter models.ClassRunFilter) ([]models.ClassRunDetail, *models.Pagination, error) {
	runs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class runs")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return runs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one class run with its sessions.
func (s *ClassRunService) Get(ctx context.Context, id string) (*models.ClassRunDetail, []models.Session, error) {
	run, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "class run not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class run")
	}
	sessions, err := s.repo.ListSessions(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}
	return run, sessions, nil
}

// ListSessions returns the sessions of one run.
func (s *ClassRunService) ListSessions(ctx context.Context, runID string) ([]models.Session, error) {
	if _, err := s.repo.FindByID(ctx, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class run")
	}
	sessions, err := s.repo.ListSessions(ctx, runID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}
	return sessions, nil
}

// Create schedules a new class run and queues the initial registry sync.
func (s *ClassRunService) Create(ctx context.Context, req CreateClassRunRequest, actorID string) (*models.ClassRun, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class run payload")
	}
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Published {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course is not published")
	}

	run := &models.ClassRun{
		CourseID:      course.ID,
		ReferenceCode: req.ReferenceCode,
		StartDate:     start,
		EndDate:       end,
		Capacity:      req.Capacity,
		Location:      req.Location,
		Status:        models.ClassRunStatusDraft,
	}
	if err := s.repo.Create(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class run")
	}
	s.recordAudit(ctx, actorID, models.AuditActionCreate, "class_run", run.ID)
	s.enqueueSync(ctx, run.ID)
	return run, nil
}

// Update modifies a class run and queues a registry sync.
func (s *ClassRunService) Update(ctx context.Context, id string, req UpdateClassRunRequest, actorID string) (*models.ClassRun, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class run payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid class run status")
	}
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	run, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class run")
	}

	run.StartDate = start
	run.EndDate = end
	run.Capacity = req.Capacity
	run.Location = req.Location
	run.Status = req.Status
	if err := s.repo.Update(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class run")
	}
	s.recordAudit(ctx, actorID, models.AuditActionUpdate, "class_run", run.ID)
	s.enqueueSync(ctx, run.ID)
	return run, nil
}

// AddSession appends a session to a run. Sessions define attendance slots
// and are not synced on their own; attendance submissions carry their data.
func (s *ClassRunService) AddSession(ctx context.Context, runID string, req AddSessionRequest, actorID string) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	run, err := s.repo.FindByID(ctx, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class run")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid session date")
	}
	if date.Before(run.StartDate) || date.After(run.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "session date outside run period")
	}

	session := &models.Session{
		ClassRunID: runID,
		Date:       date,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	s.recordAudit(ctx, actorID, models.AuditActionCreate, "session", session.ID)
	return session, nil
}

func (s *ClassRunService) enqueueSync(ctx context.Context, runID string) {
	if s.jobs == nil {
		return
	}
	if _, err := s.jobs.Enqueue(ctx, string(syncjobs.KindClassRun), runID); err != nil {
		s.logger.Warn("failed to enqueue class run sync", zap.String("class_run_id", runID), zap.Error(err))
	}
}

func (s *ClassRunService) recordAudit(ctx context.Context, actorID string, action models.AuditAction, entityType, entityID string) {
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

// parseDateRange parses and orders a YYYY-MM-DD pair.
func parseDateRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid start date")
	}
	end, err := time.Parse("2006-01-02", endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid end date")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end date before start date")
	}
	return start, end, nil
}
