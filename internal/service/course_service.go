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

type courseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindByCode(ctx context.Context, code string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	CreateModule(ctx context.Context, module *models.Module) error
	ListModules(ctx context.Context, courseID string) ([]models.Module, error)
}

type syncEnqueuer interface {
	Enqueue(ctx context.Context, kind, entityID string) (string, error)
}

type auditRecorder interface {
	Record(ctx context.Context, entry *models.AuditEntry) error
}

// CreateCourseRequest describes course creation payload.
type CreateCourseRequest struct {
	Code        string  `json:"code" validate:"required,max=64"`
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description"`
}

// UpdateCourseRequest describes course update payload.
type UpdateCourseRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description"`
	Published   bool    `json:"published"`
}

// AddModuleRequest describes a course module payload.
type AddModuleRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description"`
	Position    int     `json:"position" validate:"gte=0"`
}

// CourseService orchestrates course workflows and queues registry sync.
type CourseService struct {
	repo      courseRepository
	jobs      syncEnqueuer
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, jobs syncEnqueuer, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, jobs: jobs, audit: audit, validator: validate, logger: logger}
}

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one course with its modules.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, []models.Module, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	modules, err := s.repo.ListModules(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course modules")
	}
	return course, modules, nil
}

// Create registers a new course and queues the initial registry sync.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest, actorID string) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if _, err := s.repo.FindByCode(ctx, req.Code); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateCode, "course code already in use")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}

	course := &models.Course{
		Code:        req.Code,
		Title:       req.Title,
		Description: req.Description,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.recordAudit(ctx, actorID, models.AuditActionCreate, "course", course.ID)
	s.enqueueSync(ctx, course.ID)
	return course, nil
}

// Update modifies a course and queues a registry sync so the registry copy
// converges on the new state.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest, actorID string) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	course.Title = req.Title
	course.Description = req.Description
	course.Published = req.Published
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	s.recordAudit(ctx, actorID, models.AuditActionUpdate, "course", course.ID)
	s.enqueueSync(ctx, course.ID)
	return course, nil
}

// AddModule appends a module to a course. Modules are local structure only
// and do not trigger a registry sync.
func (s *CourseService) AddModule(ctx context.Context, courseID string, req AddModuleRequest, actorID string) (*models.Module, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid module payload")
	}
	if _, err := s.repo.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	module := &models.Module{
		CourseID:    courseID,
		Title:       req.Title,
		Description: req.Description,
		Position:    req.Position,
	}
	if err := s.repo.CreateModule(ctx, module); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create module")
	}
	s.recordAudit(ctx, actorID, models.AuditActionCreate, "course_module", module.ID)
	return module, nil
}

// enqueueSync queues a course sync job. Queue unavailability must not fail
// the write that triggered it; the periodic reconciliation pass catches up.
func (s *CourseService) enqueueSync(ctx context.Context, courseID string) {
	if s.jobs == nil {
		return
	}
	if _, err := s.jobs.Enqueue(ctx, string(syncjobs.KindCourse), courseID); err != nil {
		s.logger.Warn("failed to enqueue course sync", zap.String("course_id", courseID), zap.Error(err))
	}
}

func (s *CourseService) recordAudit(ctx context.Context, actorID string, action models.AuditAction, entityType, entityID string) {
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
