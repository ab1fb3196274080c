package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hawkerboys/tms-api/internal/models"
	appErrors "github.com/hawkerboys/tms-api/pkg/errors"
)

type mockCourseRepo struct {
	byID      map[string]*models.Course
	byCode    map[string]*models.Course
	created   []*models.Course
	updated   []*models.Course
	modules   []*models.Module
	createErr error
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{byID: map[string]*models.Course{}, byCode: map[string]*models.Course{}}
}

func (m *mockCourseRepo) FindByID(_ context.Context, id string) (*models.Course, error) {
	if c, ok := m.byID[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) FindByCode(_ context.Context, code string) (*models.Course, error) {
	if c, ok := m.byCode[code]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) List(_ context.Context, _ models.CourseFilter) ([]models.Course, int, error) {
	out := make([]models.Course, 0, len(m.byID))
	for _, c := range m.byID {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockCourseRepo) Create(_ context.Context, course *models.Course) error {
	if m.createErr != nil {
		return m.createErr
	}
	course.ID = "crs-new"
	m.created = append(m.created, course)
	return nil
}

func (m *mockCourseRepo) Update(_ context.Context, course *models.Course) error {
	m.updated = append(m.updated, course)
	return nil
}

func (m *mockCourseRepo) CreateModule(_ context.Context, module *models.Module) error {
	module.ID = "mod-new"
	m.modules = append(m.modules, module)
	return nil
}

func (m *mockCourseRepo) ListModules(_ context.Context, _ string) ([]models.Module, error) {
	return nil, nil
}

type mockEnqueuer struct {
	jobs       [][2]string
	enqueueErr error
}

func (m *mockEnqueuer) Enqueue(_ context.Context, kind, entityID string) (string, error) {
	if m.enqueueErr != nil {
		return "", m.enqueueErr
	}
	m.jobs = append(m.jobs, [2]string{kind, entityID})
	return "job-1", nil
}

type mockAudit struct {
	entries []*models.AuditEntry
}

func (m *mockAudit) Record(_ context.Context, entry *models.AuditEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func TestCourseServiceCreateQueuesSync(t *testing.T) {
	repo := newMockCourseRepo()
	jobs := &mockEnqueuer{}
	audit := &mockAudit{}
	svc := NewCourseService(repo, jobs, audit, nil, zap.NewNop())

	course, err := svc.Create(context.Background(), CreateCourseRequest{Code: "FIN-LIT-101", Title: "Financial Literacy Basics"}, "usr-1")
	require.NoError(t, err)
	require.Equal(t, "crs-new", course.ID)
	require.Len(t, jobs.jobs, 1)
	require.Equal(t, [2]string{"course", "crs-new"}, jobs.jobs[0])
	require.Len(t, audit.entries, 1)
	require.Equal(t, models.AuditActionCreate, audit.entries[0].Action)
}

func TestCourseServiceCreateRejectsDuplicateCode(t *testing.T) {
	repo := newMockCourseRepo()
	repo.byCode["FIN-LIT-101"] = &models.Course{ID: "crs-1", Code: "FIN-LIT-101"}
	svc := NewCourseService(repo, &mockEnqueuer{}, nil, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateCourseRequest{Code: "FIN-LIT-101", Title: "T"}, "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrDuplicateCode.Code, appErr.Code)
}

func TestCourseServiceCreateValidatesPayload(t *testing.T) {
	svc := NewCourseService(newMockCourseRepo(), &mockEnqueuer{}, nil, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateCourseRequest{Title: "missing code"}, "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCourseServiceUpdateSurvivesQueueOutage(t *testing.T) {
	repo := newMockCourseRepo()
	repo.byID["crs-1"] = &models.Course{ID: "crs-1", Code: "FIN-LIT-101", Title: "Old"}
	jobs := &mockEnqueuer{enqueueErr: context.DeadlineExceeded}
	svc := NewCourseService(repo, jobs, nil, nil, zap.NewNop())

	course, err := svc.Update(context.Background(), "crs-1", UpdateCourseRequest{Title: "New", Published: true}, "")
	require.NoError(t, err, "queue outage must not fail the write")
	require.Equal(t, "New", course.Title)
	require.Len(t, repo.updated, 1)
}

func TestCourseServiceUpdateNotFound(t *testing.T) {
	svc := NewCourseService(newMockCourseRepo(), &mockEnqueuer{}, nil, nil, zap.NewNop())

	_, err := svc.Update(context.Background(), "missing", UpdateCourseRequest{Title: "T"}, "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
