package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hawkerboys/tms-api/internal/models"
	appErrors "github.com/hawkerboys/tms-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	byID    map[string]*models.Enrollment
	details map[string]*models.EnrollmentDetail
	exists  bool
	active  int
	created []*models.Enrollment
	status  map[string]models.EnrollmentStatus
}

func newMockEnrollmentRepo() *mockEnrollmentRepo {
	return &mockEnrollmentRepo{
		byID:    map[string]*models.Enrollment{},
		details: map[string]*models.EnrollmentDetail{},
		status:  map[string]models.EnrollmentStatus{},
	}
}

func (m *mockEnrollmentRepo) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.byID[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindDetailByID(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	if d, ok := m.details[id]; ok {
		return d, nil
	}
	return &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: id}}, nil
}

func (m *mockEnrollmentRepo) List(_ context.Context, _ models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) Exists(_ context.Context, _, _ string) (bool, error) {
	return m.exists, nil
}

func (m *mockEnrollmentRepo) CountActive(_ context.Context, _ string) (int, error) {
	return m.active, nil
}

func (m *mockEnrollmentRepo) Create(_ context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = "enr-new"
	m.created = append(m.created, enrollment)
	return nil
}

func (m *mockEnrollmentRepo) UpdateStatus(_ context.Context, id string, status models.EnrollmentStatus) error {
	m.status[id] = status
	return nil
}

type mockRunReader struct {
	runs map[string]*models.ClassRun
}

func (m *mockRunReader) FindByID(_ context.Context, id string) (*models.ClassRun, error) {
	if r, ok := m.runs[id]; ok {
		return r, nil
	}
	return nil, sql.ErrNoRows
}

type mockLearnerReader struct {
	learners map[string]*models.Learner
}

func (m *mockLearnerReader) FindByID(_ context.Context, id string) (*models.Learner, error) {
	if l, ok := m.learners[id]; ok {
		return l, nil
	}
	return nil, sql.ErrNoRows
}

func publishedRun() *models.ClassRun {
	return &models.ClassRun{
		ID:            "run-1",
		ReferenceCode: "FIN-2024-01",
		Status:        models.ClassRunStatusPublished,
		Capacity:      2,
		StartDate:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
	}
}

func newEnrollmentFixture() (*mockEnrollmentRepo, *mockRunReader, *mockLearnerReader, *mockEnqueuer, *EnrollmentService) {
	repo := newMockEnrollmentRepo()
	runs := &mockRunReader{runs: map[string]*models.ClassRun{"run-1": publishedRun()}}
	learners := &mockLearnerReader{learners: map[string]*models.Learner{"lrn-1": {ID: "lrn-1"}}}
	jobs := &mockEnqueuer{}
	svc := NewEnrollmentService(repo, runs, learners, jobs, nil, nil, zap.NewNop())
	return repo, runs, learners, jobs, svc
}

func TestEnrollmentServiceEnrollQueuesSync(t *testing.T) {
	repo, _, _, jobs, svc := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), EnrollRequest{ClassRunID: "run-1", LearnerID: "lrn-1"}, "usr-1")
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	require.Equal(t, models.EnrollmentStatusRegistered, repo.created[0].Status)
	require.Len(t, jobs.jobs, 1)
	require.Equal(t, [2]string{"enrollment", "enr-new"}, jobs.jobs[0])
}

func TestEnrollmentServiceEnrollRejectsDuplicate(t *testing.T) {
	repo, _, _, _, svc := newEnrollmentFixture()
	repo.exists = true

	_, err := svc.Enroll(context.Background(), EnrollRequest{ClassRunID: "run-1", LearnerID: "lrn-1"}, "")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollRejectsFullRun(t *testing.T) {
	repo, _, _, _, svc := newEnrollmentFixture()
	repo.active = 2

	_, err := svc.Enroll(context.Background(), EnrollRequest{ClassRunID: "run-1", LearnerID: "lrn-1"}, "")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollRejectsUnpublishedRun(t *testing.T) {
	_, runs, _, _, svc := newEnrollmentFixture()
	runs.runs["run-1"].Status = models.ClassRunStatusDraft

	_, err := svc.Enroll(context.Background(), EnrollRequest{ClassRunID: "run-1", LearnerID: "lrn-1"}, "")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceUpdateStatusQueuesSync(t *testing.T) {
	repo, _, _, jobs, svc := newEnrollmentFixture()
	repo.byID["enr-1"] = &models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusRegistered}

	_, err := svc.UpdateStatus(context.Background(), "enr-1", models.EnrollmentStatusCompleted, "usr-1")
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusCompleted, repo.status["enr-1"])
	require.Len(t, jobs.jobs, 1)
}

func TestEnrollmentServiceUpdateStatusRejectsWithdrawn(t *testing.T) {
	repo, _, _, _, svc := newEnrollmentFixture()
	repo.byID["enr-1"] = &models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusWithdrawn}

	_, err := svc.UpdateStatus(context.Background(), "enr-1", models.EnrollmentStatusCompleted, "")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}
