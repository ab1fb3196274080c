package sync

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hawkerboys/tms-api/internal/models"
	"github.com/hawkerboys/tms-api/internal/registry"
	"github.com/hawkerboys/tms-api/pkg/queue"
)

type mockCourseStore struct {
	course      *models.Course
	findErr     error
	savedID     string
	savedCode   string
	writebacks  int
	writebackOK error
}

func (m *mockCourseStore) FindByID(_ context.Context, id string) (*models.Course, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.course, nil
}

func (m *mockCourseStore) SetRegistryCourseCode(_ context.Context, id, code string) error {
	m.writebacks++
	m.savedID = id
	m.savedCode = code
	return m.writebackOK
}

type mockRunStore struct {
	run     *models.ClassRunDetail
	findErr error
	savedID string
}

func (m *mockRunStore) FindDetailByID(_ context.Context, id string) (*models.ClassRunDetail, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.run, nil
}

func (m *mockRunStore) SetRegistryRunID(_ context.Context, id, rid string) error {
	m.savedID = rid
	return nil
}

type mockEnrollmentStore struct {
	enrollment *models.EnrollmentDetail
	findErr    error
	savedID    string
}

func (m *mockEnrollmentStore) FindDetailByID(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.enrollment, nil
}

func (m *mockEnrollmentStore) SetRegistryEnrollmentID(_ context.Context, id, rid string) error {
	m.savedID = rid
	return nil
}

type mockAttendanceStore struct {
	record    *models.AttendanceDetail
	findErr   error
	submitted bool
}

func (m *mockAttendanceStore) FindDetailByID(_ context.Context, id string) (*models.AttendanceDetail, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.record, nil
}

func (m *mockAttendanceStore) MarkSubmitted(_ context.Context, id string) error {
	m.submitted = true
	return nil
}

type fakeRegistry struct {
	created        int
	updated        int
	lastCoursePay  registry.CoursePayload
	lastRunPay     registry.CourseRunPayload
	lastEnrollPay  registry.EnrollmentPayload
	lastAttendPay  registry.AttendancePayload
	callErr        error
	acknowledged   bool
	builds         int
	updateTargetID string
}

func (f *fakeRegistry) CreateCourse(_ context.Context, p registry.CoursePayload) (*registry.CourseResponse, error) {
	f.created++
	f.lastCoursePay = p
	if f.callErr != nil {
		return nil, f.callErr
	}
	return &registry.CourseResponse{CourseID: "SSG-CRS-1"}, nil
}

func (f *fakeRegistry) UpdateCourse(_ context.Context, courseID string, p registry.CoursePayload) (*registry.CourseResponse, error) {
	f.updated++
	f.updateTargetID = courseID
	f.lastCoursePay = p
	if f.callErr != nil {
		return nil, f.callErr
	}
	return &registry.CourseResponse{CourseID: courseID}, nil
}

func (f *fakeRegistry) CreateCourseRun(_ context.Context, p registry.CourseRunPayload) (*registry.CourseRunResponse, error) {
	f.created++
	f.lastRunPay = p
	if f.callErr != nil {
		return nil, f.callErr
	}
	return &registry.CourseRunResponse{CourseRunID: "SSG-RUN-1"}, nil
}

func (f *fakeRegistry) UpdateCourseRun(_ context.Context, runID string, p registry.CourseRunPayload) (*registry.CourseRunResponse, error) {
	f.updated++
	f.updateTargetID = runID
	f.lastRunPay = p
	if f.callErr != nil {
		return nil, f.callErr
	}
	return &registry.CourseRunResponse{CourseRunID: runID}, nil
}

func (f *fakeRegistry) SubmitEnrollment(_ context.Context, p registry.EnrollmentPayload) (*registry.EnrollmentResponse, error) {
	f.lastEnrollPay = p
	if f.callErr != nil {
		return nil, f.callErr
	}
	return &registry.EnrollmentResponse{EnrolmentID: "SSG-ENR-1"}, nil
}

func (f *fakeRegistry) SubmitAttendance(_ context.Context, p registry.AttendancePayload) (*registry.AttendanceResponse, error) {
	f.lastAttendPay = p
	if f.callErr != nil {
		return nil, f.callErr
	}
	return &registry.AttendanceResponse{Acknowledged: f.acknowledged}, nil
}

func newTestSyncer(courses *mockCourseStore, runs *mockRunStore, enrollments *mockEnrollmentStore, attendance *mockAttendanceStore, reg *fakeRegistry) *Syncer {
	factory := func() RegistryClient {
		reg.builds++
		return reg
	}
	return NewSyncer(courses, runs, enrollments, attendance, factory, zap.NewNop())
}

func TestSyncCourseCreatesAndPersistsRegistryID(t *testing.T) {
	courses := &mockCourseStore{course: &models.Course{ID: "crs-1", Code: "FIN-LIT-101", Title: "Financial Literacy Basics", Published: true}}
	reg := &fakeRegistry{}
	syncer := newTestSyncer(courses, nil, nil, nil, reg)

	err := syncer.SyncCourse(context.Background(), "crs-1")
	require.NoError(t, err)
	require.Equal(t, 1, reg.created)
	require.Equal(t, 0, reg.updated)
	require.Equal(t, "FIN-LIT-101", reg.lastCoursePay.CourseCode)
	require.Equal(t, "SSG-CRS-1", courses.savedCode)
}

func TestSyncCourseUpdatesWhenAlreadyRegistered(t *testing.T) {
	existing := "SSG-CRS-7"
	courses := &mockCourseStore{course: &models.Course{ID: "crs-1", Code: "FIN-LIT-101", Title: "Financial Literacy Basics", RegistryCourseCode: &existing}}
	reg := &fakeRegistry{}
	syncer := newTestSyncer(courses, nil, nil, nil, reg)

	err := syncer.SyncCourse(context.Background(), "crs-1")
	require.NoError(t, err)
	require.Equal(t, 0, reg.created)
	require.Equal(t, 1, reg.updated)
	require.Equal(t, "SSG-CRS-7", reg.updateTargetID)
	// registry id persisted even on update
	require.Equal(t, 1, courses.writebacks)
}

func TestSyncCourseDeletedEntityIsNoOp(t *testing.T) {
	courses := &mockCourseStore{findErr: sql.ErrNoRows}
	reg := &fakeRegistry{}
	syncer := newTestSyncer(courses, nil, nil, nil, reg)

	err := syncer.SyncCourse(context.Background(), "gone")
	require.NoError(t, err)
	require.Equal(t, 0, reg.created)
	require.Equal(t, 0, reg.builds, "no client should be built for a vanished entity")
}

func TestSyncCourseRegistryFailurePropagates(t *testing.T) {
	courses := &mockCourseStore{course: &models.Course{ID: "crs-1", Code: "FIN-LIT-101", Title: "T"}}
	reg := &fakeRegistry{callErr: &registry.ClientError{Op: "create course", Status: 0, Err: errors.New("connection refused")}}
	syncer := newTestSyncer(courses, nil, nil, nil, reg)

	err := syncer.SyncCourse(context.Background(), "crs-1")
	require.Error(t, err)
	var clientErr *registry.ClientError
	require.ErrorAs(t, err, &clientErr)
	require.Equal(t, 0, courses.writebacks)
}

func TestSyncClassRunBuildsDateStrings(t *testing.T) {
	loc := "Blk 531 Upper Cross St"
	runs := &mockRunStore{run: &models.ClassRunDetail{
		ClassRun: models.ClassRun{
			ID:            "run-1",
			ReferenceCode: "FIN-2024-01",
			StartDate:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			EndDate:       time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
			Capacity:      20,
			Location:      &loc,
		},
		CourseCode: "FIN-LIT-101",
	}}
	reg := &fakeRegistry{}
	syncer := newTestSyncer(nil, runs, nil, nil, reg)

	err := syncer.SyncClassRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, "2024-06-01", reg.lastRunPay.StartDate)
	require.Equal(t, "2024-06-30", reg.lastRunPay.EndDate)
	require.Equal(t, "FIN-LIT-101", reg.lastRunPay.CourseCode)
	require.Equal(t, "SSG-RUN-1", runs.savedID)
}

func TestSyncEnrollmentUsesMaskedNRIC(t *testing.T) {
	nric := "S****123A"
	enrollments := &mockEnrollmentStore{enrollment: &models.EnrollmentDetail{
		Enrollment: models.Enrollment{
			ID:     "enr-1",
			Status: models.EnrollmentStatusRegistered,
		},
		RunReferenceCode:  "FIN-2024-01",
		LearnerMaskedNRIC: &nric,
	}}
	reg := &fakeRegistry{}
	syncer := newTestSyncer(nil, nil, enrollments, nil, reg)

	err := syncer.SyncEnrollment(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Equal(t, "S****123A", reg.lastEnrollPay.LearnerIdentifier)
	require.Equal(t, "registered", reg.lastEnrollPay.EnrollmentStatus)
	require.Equal(t, "SSG-ENR-1", enrollments.savedID)
}

func TestSyncEnrollmentFallsBackToLearnerID(t *testing.T) {
	enrollments := &mockEnrollmentStore{enrollment: &models.EnrollmentDetail{
		Enrollment: models.Enrollment{
			ID:        "enr-1",
			LearnerID: "lrn-42",
			Status:    models.EnrollmentStatusRegistered,
		},
		RunReferenceCode: "FIN-2024-01",
	}}
	reg := &fakeRegistry{}
	syncer := newTestSyncer(nil, nil, enrollments, nil, reg)

	err := syncer.SyncEnrollment(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Equal(t, "lrn-42", reg.lastEnrollPay.LearnerIdentifier)
}

func TestSyncAttendanceMarksSubmittedOnAck(t *testing.T) {
	nric := "S****123A"
	attendance := &mockAttendanceStore{record: &models.AttendanceDetail{
		Attendance: models.Attendance{
			ID:     "att-1",
			Status: models.AttendanceStatusPresent,
		},
		RunReferenceCode:  "FIN-2024-01",
		SessionDate:       time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		SessionStartTime:  "09:00",
		SessionEndTime:    "12:00",
		LearnerID:         "lrn-1",
		LearnerMaskedNRIC: &nric,
	}}
	reg := &fakeRegistry{acknowledged: true}
	syncer := newTestSyncer(nil, nil, nil, attendance, reg)

	err := syncer.SyncAttendance(context.Background(), "att-1")
	require.NoError(t, err)
	require.True(t, attendance.submitted)
	require.Equal(t, "2024-06-03", reg.lastAttendPay.SessionDate)
	require.Equal(t, "present", reg.lastAttendPay.AttendanceStatus)
}

func TestSyncAttendanceUnacknowledgedFails(t *testing.T) {
	attendance := &mockAttendanceStore{record: &models.AttendanceDetail{
		Attendance:       models.Attendance{ID: "att-1", Status: models.AttendanceStatusPresent},
		RunReferenceCode: "FIN-2024-01",
		SessionDate:      time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		SessionStartTime: "09:00",
		SessionEndTime:   "12:00",
		LearnerID:        "lrn-1",
	}}
	reg := &fakeRegistry{acknowledged: false}
	syncer := newTestSyncer(nil, nil, nil, attendance, reg)

	err := syncer.SyncAttendance(context.Background(), "att-1")
	require.Error(t, err)
	require.False(t, attendance.submitted)
}

func TestHandleDispatchesByKind(t *testing.T) {
	courses := &mockCourseStore{course: &models.Course{ID: "crs-1", Code: "C", Title: "T"}}
	reg := &fakeRegistry{}
	syncer := newTestSyncer(courses, nil, nil, nil, reg)

	err := syncer.Handle(context.Background(), queue.Job{Kind: string(KindCourse), EntityID: "crs-1"})
	require.NoError(t, err)
	require.Equal(t, 1, reg.created)
}

func TestHandleUnknownKindFails(t *testing.T) {
	syncer := newTestSyncer(&mockCourseStore{}, nil, nil, nil, &fakeRegistry{})

	err := syncer.Handle(context.Background(), queue.Job{Kind: "invoice", EntityID: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown sync job kind")
}

func TestClientBuiltFreshPerJob(t *testing.T) {
	courses := &mockCourseStore{course: &models.Course{ID: "crs-1", Code: "C", Title: "T"}}
	reg := &fakeRegistry{}
	syncer := newTestSyncer(courses, nil, nil, nil, reg)

	require.NoError(t, syncer.SyncCourse(context.Background(), "crs-1"))
	require.NoError(t, syncer.SyncCourse(context.Background(), "crs-1"))
	require.Equal(t, 2, reg.builds)
}
