// Package sync pushes local training records to the national registry.
// Jobs arrive through the durable queue; each run reloads its entity from
// the database so stale snapshots are never submitted, and every
// registry-assigned identifier is written back before the job completes.
package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hawkerboys/tms-api/internal/models"
	"github.com/hawkerboys/tms-api/internal/registry"
)

const dateLayout = "2006-01-02"

// CourseStore is the course persistence the syncer needs.
type CourseStore interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	SetRegistryCourseCode(ctx context.Context, id, registryCode string) error
}

// ClassRunStore is the class run persistence the syncer needs.
type ClassRunStore interface {
	FindDetailByID(ctx context.Context, id string) (*models.ClassRunDetail, error)
	SetRegistryRunID(ctx context.Context, id, registryRunID string) error
}

// EnrollmentStore is the enrollment persistence the syncer needs.
type EnrollmentStore interface {
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	SetRegistryEnrollmentID(ctx context.Context, id, registryID string) error
}

// AttendanceStore is the attendance persistence the syncer needs.
type AttendanceStore interface {
	FindDetailByID(ctx context.Context, id string) (*models.AttendanceDetail, error)
	MarkSubmitted(ctx context.Context, id string) error
}

// RegistryClient is the subset of the registry client the syncer calls.
type RegistryClient interface {
	CreateCourse(ctx context.Context, payload registry.CoursePayload) (*registry.CourseResponse, error)
	UpdateCourse(ctx context.Context, courseID string, payload registry.CoursePayload) (*registry.CourseResponse, error)
	CreateCourseRun(ctx context.Context, payload registry.CourseRunPayload) (*registry.CourseRunResponse, error)
	UpdateCourseRun(ctx context.Context, runID string, payload registry.CourseRunPayload) (*registry.CourseRunResponse, error)
	SubmitEnrollment(ctx context.Context, payload registry.EnrollmentPayload) (*registry.EnrollmentResponse, error)
	SubmitAttendance(ctx context.Context, payload registry.AttendancePayload) (*registry.AttendanceResponse, error)
}

// ClientFactory builds a registry client for a single job run. Constructing
// the client per job means rotated credentials take effect on the next job
// without a worker restart.
type ClientFactory func() RegistryClient

// Syncer executes sync jobs against the registry.
type Syncer struct {
	courses     CourseStore
	runs        ClassRunStore
	enrollments EnrollmentStore
	attendance  AttendanceStore
	newClient   ClientFactory
	logger      *zap.Logger
}

// NewSyncer constructs a Syncer.
func NewSyncer(
	courses CourseStore,
	runs ClassRunStore,
	enrollments EnrollmentStore,
	attendance AttendanceStore,
	newClient ClientFactory,
	logger *zap.Logger,
) *Syncer {
	return &Syncer{
		courses:     courses,
		runs:        runs,
		enrollments: enrollments,
		attendance:  attendance,
		newClient:   newClient,
		logger:      logger,
	}
}

// SyncCourse pushes one course to the registry. A course deleted between
// enqueue and execution is a no-op, not an error.
func (s *Syncer) SyncCourse(ctx context.Context, courseID string) error {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("course vanished before sync, skipping", zap.String("course_id", courseID))
			return nil
		}
		return fmt.Errorf("load course %s: %w", courseID, err)
	}

	payload := registry.CoursePayload{
		CourseCode:  course.Code,
		CourseTitle: course.Title,
		Description: course.Description,
		PublishFlag: course.Published,
	}

	client := s.newClient()
	var resp *registry.CourseResponse
	if course.RegistryCourseCode == nil {
		resp, err = client.CreateCourse(ctx, payload)
	} else {
		resp, err = client.UpdateCourse(ctx, *course.RegistryCourseCode, payload)
	}
	if err != nil {
		return fmt.Errorf("sync course %s: %w", courseID, err)
	}

	if err := s.courses.SetRegistryCourseCode(ctx, course.ID, resp.CourseID); err != nil {
		return fmt.Errorf("persist registry course code for %s: %w", courseID, err)
	}
	s.logger.Info("course synced",
		zap.String("course_id", course.ID),
		zap.String("registry_course_id", resp.CourseID))
	return nil
}

// SyncClassRun pushes one class run to the registry.
func (s *Syncer) SyncClassRun(ctx context.Context, runID string) error {
	run, err := s.runs.FindDetailByID(ctx, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("class run vanished before sync, skipping", zap.String("class_run_id", runID))
			return nil
		}
		return fmt.Errorf("load class run %s: %w", runID, err)
	}

	payload := registry.CourseRunPayload{
		CourseRunCode: run.ReferenceCode,
		CourseCode:    run.CourseCode,
		StartDate:     run.StartDate.Format(dateLayout),
		EndDate:       run.EndDate.Format(dateLayout),
		Capacity:      run.Capacity,
		Location:      run.Location,
	}

	client := s.newClient()
	var resp *registry.CourseRunResponse
	if run.RegistryRunID == nil {
		resp, err = client.CreateCourseRun(ctx, payload)
	} else {
		resp, err = client.UpdateCourseRun(ctx, *run.RegistryRunID, payload)
	}
	if err != nil {
		return fmt.Errorf("sync class run %s: %w", runID, err)
	}

	if err := s.runs.SetRegistryRunID(ctx, run.ID, resp.CourseRunID); err != nil {
		return fmt.Errorf("persist registry run id for %s: %w", runID, err)
	}
	s.logger.Info("class run synced",
		zap.String("class_run_id", run.ID),
		zap.String("registry_run_id", resp.CourseRunID))
	return nil
}

// SyncEnrollment submits one enrollment to the registry. Status changes go
// through the same submission endpoint, so a job always re-sends the current
// state of the record.
func (s *Syncer) SyncEnrollment(ctx context.Context, enrollmentID string) error {
	enrollment, err := s.enrollments.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("enrollment vanished before sync, skipping", zap.String("enrollment_id", enrollmentID))
			return nil
		}
		return fmt.Errorf("load enrollment %s: %w", enrollmentID, err)
	}

	payload := registry.EnrollmentPayload{
		CourseRunCode:     enrollment.RunReferenceCode,
		LearnerIdentifier: enrollment.LearnerIdentifier(),
		EnrollmentStatus:  string(enrollment.Status),
	}

	resp, err := s.newClient().SubmitEnrollment(ctx, payload)
	if err != nil {
		return fmt.Errorf("sync enrollment %s: %w", enrollmentID, err)
	}

	if err := s.enrollments.SetRegistryEnrollmentID(ctx, enrollment.ID, resp.EnrolmentID); err != nil {
		return fmt.Errorf("persist registry enrollment id for %s: %w", enrollmentID, err)
	}
	s.logger.Info("enrollment synced",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("registry_enrollment_id", resp.EnrolmentID))
	return nil
}

// SyncAttendance submits one attendance record to the registry and flags it
// submitted once the registry acknowledges it.
func (s *Syncer) SyncAttendance(ctx context.Context, attendanceID string) error {
	record, err := s.attendance.FindDetailByID(ctx, attendanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("attendance record vanished before sync, skipping", zap.String("attendance_id", attendanceID))
			return nil
		}
		return fmt.Errorf("load attendance %s: %w", attendanceID, err)
	}

	payload := registry.AttendancePayload{
		CourseRunCode:     record.RunReferenceCode,
		SessionDate:       record.SessionDate.Format(dateLayout),
		SessionStartTime:  record.SessionStartTime,
		SessionEndTime:    record.SessionEndTime,
		LearnerIdentifier: record.LearnerIdentifier(),
		AttendanceStatus:  string(record.Status),
	}

	resp, err := s.newClient().SubmitAttendance(ctx, payload)
	if err != nil {
		return fmt.Errorf("sync attendance %s: %w", attendanceID, err)
	}
	if !resp.Acknowledged {
		return fmt.Errorf("sync attendance %s: registry did not acknowledge submission", attendanceID)
	}

	if err := s.attendance.MarkSubmitted(ctx, record.ID); err != nil {
		return fmt.Errorf("mark attendance %s submitted: %w", attendanceID, err)
	}
	s.logger.Info("attendance synced", zap.String("attendance_id", record.ID))
	return nil
}
