package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hawkerboys/tms-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns an enrollment by ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, class_run_id, learner_id, status, enrolled_on, registry_enrollment_id, created_at, updated_at
        FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment joined with its run reference code and
// the learner's identity fields. The sync worker uses this shape.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.class_run_id, e.learner_id, e.status, e.enrolled_on, e.registry_enrollment_id, e.created_at, e.updated_at,
            cr.reference_code AS run_reference_code,
            l.masked_nric AS learner_masked_nric,
            l.given_name || ' ' || l.family_name AS learner_name
        FROM enrollments e
        JOIN class_runs cr ON cr.id = e.class_run_id
        JOIN learners l ON l.id = e.learner_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Exists reports whether the learner already holds an enrollment in the run.
func (r *EnrollmentRepository) Exists(ctx context.Context, classRunID, learnerID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM enrollments WHERE class_run_id = $1 AND learner_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, classRunID, learnerID); err != nil {
		return false, fmt.Errorf("check enrollment exists: %w", err)
	}
	return exists, nil
}

// CountActive returns the number of non-withdrawn enrollments in a run.
func (r *EnrollmentRepository) CountActive(ctx context.Context, classRunID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE class_run_id = $1 AND status != $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classRunID, models.EnrollmentStatusWithdrawn); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// List returns enrollments for the filter, joined with run and learner info.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
        JOIN class_runs cr ON cr.id = e.class_run_id
        JOIN learners l ON l.id = e.learner_id`
	var conditions []string
	var args []interface{}

	if filter.ClassRunID != "" {
		conditions = append(conditions, fmt.Sprintf("e.class_run_id = $%d", len(args)+1))
		args = append(args, filter.ClassRunID)
	}
	if filter.LearnerID != "" {
		conditions = append(conditions, fmt.Sprintf("e.learner_id = $%d", len(args)+1))
		args = append(args, filter.LearnerID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.class_run_id, e.learner_id, e.status, e.enrolled_on, e.registry_enrollment_id, e.created_at, e.updated_at,
            cr.reference_code AS run_reference_code,
            l.masked_nric AS learner_masked_nric,
            l.given_name || ' ' || l.family_name AS learner_name
        %s ORDER BY e.created_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base+clause), args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// Create persists a new enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, class_run_id, learner_id, status, enrolled_on, created_at, updated_at)
        VALUES (:id, :class_run_id, :learner_id, :status, :enrolled_on, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus transitions an enrollment to a new status.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// SetRegistryEnrollmentID stores the identifier the registry assigned.
func (r *EnrollmentRepository) SetRegistryEnrollmentID(ctx context.Context, id, registryID string) error {
	const query = `UPDATE enrollments SET registry_enrollment_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, registryID, time.Now().UTC()); err != nil {
		return fmt.Errorf("set registry enrollment id: %w", err)
	}
	return nil
}
