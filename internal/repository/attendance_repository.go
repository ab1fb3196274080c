package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hawkerboys/tms-api/internal/models"
)

// AttendanceRepository handles persistence of attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// FindByID returns an attendance record by ID.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	const query = `SELECT id, session_id, enrollment_id, status, remarks, submitted_to_registry, created_at, updated_at
        FROM attendance WHERE id = $1`
	var record models.Attendance
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindDetailByID returns an attendance record joined with its session timing,
// run reference code and learner identity. The sync worker uses this shape.
func (r *AttendanceRepository) FindDetailByID(ctx context.Context, id string) (*models.AttendanceDetail, error) {
	const query = `SELECT a.id, a.session_id, a.enrollment_id, a.status, a.remarks, a.submitted_to_registry, a.created_at, a.updated_at,
            cr.reference_code AS run_reference_code,
            s.date AS session_date,
            s.start_time AS session_start_time,
            s.end_time AS session_end_time,
            l.id AS learner_id,
            l.masked_nric AS learner_masked_nric
        FROM attendance a
        JOIN sessions s ON s.id = a.session_id
        JOIN class_runs cr ON cr.id = s.class_run_id
        JOIN enrollments e ON e.id = a.enrollment_id
        JOIN learners l ON l.id = e.learner_id
        WHERE a.id = $1`
	var detail models.AttendanceDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListBySession returns all attendance records for a session.
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Attendance, error) {
	const query = `SELECT id, session_id, enrollment_id, status, remarks, submitted_to_registry, created_at, updated_at
        FROM attendance WHERE session_id = $1 ORDER BY created_at`
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, sessionID); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// Upsert records attendance for an enrollment in a session. Marking the same
// pair twice overwrites the status and resets the submission flag so the
// correction is re-sent to the registry.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.Attendance) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	const query = `INSERT INTO attendance (id, session_id, enrollment_id, status, remarks, submitted_to_registry, created_at, updated_at)
        VALUES (:id, :session_id, :enrollment_id, :status, :remarks, false, :created_at, :updated_at)
        ON CONFLICT (session_id, enrollment_id) DO UPDATE
        SET status = EXCLUDED.status, remarks = EXCLUDED.remarks, submitted_to_registry = false, updated_at = EXCLUDED.updated_at
        RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, query, record)
	if err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&record.ID); err != nil {
			return fmt.Errorf("upsert attendance: %w", err)
		}
	}
	return rows.Err()
}

// MarkSubmitted flags a record as acknowledged by the registry.
func (r *AttendanceRepository) MarkSubmitted(ctx context.Context, id string) error {
	const query = `UPDATE attendance SET submitted_to_registry = true, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark attendance submitted: %w", err)
	}
	return nil
}
