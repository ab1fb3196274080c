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

// ClassRunRepository handles persistence of class runs and their sessions.
type ClassRunRepository struct {
	db *sqlx.DB
}

// NewClassRunRepository constructs the repository.
func NewClassRunRepository(db *sqlx.DB) *ClassRunRepository {
	return &ClassRunRepository{db: db}
}

// FindByID returns a class run by its ID.
func (r *ClassRunRepository) FindByID(ctx context.Context, id string) (*models.ClassRun, error) {
	const query = `SELECT id, course_id, reference_code, start_date, end_date, capacity, location, status, registry_run_id, created_at, updated_at
        FROM class_runs WHERE id = $1`
	var run models.ClassRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// FindDetailByID returns a class run joined with its course's code and title.
// The sync worker uses this shape to build registry payloads.
func (r *ClassRunRepository) FindDetailByID(ctx context.Context, id string) (*models.ClassRunDetail, error) {
	const query = `SELECT cr.id, cr.course_id, cr.reference_code, cr.start_date, cr.end_date, cr.capacity, cr.location,
            cr.status, cr.registry_run_id, cr.created_at, cr.updated_at,
            c.code AS course_code, c.title AS course_title
        FROM class_runs cr
        JOIN courses c ON c.id = cr.course_id
        WHERE cr.id = $1`
	var detail models.ClassRunDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns class runs filtered by the provided criteria.
func (r *ClassRunRepository) List(ctx context.Context, filter models.ClassRunFilter) ([]models.ClassRunDetail, int, error) {
	base := `FROM class_runs cr JOIN courses c ON c.id = cr.course_id`
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("cr.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("cr.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("cr.start_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("cr.end_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
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

	query := fmt.Sprintf(`SELECT cr.id, cr.course_id, cr.reference_code, cr.start_date, cr.end_date, cr.capacity, cr.location,
            cr.status, cr.registry_run_id, cr.created_at, cr.updated_at,
            c.code AS course_code, c.title AS course_title
        %s ORDER BY cr.start_date DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var runs []models.ClassRunDetail
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list class runs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count class runs: %w", err)
	}
	return runs, total, nil
}

// Create persists a new class run.
func (r *ClassRunRepository) Create(ctx context.Context, run *models.ClassRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now
	const query = `INSERT INTO class_runs (id, course_id, reference_code, start_date, end_date, capacity, location, status, created_at, updated_at)
        VALUES (:id, :course_id, :reference_code, :start_date, :end_date, :capacity, :location, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create class run: %w", err)
	}
	return nil
}

// Update persists changes to a class run's editable fields.
func (r *ClassRunRepository) Update(ctx context.Context, run *models.ClassRun) error {
	run.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_runs SET start_date = :start_date, end_date = :end_date, capacity = :capacity,
        location = :location, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("update class run: %w", err)
	}
	return nil
}

// SetRegistryRunID stores the identifier the registry assigned to the run.
func (r *ClassRunRepository) SetRegistryRunID(ctx context.Context, id, registryRunID string) error {
	const query = `UPDATE class_runs SET registry_run_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, registryRunID, time.Now().UTC()); err != nil {
		return fmt.Errorf("set registry run id: %w", err)
	}
	return nil
}

// CreateSession adds a session to a run.
func (r *ClassRunRepository) CreateSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	const query = `INSERT INTO sessions (id, class_run_id, date, start_time, end_time, created_at, updated_at)
        VALUES (:id, :class_run_id, :date, :start_time, :end_time, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindSessionByID returns a single session.
func (r *ClassRunRepository) FindSessionByID(ctx context.Context, id string) (*models.Session, error) {
	const query = `SELECT id, class_run_id, date, start_time, end_time, created_at, updated_at FROM sessions WHERE id = $1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions returns a run's sessions ordered by date.
func (r *ClassRunRepository) ListSessions(ctx context.Context, runID string) ([]models.Session, error) {
	const query = `SELECT id, class_run_id, date, start_time, end_time, created_at, updated_at
        FROM sessions WHERE class_run_id = $1 ORDER BY date, start_time`
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, runID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}
