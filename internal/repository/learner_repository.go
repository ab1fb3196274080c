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

// LearnerRepository handles persistence of learners.
type LearnerRepository struct {
	db *sqlx.DB
}

// NewLearnerRepository constructs the repository.
func NewLearnerRepository(db *sqlx.DB) *LearnerRepository {
	return &LearnerRepository{db: db}
}

// FindByID returns a learner by ID.
func (r *LearnerRepository) FindByID(ctx context.Context, id string) (*models.Learner, error) {
	const query = `SELECT id, given_name, family_name, email, contact_number, masked_nric, created_at, updated_at
        FROM learners WHERE id = $1`
	var learner models.Learner
	if err := r.db.GetContext(ctx, &learner, query, id); err != nil {
		return nil, err
	}
	return &learner, nil
}

// List returns learners matching the optional search term, newest first.
func (r *LearnerRepository) List(ctx context.Context, search string, page, pageSize int) ([]models.Learner, int, error) {
	base := "FROM learners"
	clause := ""
	var args []interface{}
	if search != "" {
		clause = " WHERE (given_name ILIKE $1 OR family_name ILIKE $1 OR email ILIKE $1)"
		args = append(args, "%"+strings.TrimSpace(search)+"%")
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT id, given_name, family_name, email, contact_number, masked_nric, created_at, updated_at
        %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base+clause, pageSize, offset)

	var learners []models.Learner
	if err := r.db.SelectContext(ctx, &learners, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list learners: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base+clause), args...); err != nil {
		return nil, 0, fmt.Errorf("count learners: %w", err)
	}
	return learners, total, nil
}

// Create persists a new learner.
func (r *LearnerRepository) Create(ctx context.Context, learner *models.Learner) error {
	if learner.ID == "" {
		learner.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	learner.CreatedAt = now
	learner.UpdatedAt = now
	const query = `INSERT INTO learners (id, given_name, family_name, email, contact_number, masked_nric, created_at, updated_at)
        VALUES (:id, :given_name, :family_name, :email, :contact_number, :masked_nric, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, learner); err != nil {
		return fmt.Errorf("create learner: %w", err)
	}
	return nil
}

// Update persists changes to a learner's identity and contact fields.
func (r *LearnerRepository) Update(ctx context.Context, learner *models.Learner) error {
	learner.UpdatedAt = time.Now().UTC()
	const query = `UPDATE learners SET given_name = :given_name, family_name = :family_name, email = :email,
        contact_number = :contact_number, masked_nric = :masked_nric, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, learner); err != nil {
		return fmt.Errorf("update learner: %w", err)
	}
	return nil
}
