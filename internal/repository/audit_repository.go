package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hawkerboys/tms-api/internal/models"
)

// AuditRepository appends entries to the audit trail.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record appends an audit entry. Audit writes never fail a business
// operation, so callers log and swallow the error.
func (r *AuditRepository) Record(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	const query = `INSERT INTO audit_log (id, performed_by, action, entity_type, entity_id, context, timestamp)
        VALUES (:id, :performed_by, :action, :entity_type, :entity_id, :context, :timestamp)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// ListByEntity returns the audit trail for one entity, newest first.
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, performed_by, action, entity_type, entity_id, context, timestamp
        FROM audit_log WHERE entity_type = $1 AND entity_id = $2 ORDER BY timestamp DESC LIMIT %d`, limit)
	var entries []models.AuditEntry
	if err := r.db.SelectContext(ctx, &entries, query, entityType, entityID); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
