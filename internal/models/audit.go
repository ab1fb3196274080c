package models

import "time"

// AuditAction categorises audit trail entries.
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
	AuditActionSync   AuditAction = "sync"
)

// AuditEntry is an append-only record of a mutating operation.
type AuditEntry struct {
	ID          string      `db:"id" json:"id"`
	PerformedBy *string     `db:"performed_by" json:"performed_by,omitempty"`
	Action      AuditAction `db:"action" json:"action"`
	EntityType  string      `db:"entity_type" json:"entity_type"`
	EntityID    string      `db:"entity_id" json:"entity_id"`
	Context     *string     `db:"context" json:"context,omitempty"`
	Timestamp   time.Time   `db:"timestamp" json:"timestamp"`
}
