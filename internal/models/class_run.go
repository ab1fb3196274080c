package models

import "time"

// ClassRunStatus represents the lifecycle of a class run.
type ClassRunStatus string

// Possible class run statuses.
const (
	ClassRunStatusDraft     ClassRunStatus = "draft"
	ClassRunStatusPublished ClassRunStatus = "published"
	ClassRunStatusCompleted ClassRunStatus = "completed"
	ClassRunStatusCancelled ClassRunStatus = "cancelled"
)

// Valid returns true when the status is a supported value.
func (s ClassRunStatus) Valid() bool {
	switch s {
	case ClassRunStatusDraft, ClassRunStatusPublished, ClassRunStatusCompleted, ClassRunStatusCancelled:
		return true
	default:
		return false
	}
}

// ClassRun is a scheduled delivery of a course. ReferenceCode is unique
// and is the key the registry upserts runs by; RegistryRunID is assigned
// by the registry once it acknowledges creation and is only ever written
// by the sync worker.
type ClassRun struct {
	ID            string         `db:"id" json:"id"`
	CourseID      string         `db:"course_id" json:"course_id"`
	ReferenceCode string         `db:"reference_code" json:"reference_code"`
	StartDate     time.Time      `db:"start_date" json:"start_date"`
	EndDate       time.Time      `db:"end_date" json:"end_date"`
	Capacity      int            `db:"capacity" json:"capacity"`
	Location      *string        `db:"location" json:"location,omitempty"`
	Status        ClassRunStatus `db:"status" json:"status"`
	RegistryRunID *string        `db:"registry_run_id" json:"registry_run_id,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// ClassRunDetail enriches ClassRun with its parent course code.
type ClassRunDetail struct {
	ClassRun
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseTitle string `db:"course_title" json:"course_title"`
}

// Session is a single meeting of a class run, unique per (run, date).
type Session struct {
	ID         string    `db:"id" json:"id"`
	ClassRunID string    `db:"class_run_id" json:"class_run_id"`
	Date       time.Time `db:"date" json:"date"`
	StartTime  string    `db:"start_time" json:"start_time"`
	EndTime    string    `db:"end_time" json:"end_time"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ClassRunFilter captures filtering criteria for listing class runs.
type ClassRunFilter struct {
	CourseID  string
	Status    ClassRunStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
