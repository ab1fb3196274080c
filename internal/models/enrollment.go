package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusRegistered EnrollmentStatus = "registered"
	EnrollmentStatusInProgress EnrollmentStatus = "in_progress"
	EnrollmentStatusCompleted  EnrollmentStatus = "completed"
	EnrollmentStatusWithdrawn  EnrollmentStatus = "withdrawn"
)

// Valid returns true when the status is a supported value.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusRegistered, EnrollmentStatusInProgress, EnrollmentStatusCompleted, EnrollmentStatusWithdrawn:
		return true
	default:
		return false
	}
}

// Enrollment links a learner to a class run, unique per pair.
// RegistryEnrollmentID is owned by the sync worker.
type Enrollment struct {
	ID                   string           `db:"id" json:"id"`
	LearnerID            string           `db:"learner_id" json:"learner_id"`
	ClassRunID           string           `db:"class_run_id" json:"class_run_id"`
	Status               EnrollmentStatus `db:"status" json:"status"`
	EnrolledOn           time.Time        `db:"enrolled_on" json:"enrolled_on"`
	RegistryEnrollmentID *string          `db:"registry_enrollment_id" json:"registry_enrollment_id,omitempty"`
	CreatedAt            time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail carries the joined fields a sync payload needs.
type EnrollmentDetail struct {
	Enrollment
	RunReferenceCode  string  `db:"run_reference_code" json:"run_reference_code"`
	LearnerMaskedNRIC *string `db:"learner_masked_nric" json:"learner_masked_nric,omitempty"`
	LearnerName       string  `db:"learner_name" json:"learner_name"`
}

// LearnerIdentifier resolves the registry-facing learner identifier with
// the masked-NRIC-first fallback rule.
func (e EnrollmentDetail) LearnerIdentifier() string {
	if e.LearnerMaskedNRIC != nil && *e.LearnerMaskedNRIC != "" {
		return *e.LearnerMaskedNRIC
	}
	return e.LearnerID
}

// EnrollmentFilter captures filtering criteria for listing enrollments.
type EnrollmentFilter struct {
	LearnerID  string
	ClassRunID string
	Status     EnrollmentStatus
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
