package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate:
		return true
	default:
		return false
	}
}

// Attendance marks a learner's presence at one session, unique per
// (enrollment, session). SubmittedToRegistry flips to true only after
// the registry acknowledges the submission.
type Attendance struct {
	ID                  string           `db:"id" json:"id"`
	EnrollmentID        string           `db:"enrollment_id" json:"enrollment_id"`
	SessionID           string           `db:"session_id" json:"session_id"`
	Status              AttendanceStatus `db:"status" json:"status"`
	Remarks             *string          `db:"remarks" json:"remarks,omitempty"`
	SubmittedToRegistry bool             `db:"submitted_to_registry" json:"submitted_to_registry"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceDetail carries the joined fields a sync payload needs.
type AttendanceDetail struct {
	Attendance
	RunReferenceCode  string    `db:"run_reference_code" json:"run_reference_code"`
	SessionDate       time.Time `db:"session_date" json:"session_date"`
	SessionStartTime  string    `db:"session_start_time" json:"session_start_time"`
	SessionEndTime    string    `db:"session_end_time" json:"session_end_time"`
	LearnerID         string    `db:"learner_id" json:"learner_id"`
	LearnerMaskedNRIC *string   `db:"learner_masked_nric" json:"learner_masked_nric,omitempty"`
}

// LearnerIdentifier resolves the registry-facing learner identifier with
// the masked-NRIC-first fallback rule.
func (a AttendanceDetail) LearnerIdentifier() string {
	if a.LearnerMaskedNRIC != nil && *a.LearnerMaskedNRIC != "" {
		return *a.LearnerMaskedNRIC
	}
	return a.LearnerID
}
