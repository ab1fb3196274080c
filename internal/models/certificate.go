package models

import "time"

// Assessment records a score for an enrollment.
type Assessment struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Score        int       `db:"score" json:"score"`
	Remarks      *string   `db:"remarks" json:"remarks,omitempty"`
	AssessedOn   time.Time `db:"assessed_on" json:"assessed_on"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Certificate is issued once per completed enrollment.
type Certificate struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	SerialNumber string    `db:"serial_number" json:"serial_number"`
	IssuedOn     time.Time `db:"issued_on" json:"issued_on"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// CertificateDetail adds the fields rendered onto the PDF.
type CertificateDetail struct {
	Certificate
	LearnerName      string    `db:"learner_name" json:"learner_name"`
	CourseTitle      string    `db:"course_title" json:"course_title"`
	RunReferenceCode string    `db:"run_reference_code" json:"run_reference_code"`
	RunEndDate       time.Time `db:"run_end_date" json:"run_end_date"`
}
