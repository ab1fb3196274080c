package models

import "time"

// Course is a training product offered by the academy. The registry
// identifies it by its unique code.
type Course struct {
	ID                 string    `db:"id" json:"id"`
	Code               string    `db:"code" json:"code"`
	Title              string    `db:"title" json:"title"`
	Description        *string   `db:"description" json:"description,omitempty"`
	Published          bool      `db:"published" json:"published"`
	RegistryCourseCode *string   `db:"registry_course_code" json:"registry_course_code,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Module groups course content into ordered units.
type Module struct {
	ID          string    `db:"id" json:"id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	Position    int       `db:"position" json:"position"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	Published *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
