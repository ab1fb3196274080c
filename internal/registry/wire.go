// Package registry talks to the national workforce-training registry.
// Payload shapes here mirror the registry's wire contract exactly,
// including its lowerCamel field casing, and are kept separate from the
// internal models so schema changes on either side stay contained.
package registry

// TokenResponse is returned by the OAuth2 token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// CoursePayload creates or updates a course record.
type CoursePayload struct {
	CourseCode  string  `json:"courseCode"`
	CourseTitle string  `json:"courseTitle"`
	Description *string `json:"description"`
	PublishFlag bool    `json:"publishFlag"`
}

// CourseRunPayload creates or updates a class run. Dates are formatted
// as YYYY-MM-DD before they reach this struct.
type CourseRunPayload struct {
	CourseRunCode string  `json:"courseRunCode"`
	CourseCode    string  `json:"courseCode"`
	StartDate     string  `json:"startDate"`
	EndDate       string  `json:"endDate"`
	Capacity      int     `json:"capacity"`
	Location      *string `json:"location"`
}

// EnrollmentPayload submits an enrollment for a course run.
type EnrollmentPayload struct {
	CourseRunCode     string `json:"courseRunCode"`
	LearnerIdentifier string `json:"learnerIdentifier"`
	EnrollmentStatus  string `json:"enrollmentStatus"`
}

// AttendancePayload submits attendance for one session.
type AttendancePayload struct {
	CourseRunCode     string `json:"courseRunCode"`
	SessionDate       string `json:"sessionDate"`
	SessionStartTime  string `json:"sessionStartTime"`
	SessionEndTime    string `json:"sessionEndTime"`
	LearnerIdentifier string `json:"learnerIdentifier"`
	AttendanceStatus  string `json:"attendanceStatus"`
}

// ClaimPayload submits a funding claim for an enrollment.
type ClaimPayload struct {
	CourseRunCode      string  `json:"courseRunCode"`
	LearnerIdentifier  string  `json:"learnerIdentifier"`
	EnrolmentReference string  `json:"enrolmentReference"`
	Amount             float64 `json:"amount"`
}

// CourseResponse acknowledges a course create/update.
type CourseResponse struct {
	CourseID string `json:"courseId"`
}

// CourseRunResponse acknowledges a run create/update.
type CourseRunResponse struct {
	CourseRunID string `json:"courseRunId"`
}

// EnrollmentResponse acknowledges an enrollment submission. The registry
// spells it "enrolment".
type EnrollmentResponse struct {
	EnrolmentID string `json:"enrolmentId"`
}

// AttendanceResponse acknowledges an attendance submission.
type AttendanceResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

// ClaimResponse acknowledges a claim submission.
type ClaimResponse struct {
	ClaimID string `json:"claimId"`
}
