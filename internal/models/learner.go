package models

import "time"

// Learner is a trainee. MaskedNRIC holds the pre-masked national
// identifier supplied at onboarding; when absent, sync payloads fall
// back to the internal id.
type Learner struct {
	ID            string    `db:"id" json:"id"`
	GivenName     string    `db:"given_name" json:"given_name"`
	FamilyName    string    `db:"family_name" json:"family_name"`
	Email         *string   `db:"email" json:"email,omitempty"`
	ContactNumber *string   `db:"contact_number" json:"contact_number,omitempty"`
	MaskedNRIC    *string   `db:"masked_nric" json:"masked_nric,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Identifier returns the value submitted to the registry for this
// learner: the masked NRIC when present, otherwise the internal id.
func (l Learner) Identifier() string {
	if l.MaskedNRIC != nil && *l.MaskedNRIC != "" {
		return *l.MaskedNRIC
	}
	return l.ID
}
