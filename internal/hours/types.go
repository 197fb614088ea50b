package hours

import "time"

// Status of a claim. Active entries are always pending; archive rows carry
// the terminal decision.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Decision is a reviewer's verdict on a pending entry.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

func (d Decision) valid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Entry is an active service-hour claim. It exists only while pending:
// review moves it to the archive and removes it, never updates it in place.
type Entry struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Date          time.Time `json:"date"`
	Hours         float64   `json:"hours"`
	CustomTitle   string    `json:"custom_title,omitempty"`
	Description   string    `json:"description,omitempty"`
	ProofURL      string    `json:"proof_url,omitempty"`
	OpportunityID string    `json:"opportunity_id,omitempty"`
	Status        Status    `json:"status"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// Archived is the immutable reviewer-signed snapshot of a claim. Exactly one
// archive row ever exists per original entry.
type Archived struct {
	ID              string     `json:"id"`
	OriginalHoursID string     `json:"original_hours_id"`
	UserID          string     `json:"user_id"`
	Date            time.Time  `json:"date"`
	Hours           float64    `json:"hours"`
	CustomTitle     string     `json:"custom_title,omitempty"`
	Description     string     `json:"description,omitempty"`
	ProofURL        string     `json:"proof_url,omitempty"`
	Status          Status     `json:"status"`
	ReviewComment   string     `json:"review_comment,omitempty"`
	AdminSignature  string     `json:"admin_signature,omitempty"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	ApprovedBy      string     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	ProcessedAt     time.Time  `json:"processed_at"`
}

// SubmitInput is the payload for logging a new claim.
type SubmitInput struct {
	Date          time.Time `json:"date"`
	Hours         float64   `json:"hours"`
	CustomTitle   string    `json:"custom_title,omitempty"`
	Description   string    `json:"description,omitempty"`
	ProofURL      string    `json:"proof_url,omitempty"`
	OpportunityID string    `json:"opportunity_id,omitempty"`
}
