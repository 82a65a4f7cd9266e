package models

import "time"

// FeedbackReport is a user-submitted report. It is immutable once created.
type FeedbackReport struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Context     FeedbackContext `json:"context"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// FeedbackContext describes where in the product the report was filed.
type FeedbackContext struct {
	Module string `json:"module,omitempty"`
	Tab    string `json:"tab,omitempty"`
	Device string `json:"device,omitempty"`
}
