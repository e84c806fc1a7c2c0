package models

import "time"

// Review statuses for a field submission
const (
	ReviewPending     = "pending"
	ReviewUnderReview = "under_review"
	ReviewCompleted   = "completed"
	ReviewRejected    = "rejected"
)

func ValidReviewStatus(s string) bool {
	switch s {
	case ReviewPending, ReviewUnderReview, ReviewCompleted, ReviewRejected:
		return true
	}
	return false
}

// FieldSubmission is a canvasser's door-to-door property assessment. Only
// the review block changes after the first commit; edits to the assessment
// itself are pushed through to the linked lead.
type FieldSubmission struct {
	ID            int    `json:"id"`
	CanvasserID   int    `json:"canvasser_id"`
	CanvasserName string `json:"canvasser_name,omitempty"`
	LeadID        *int   `json:"lead_id"`

	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	Email        string `json:"email,omitempty"`
	AddressLine1 string `json:"address1"`
	AddressLine2 string `json:"address2,omitempty"`
	City         string `json:"city"`
	PostalCode   string `json:"postal_code"`

	PropertyType      string   `json:"property_type,omitempty"`
	PropertyOwnership string   `json:"property_ownership,omitempty"`
	RoofType          string   `json:"roof_type,omitempty"`
	RoofOrientation   string   `json:"roof_orientation,omitempty"`
	Shading           string   `json:"shading,omitempty"`
	MonthlyBill       *float64 `json:"monthly_bill,omitempty"`
	Notes             string   `json:"notes,omitempty"`

	ReviewStatus  string     `json:"review_status"`
	ReviewerID    *int       `json:"reviewer_id,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	ReviewerNotes string     `json:"reviewer_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FieldSubmissionRequest is used for both create and re-save
type FieldSubmissionRequest struct {
	FullName          string   `json:"full_name"`
	Phone             string   `json:"phone"`
	Email             string   `json:"email"`
	AddressLine1      string   `json:"address1"`
	AddressLine2      string   `json:"address2"`
	City              string   `json:"city"`
	PostalCode        string   `json:"postal_code"`
	PropertyType      string   `json:"property_type"`
	PropertyOwnership string   `json:"property_ownership"`
	RoofType          string   `json:"roof_type"`
	RoofOrientation   string   `json:"roof_orientation"`
	Shading           string   `json:"shading"`
	MonthlyBill       *float64 `json:"monthly_bill"`
	Notes             string   `json:"notes"`
}

type ReviewFieldSubmissionRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}
