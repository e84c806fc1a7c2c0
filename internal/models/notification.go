package models

import "time"

// Notification types
const (
	NotificationStatusUpdate        = "status_update"
	NotificationAppointmentSet      = "appointment_set"
	NotificationQualificationResult = "qualification_result"
)

type Notification struct {
	ID          int       `json:"id"`
	RecipientID int       `json:"recipient_id"`
	SenderID    *int      `json:"sender_id,omitempty"` // originating qualifier
	LeadID      int       `json:"lead_id"`
	LeadNumber  string    `json:"lead_number,omitempty"`
	Message     string    `json:"message"`
	Type        string    `json:"type"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

type NotificationList struct {
	Notifications []*Notification `json:"notifications"`
	Unread        int             `json:"unread"`
}
