package models

import "time"

// Callback statuses
const (
	CallbackScheduled = "scheduled"
	CallbackCompleted = "completed"
	CallbackMissed    = "missed"
	CallbackCancelled = "cancelled"
)

func ValidCallbackStatus(s string) bool {
	switch s {
	case CallbackScheduled, CallbackCompleted, CallbackMissed, CallbackCancelled:
		return true
	}
	return false
}

type Callback struct {
	ID            int        `json:"id"`
	LeadID        int        `json:"lead_id"`
	AgentID       int        `json:"agent_id"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	Status        string     `json:"status"`
	Notes         string     `json:"notes"`
	CreatedByID   *int       `json:"created_by_id,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	LeadName string `json:"lead_name,omitempty"`

	// Derived at read time, never stored
	Overdue bool `json:"is_overdue"`
	Due     bool `json:"is_due"`
}

// IsOverdue: still scheduled and the time has passed
func (c *Callback) IsOverdue(now time.Time) bool {
	return c.Status == CallbackScheduled && c.ScheduledTime.Before(now)
}

// IsDue reports whether the callback falls within window from now
func (c *Callback) IsDue(now time.Time, window time.Duration) bool {
	until := c.ScheduledTime.Sub(now)
	return until >= 0 && until <= window
}

// Evaluate fills the derived flags
func (c *Callback) Evaluate(now time.Time, window time.Duration) {
	c.Overdue = c.IsOverdue(now)
	c.Due = c.Status == CallbackScheduled && c.IsDue(now, window)
}

type CreateCallbackRequest struct {
	LeadID        int       `json:"lead_id"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Notes         string    `json:"notes"`
}

type UpdateCallbackStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}
