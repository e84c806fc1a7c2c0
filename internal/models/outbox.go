package models

import (
	"encoding/json"
	"time"
)

// Outbox kinds, drained in this order for a single request
const (
	OutboxCalendarCreate    = "calendar_create"
	OutboxCalendarUpdate    = "calendar_update"
	OutboxCalendarDelete    = "calendar_delete"
	OutboxEmailConfirmation = "email_confirmation"
	OutboxAudit             = "audit"
)

// Outbox row states
const (
	OutboxPending = "pending"
	OutboxDone    = "done"
	OutboxFailed  = "failed"
)

// OutboxEntry is a side-effect intent written in the same transaction as
// the lead change that caused it.
type OutboxEntry struct {
	ID            string          `json:"id"`
	LeadID        int             `json:"lead_id"`
	Kind          string          `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
	Status        string          `json:"status"`
	Attempts      int             `json:"attempts"`
	MaxAttempts   int             `json:"max_attempts"`
	LastError     string          `json:"last_error,omitempty"`
	NextAttemptAt time.Time       `json:"next_attempt_at"`
	CreatedAt     time.Time       `json:"created_at"`
	DoneAt        *time.Time      `json:"done_at,omitempty"`
}

// OutboxPayload carries what the lead row alone cannot tell the worker later
type OutboxPayload struct {
	EventID string `json:"event_id,omitempty"` // calendar_delete
	Action  string `json:"action,omitempty"`   // audit
}

// SideEffectReport is returned with every lifecycle mutation
type SideEffectReport struct {
	CalendarSynced      bool     `json:"calendar_synced"`
	CalendarCancelled   bool     `json:"calendar_cancelled"`
	EmailSent           bool     `json:"email_sent"`
	AuditLogged         bool     `json:"audit_logged"`
	NotificationCreated bool     `json:"notification_created"`
	Errors              []string `json:"errors,omitempty"`
}

// TransitionResult is the lead after commit plus what happened downstream
type TransitionResult struct {
	Lead        *Lead            `json:"lead"`
	SideEffects SideEffectReport `json:"side_effects"`
}
