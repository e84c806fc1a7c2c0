package models

import "time"

// DialerMapping binds a stable external dialer user id to an internal agent.
// Both sides are unique, so the relation is a bijection.
type DialerMapping struct {
	ID             int       `json:"id"`
	ExternalUserID string    `json:"external_user_id"`
	PrincipalID    int       `json:"principal_id"`
	PrincipalName  string    `json:"principal_name,omitempty"` // joined from principals
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type UpsertDialerMappingRequest struct {
	ExternalUserID string `json:"external_user_id"`
	PrincipalID    int    `json:"principal_id"`
}

// DialerStatus is the admin-toggled switch gating the cold-call queue
type DialerStatus struct {
	Active bool `json:"active"`
}
