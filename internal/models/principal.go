package models

import "time"

// Role tags carried by every principal
const (
	RoleAgent        = "agent"
	RoleQualifier    = "qualifier"
	RoleSalesRep     = "salesrep"
	RoleAdmin        = "admin"
	RoleCanvasser    = "canvasser"
	RoleStaff4dshire = "staff4dshire"
)

// ValidRole reports whether role is one of the six known tags
func ValidRole(role string) bool {
	switch role {
	case RoleAgent, RoleQualifier, RoleSalesRep, RoleAdmin, RoleCanvasser, RoleStaff4dshire:
		return true
	}
	return false
}

type Principal struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"` // false = retired
	TOTPSecret   string    `json:"-"`
	TOTPEnabled  bool      `json:"totp_enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Actor is the authenticated caller of a service operation
type Actor struct {
	ID   int    `json:"id"`
	Role string `json:"role"`
	Name string `json:"name"`
}

// SystemActor is used for dialer intake and CLI-driven writes
var SystemActor = Actor{ID: 0, Role: RoleAdmin, Name: "system"}

func (p *Principal) Actor() Actor {
	return Actor{ID: p.ID, Role: p.Role, Name: p.Name}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Login    string `json:"login"` // username or email
	Password string `json:"password"`
	TOTPCode string `json:"totp_code,omitempty"`
}

// AuthResponse represents the response after successful authentication
type AuthResponse struct {
	Token     string     `json:"token,omitempty"`
	Principal *Principal `json:"principal,omitempty"`
	Requires  string     `json:"requires,omitempty"` // "totp" when a second factor is missing
}

// CreatePrincipalRequest represents the request body for creating a principal
type CreatePrincipalRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// UpdatePrincipalRequest represents the request body for updating a principal
type UpdatePrincipalRequest struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Password *string `json:"password,omitempty"`
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// TOTPSetupResponse carries the provisioning secret for an authenticator app
type TOTPSetupResponse struct {
	Secret      string `json:"secret"`
	URL         string `json:"url"`
	Issuer      string `json:"issuer"`
	AccountName string `json:"account_name"`
}
