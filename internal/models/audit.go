package models

import (
	"strconv"
	"time"
)

// Audit actions
const (
	AuditCreated = "CREATED"
	AuditUpdated = "UPDATED"
	AuditDeleted = "DELETED"
)

// AuditColumns is the header row of the audit sheet
var AuditColumns = []string{
	"lead_id", "name", "phone", "email", "address", "city", "postcode", "status",
	"agent", "salesrep", "created_at", "updated_at", "appointment_date", "notes",
	"is_deleted", "deleted_at", "action", "logged_at",
}

type AuditRow struct {
	LeadID          int
	Name            string
	Phone           string
	Email           string
	Address         string
	City            string
	PostalCode      string
	Status          string
	AgentName       string
	SalesRepName    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	AppointmentDate *time.Time
	Notes           string
	IsDeleted       bool
	DeletedAt       *time.Time
	Action          string
	LoggedAt        time.Time
}

// NewAuditRow snapshots a lead for the audit sheet
func NewAuditRow(l *Lead, action string, loggedAt time.Time) AuditRow {
	return AuditRow{
		LeadID:          l.ID,
		Name:            l.DisplayName(),
		Phone:           l.Phone,
		Email:           l.Email,
		Address:         l.Address(),
		City:            l.City,
		PostalCode:      l.PostalCode,
		Status:          l.Status,
		AgentName:       l.AgentName,
		SalesRepName:    l.SalesRepName,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
		AppointmentDate: l.AppointmentDate,
		Notes:           l.Notes,
		IsDeleted:       l.IsDeleted,
		DeletedAt:       l.DeletedAt,
		Action:          action,
		LoggedAt:        loggedAt,
	}
}

// Values renders the row in AuditColumns order
func (r AuditRow) Values() []string {
	return []string{
		strconv.Itoa(r.LeadID), r.Name, r.Phone, r.Email, r.Address, r.City, r.PostalCode, r.Status,
		r.AgentName, r.SalesRepName, formatAuditTime(&r.CreatedAt), formatAuditTime(&r.UpdatedAt),
		formatAuditTime(r.AppointmentDate), r.Notes, strconv.FormatBool(r.IsDeleted),
		formatAuditTime(r.DeletedAt), r.Action, formatAuditTime(&r.LoggedAt),
	}
}

func formatAuditTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
