// Package lifecycle holds the lead state machine as data. Each Rule names an
// operation, who may run it, which states it leaves from and which it may
// land on. The engine is a lookup over this table.
package lifecycle

import (
	"leads-backend/internal/models"
)

type Operation string

const (
	OpDisposition         Operation = "disposition"
	OpSendToKelly         Operation = "send_to_kelly"
	OpQualify             Operation = "qualify"
	OpReschedule          Operation = "reschedule_appointment"
	OpCompleteAppointment Operation = "complete_appointment"
	OpScheduleCallback    Operation = "schedule_callback"
)

// Operations recorded in history that are not driven by the table
const (
	OpCreate     Operation = "create"
	OpIntake     Operation = "dialer_intake"
	OpUpdate     Operation = "update"
	OpSoftDelete Operation = "soft_delete"
	OpRestore    Operation = "restore"
	OpFieldEdit  Operation = "field_submission_edit"
)

// Ownership is the object-level check applied on top of the role gate
type Ownership int

const (
	OwnerNone Ownership = iota
	// actor must be the lead's owning agent
	OwnerAgent
	// actor must be the lead's assigned field salesrep
	OwnerSalesRep
)

type Rule struct {
	Op        Operation
	Roles     []string // admin is always allowed
	Ownership Ownership
	From      []string // nil means any state
	To        []string
}

var dispositionTargets = []string{
	models.StatusInterested, models.StatusNotInterested, models.StatusTenant,
	models.StatusOtherDisposition, models.StatusCallback, models.StatusNoContact, models.StatusColdCall,
}

// QualifierOutcomes are the decisions a qualifier may record
var QualifierOutcomes = []string{
	models.StatusQualified, models.StatusAppointmentSet, models.StatusNotInterested,
	models.StatusNoContact, models.StatusBlowOut, models.StatusCallback, models.StatusPassBackToAgent,
}

// Rules is the full transition table
var Rules = map[Operation]Rule{
	OpDisposition: {
		Op:        OpDisposition,
		Roles:     []string{models.RoleAgent},
		Ownership: OwnerAgent,
		From:      nil,
		To:        dispositionTargets,
	},
	OpSendToKelly: {
		Op:        OpSendToKelly,
		Roles:     []string{models.RoleAgent},
		Ownership: OwnerAgent,
		From:      []string{models.StatusInterested},
		To:        []string{models.StatusSentToKelly},
	},
	OpQualify: {
		Op:    OpQualify,
		Roles: []string{models.RoleQualifier},
		From:  []string{models.StatusSentToKelly},
		To:    QualifierOutcomes,
	},
	OpReschedule: {
		Op:    OpReschedule,
		Roles: []string{models.RoleQualifier},
		From:  []string{models.StatusAppointmentSet},
		To:    []string{models.StatusAppointmentSet},
	},
	OpCompleteAppointment: {
		Op:        OpCompleteAppointment,
		Roles:     []string{models.RoleSalesRep},
		Ownership: OwnerSalesRep,
		From:      []string{models.StatusAppointmentSet},
		To:        []string{models.StatusAppointmentCompleted, models.StatusSaleMade, models.StatusSaleLost},
	},
	OpScheduleCallback: {
		Op:        OpScheduleCallback,
		Roles:     []string{models.RoleAgent},
		Ownership: OwnerAgent,
		From:      []string{models.StatusInterested, models.StatusCallback, models.StatusSentToKelly},
		To:        []string{models.StatusCallback},
	},
}

// StatusForDisposition maps a cold-call outcome onto the lead status it
// implies when the caller does not choose one.
func StatusForDisposition(d string) string {
	switch d {
	case models.DispositionNotInterested, models.DispositionDoNotCall:
		return models.StatusNotInterested
	case models.DispositionTenant:
		return models.StatusTenant
	case models.DispositionNoAnswer:
		return models.StatusNoContact
	case models.DispositionCallbackRequested:
		return models.StatusCallback
	default:
		return models.StatusOtherDisposition
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
