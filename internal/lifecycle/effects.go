package lifecycle

import (
	"leads-backend/internal/models"
)

// Plan lists the side effects a committed change owes downstream. It is
// turned into outbox rows and notifications inside the same transaction.
type Plan struct {
	CalendarKind string // one of the models.OutboxCalendar* kinds, or ""
	Email        bool
	AuditAction  string // "" when nothing is audited
	Notify       bool
}

// Kinds returns the outbox kinds in dispatch order
func (p Plan) Kinds() []string {
	var kinds []string
	if p.CalendarKind != "" {
		kinds = append(kinds, p.CalendarKind)
	}
	if p.Email {
		kinds = append(kinds, models.OutboxEmailConfirmation)
	}
	if p.AuditAction != "" {
		kinds = append(kinds, models.OutboxAudit)
	}
	return kinds
}

// PlanEffects derives side effects from a before/after pair. before is nil
// for a create.
func PlanEffects(op Operation, before, after *models.Lead) Plan {
	var p Plan
	if before == nil {
		p.AuditAction = models.AuditCreated
		return p
	}

	from, to := before.Status, after.Status
	enteredAppointment := to == models.StatusAppointmentSet && from != models.StatusAppointmentSet
	leftAppointment := from == models.StatusAppointmentSet && to != models.StatusAppointmentSet

	switch {
	case enteredAppointment:
		p.CalendarKind = models.OutboxCalendarCreate
		p.Email = after.Email != ""
	case op == OpReschedule:
		p.CalendarKind = models.OutboxCalendarUpdate
		p.Email = after.Email != ""
	case leftAppointment && before.CalendarEventID != "":
		p.CalendarKind = models.OutboxCalendarDelete
	}

	if from != to || op == OpReschedule {
		p.AuditAction = models.AuditUpdated
	}
	if after.IsDeleted {
		// a deleted lead only ever shows up once, as DELETED
		p.AuditAction = ""
	}

	p.Notify = op == OpQualify && after.OwningAgentID != nil
	return p
}

// PlanSoftDelete emits the single DELETED row. The calendar event is left
// alone so a restore finds it intact.
func PlanSoftDelete() Plan {
	return Plan{AuditAction: models.AuditDeleted}
}

// PlanRestore audits the lead coming back
func PlanRestore() Plan {
	return Plan{AuditAction: models.AuditUpdated}
}
