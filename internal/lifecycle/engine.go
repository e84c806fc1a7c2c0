package lifecycle

import (
	"fmt"
	"time"

	"leads-backend/internal/apperr"
	"leads-backend/internal/models"
)

// Target is what the caller asks the lead to become
type Target struct {
	Status              string
	AppointmentDate     *time.Time
	QualifierCallbackAt *time.Time
	SaleAmount          *float64
}

// Authorize applies the role gate and ownership rule for op. It does not
// look at states.
func Authorize(op Operation, lead *models.Lead, actor models.Actor) error {
	rule, ok := Rules[op]
	if !ok {
		return apperr.Internal(fmt.Sprintf("unknown operation %s", op), nil)
	}
	if actor.Role == models.RoleAdmin {
		return nil
	}
	if !contains(rule.Roles, actor.Role) {
		return apperr.Forbidden(fmt.Sprintf("role %s may not %s", actor.Role, op))
	}
	switch rule.Ownership {
	case OwnerAgent:
		if !lead.IsOwnedBy(actor.ID) {
			return apperr.Forbidden("lead belongs to another agent")
		}
	case OwnerSalesRep:
		if lead.FieldSalesRepID == nil || *lead.FieldSalesRepID != actor.ID {
			return apperr.Forbidden("appointment is assigned to another salesrep")
		}
	}
	return nil
}

// Check validates a transition: authorization, the (from, to) pair from the
// table, then the per-target guards.
func Check(op Operation, lead *models.Lead, actor models.Actor, target Target) error {
	if err := Authorize(op, lead, actor); err != nil {
		return err
	}
	rule := Rules[op]
	if lead.IsDeleted {
		return apperr.TransitionRejected(lead.Status, target.Status, "lead is deleted")
	}
	if rule.From != nil && !contains(rule.From, lead.Status) {
		return apperr.TransitionRejected(lead.Status, target.Status,
			fmt.Sprintf("%s requires status %v", op, rule.From))
	}
	if !contains(rule.To, target.Status) {
		return apperr.TransitionRejected(lead.Status, target.Status,
			fmt.Sprintf("%s cannot produce %s", op, target.Status))
	}
	return guard(op, target)
}

func guard(op Operation, target Target) error {
	switch target.Status {
	case models.StatusAppointmentSet:
		if op == OpQualify || op == OpReschedule {
			if target.AppointmentDate == nil || target.AppointmentDate.IsZero() {
				return apperr.Validation("appointment_date", "required when booking an appointment")
			}
		}
	case models.StatusCallback:
		if op == OpQualify && target.QualifierCallbackAt == nil {
			return apperr.Validation("qualifier_callback_at", "required for a qualifier callback")
		}
	case models.StatusSaleMade:
		if target.SaleAmount == nil {
			return apperr.Validation("sale_amount", "required for a sale")
		}
		if *target.SaleAmount < 0 {
			return apperr.Validation("sale_amount", "must not be negative")
		}
	}
	return nil
}

// appointmentStates require an appointment date
var appointmentStates = []string{
	models.StatusAppointmentSet, models.StatusAppointmentCompleted,
	models.StatusSaleMade, models.StatusSaleLost,
}

// CheckInvariants enforces the record-level rules every committed lead must
// satisfy, whatever path produced it.
func CheckInvariants(l *models.Lead) error {
	if !models.ValidStatus(l.Status) {
		return apperr.Validation("status", fmt.Sprintf("unknown status %q", l.Status))
	}
	if l.Disposition != "" && !models.ValidDisposition(l.Disposition) {
		return apperr.Validation("disposition", fmt.Sprintf("unknown disposition %q", l.Disposition))
	}
	if l.Phone == "" {
		return apperr.Validation("phone", "required")
	}
	if contains(appointmentStates, l.Status) && l.AppointmentDate == nil {
		return apperr.Validation("appointment_date", fmt.Sprintf("required for status %s", l.Status))
	}
	if l.Status == models.StatusSaleMade && (l.SaleAmount == nil || *l.SaleAmount < 0) {
		return apperr.Validation("sale_amount", "sale_made needs a non-negative amount")
	}
	return nil
}

// IsPastSentToKelly reports whether a lead has moved beyond the hand-off to
// the qualifier.
func IsPastSentToKelly(status string) bool {
	switch status {
	case models.StatusColdCall, models.StatusInterested, models.StatusSentToKelly:
		return false
	}
	return true
}
