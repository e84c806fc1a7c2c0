// Package visibility partitions the lead table into per-role working sets.
// Scope narrows a list query, CanRead and CanMutate answer the same question
// for a single row.
package visibility

import (
	"leads-backend/internal/models"
)

// QualifierStatuses are the leads a qualifier works on
var QualifierStatuses = []string{
	models.StatusSentToKelly, models.StatusQualified, models.StatusAppointmentSet,
	models.StatusNotInterested, models.StatusNoContact, models.StatusBlowOut,
	models.StatusCallback, models.StatusPassBackToAgent,
}

// SalesRepStatuses are what a field salesrep may read
var SalesRepStatuses = []string{
	models.StatusAppointmentSet, models.StatusAppointmentCompleted,
	models.StatusSaleMade, models.StatusSaleLost,
}

// Scope narrows q to what actor may read. Caller-supplied filters are kept
// and intersected, never widened.
func Scope(actor models.Actor, q models.LeadQuery) models.LeadQuery {
	if actor.Role != models.RoleAdmin {
		q.IncludeDeleted = false
		q.OnlyDeleted = false
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleAgent:
		q.OwningAgentID = intersectID(q.OwningAgentID, actor.ID, &q)
	case models.RoleQualifier:
		q.Statuses = intersectStatuses(q.Statuses, QualifierStatuses, &q)
	case models.RoleSalesRep:
		q.Statuses = intersectStatuses(q.Statuses, SalesRepStatuses, &q)
	case models.RoleCanvasser:
		q.CreatedByID = intersectID(q.CreatedByID, actor.ID, &q)
		if q.Source != "" && q.Source != models.SourceFieldSubmission {
			q.Empty = true
		}
		q.Source = models.SourceFieldSubmission
	case models.RoleStaff4dshire:
		q.CreatedByID = intersectID(q.CreatedByID, actor.ID, &q)
	default:
		q.Empty = true
	}
	return q
}

// CanRead reports whether actor may see l through a default read
func CanRead(actor models.Actor, l *models.Lead) bool {
	return Scope(actor, models.LeadQuery{IncludeDeleted: true}).Matches(l)
}

// CanMutate is the object-level check for partial updates
func CanMutate(actor models.Actor, l *models.Lead) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleSalesRep:
		return l.Status == models.StatusAppointmentSet &&
			l.FieldSalesRepID != nil && *l.FieldSalesRepID == actor.ID && !l.IsDeleted
	default:
		return CanRead(actor, l)
	}
}

func intersectStatuses(requested, allowed []string, q *models.LeadQuery) []string {
	if len(requested) == 0 {
		return allowed
	}
	out := make([]string, 0, len(requested))
	for _, r := range requested {
		for _, a := range allowed {
			if r == a {
				out = append(out, r)
				break
			}
		}
	}
	if len(out) == 0 {
		q.Empty = true
	}
	return out
}

func intersectID(requested *int, self int, q *models.LeadQuery) *int {
	if requested != nil && *requested != self {
		q.Empty = true
	}
	return &self
}
