package lifecycle

import (
	"errors"
	"testing"
	"time"

	"leads-backend/internal/apperr"
	"leads-backend/internal/models"
)

func intPtr(v int) *int { return &v }

func lead(status string, owner int) *models.Lead {
	return &models.Lead{ID: 1, Phone: "+441234500001", Status: status, OwningAgentID: intPtr(owner)}
}

var (
	agent     = models.Actor{ID: 10, Role: models.RoleAgent}
	otherAgnt = models.Actor{ID: 11, Role: models.RoleAgent}
	qualifier = models.Actor{ID: 20, Role: models.RoleQualifier}
	salesrep  = models.Actor{ID: 30, Role: models.RoleSalesRep}
	admin     = models.Actor{ID: 1, Role: models.RoleAdmin}
)

func TestAllowedPairsFollowTable(t *testing.T) {
	when := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	amount := 1200.0

	for op, rule := range Rules {
		for _, from := range models.AllStatuses {
			for _, to := range models.AllStatuses {
				l := lead(from, agent.ID)
				l.FieldSalesRepID = intPtr(salesrep.ID)
				target := Target{Status: to, AppointmentDate: &when, QualifierCallbackAt: &when, SaleAmount: &amount}

				err := Check(op, l, admin, target)
				allowed := (rule.From == nil || contains(rule.From, from)) && contains(rule.To, to)
				if allowed && err != nil {
					t.Errorf("%s %s->%s: expected allowed, got %v", op, from, to, err)
				}
				if !allowed && !errors.Is(err, apperr.ErrStateTransitionRejected) {
					t.Errorf("%s %s->%s: expected rejection, got %v", op, from, to, err)
				}
			}
		}
	}
}

func TestOwnershipRules(t *testing.T) {
	l := lead(models.StatusInterested, agent.ID)
	if err := Check(OpSendToKelly, l, agent, Target{Status: models.StatusSentToKelly}); err != nil {
		t.Fatalf("owner should be allowed: %v", err)
	}
	err := Check(OpSendToKelly, l, otherAgnt, Target{Status: models.StatusSentToKelly})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden for another agent, got %v", err)
	}
	err = Check(OpSendToKelly, l, qualifier, Target{Status: models.StatusSentToKelly})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden for qualifier, got %v", err)
	}
}

func TestCompleteAppointmentOnlyAssignedSalesRep(t *testing.T) {
	when := time.Now()
	l := lead(models.StatusAppointmentSet, agent.ID)
	l.AppointmentDate = &when
	l.FieldSalesRepID = intPtr(99)

	err := Check(OpCompleteAppointment, l, salesrep, Target{Status: models.StatusSaleLost})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden for unassigned salesrep, got %v", err)
	}
	l.FieldSalesRepID = intPtr(salesrep.ID)
	if err := Check(OpCompleteAppointment, l, salesrep, Target{Status: models.StatusSaleLost}); err != nil {
		t.Fatalf("assigned salesrep should complete: %v", err)
	}
}

func TestGuards(t *testing.T) {
	l := lead(models.StatusSentToKelly, agent.ID)

	err := Check(OpQualify, l, qualifier, Target{Status: models.StatusAppointmentSet})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("appointment without date: expected validation, got %v", err)
	}
	err = Check(OpQualify, l, qualifier, Target{Status: models.StatusCallback})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("callback without time: expected validation, got %v", err)
	}

	when := time.Now()
	l = lead(models.StatusAppointmentSet, agent.ID)
	l.AppointmentDate = &when
	l.FieldSalesRepID = intPtr(salesrep.ID)
	neg := -5.0
	err = Check(OpCompleteAppointment, l, salesrep, Target{Status: models.StatusSaleMade, SaleAmount: &neg})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("negative sale: expected validation, got %v", err)
	}
}

func TestDeletedLeadRejected(t *testing.T) {
	l := lead(models.StatusInterested, agent.ID)
	l.IsDeleted = true
	err := Check(OpSendToKelly, l, agent, Target{Status: models.StatusSentToKelly})
	if !errors.Is(err, apperr.ErrStateTransitionRejected) {
		t.Fatalf("expected rejection on deleted lead, got %v", err)
	}
}

func TestCheckInvariants(t *testing.T) {
	l := lead(models.StatusAppointmentSet, agent.ID)
	if err := CheckInvariants(l); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("appointment_set without date must fail, got %v", err)
	}
	when := time.Now()
	l.AppointmentDate = &when
	if err := CheckInvariants(l); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	l.Status = models.StatusSaleMade
	if err := CheckInvariants(l); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("sale_made without amount must fail, got %v", err)
	}
}

func TestStatusForDisposition(t *testing.T) {
	cases := map[string]string{
		models.DispositionWrongNumber:       models.StatusOtherDisposition,
		models.DispositionNoAnswer:          models.StatusNoContact,
		models.DispositionCallbackRequested: models.StatusCallback,
		models.DispositionDoNotCall:         models.StatusNotInterested,
		models.DispositionTenant:            models.StatusTenant,
	}
	for d, want := range cases {
		if got := StatusForDisposition(d); got != want {
			t.Errorf("%s: expected %s, got %s", d, want, got)
		}
		if !contains(Rules[OpDisposition].To, StatusForDisposition(d)) {
			t.Errorf("%s maps outside the disposition targets", d)
		}
	}
}
