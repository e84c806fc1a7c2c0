package lifecycle

import (
	"reflect"
	"testing"

	"leads-backend/internal/models"
)

func TestPlanEffects(t *testing.T) {
	sent := lead(models.StatusSentToKelly, 10)

	booked := sent.Clone()
	booked.Status = models.StatusAppointmentSet
	p := PlanEffects(OpQualify, sent, booked)
	if p.CalendarKind != models.OutboxCalendarCreate || p.Email || !p.Notify || p.AuditAction != models.AuditUpdated {
		t.Fatalf("unexpected plan for booking without email: %+v", p)
	}

	booked.Email = "alice@example.com"
	p = PlanEffects(OpQualify, sent, booked)
	want := []string{models.OutboxCalendarCreate, models.OutboxEmailConfirmation, models.OutboxAudit}
	if !reflect.DeepEqual(p.Kinds(), want) {
		t.Fatalf("expected %v, got %v", want, p.Kinds())
	}

	booked.CalendarEventID = "evt-1"
	lost := booked.Clone()
	lost.Status = models.StatusSaleLost
	p = PlanEffects(OpCompleteAppointment, booked, lost)
	if p.CalendarKind != models.OutboxCalendarDelete || p.Notify || p.Email {
		t.Fatalf("unexpected plan leaving appointment: %+v", p)
	}

	p = PlanEffects(OpReschedule, booked, booked.Clone())
	if p.CalendarKind != models.OutboxCalendarUpdate || p.AuditAction != models.AuditUpdated {
		t.Fatalf("unexpected reschedule plan: %+v", p)
	}
}

func TestPlanEffectsCreateAndDelete(t *testing.T) {
	if p := PlanEffects(OpDisposition, nil, lead(models.StatusInterested, 10)); p.AuditAction != models.AuditCreated {
		t.Fatalf("expected CREATED on create, got %+v", p)
	}
	if p := PlanSoftDelete(); !reflect.DeepEqual(p.Kinds(), []string{models.OutboxAudit}) {
		t.Fatalf("soft delete should only audit, got %v", p.Kinds())
	}

	before := lead(models.StatusInterested, 10)
	after := before.Clone()
	after.IsDeleted = true
	after.Status = models.StatusNotInterested
	if p := PlanEffects(OpDisposition, before, after); p.AuditAction != "" {
		t.Fatalf("deleted leads must not emit UPDATED, got %+v", p)
	}
}
