package calendar

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"leads-backend/internal/models"
)

func bookedLead() *models.Lead {
	when := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	return &models.Lead{
		ID:              1,
		LeadNumber:      "ME001",
		FullName:        "Alice Brown",
		Phone:           "+441234500001",
		Email:           "alice@example.com",
		AgentName:       "Jake R",
		AddressLine1:    "1 High Street",
		City:            "Leeds",
		PostalCode:      "LS1 1AA",
		AppointmentDate: &when,
	}
}

func TestBuildEvent(t *testing.T) {
	spec, err := BuildEvent(bookedLead())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if spec.Summary != "Appointment with Alice Brown" {
		t.Fatalf("unexpected summary %q", spec.Summary)
	}
	if spec.End.Sub(spec.Start) != time.Hour {
		t.Fatalf("expected one hour slot")
	}
	if spec.TimeZone != "Europe/London" {
		t.Fatalf("unexpected timezone %s", spec.TimeZone)
	}
	for _, want := range []string{"+441234500001", "alice@example.com", "Jake R"} {
		if !strings.Contains(spec.Description, want) {
			t.Errorf("description missing %q", want)
		}
	}

	l := bookedLead()
	l.AppointmentDate = nil
	if _, err := BuildEvent(l); err == nil {
		t.Fatalf("expected error without appointment date")
	}
}

func TestInviteHasAlarms(t *testing.T) {
	spec, _ := BuildEvent(bookedLead())
	out := Invite(spec, "uid-1@leads", "bookings@example.com", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	for _, want := range []string{"METHOD:REQUEST", "BEGIN:VEVENT", "UID:uid-1@leads", "TRIGGER:-PT24H", "TRIGGER:-PT1H", "BEGIN:VALARM"} {
		if !strings.Contains(out, want) {
			t.Errorf("invite missing %q:\n%s", want, out)
		}
	}
}

func TestTriggerBefore(t *testing.T) {
	if got := triggerBefore(90 * time.Minute); got != "-PT90M" {
		t.Fatalf("unexpected %s", got)
	}
}

func TestMockProvider(t *testing.T) {
	m := NewMockProvider()
	ctx := context.Background()
	id, err := m.Create(ctx, EventSpec{Summary: "x"})
	if err != nil || id == "" {
		t.Fatalf("create: %v", err)
	}
	if err := m.Delete(ctx, id); err != nil || m.Count() != 0 {
		t.Fatalf("delete: %v count=%d", err, m.Count())
	}
	m.SetErr(errors.New("offline"))
	if _, err := m.Create(ctx, EventSpec{}); err == nil {
		t.Fatalf("expected failure")
	}
}
