package services

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"leads-backend/internal/apperr"
	"leads-backend/internal/models"
)

func TestIntakeReplayIsIdempotent(t *testing.T) {
	e := newEnv(t)
	e.mapAgent(t, "JakeR", e.agent)
	ctx := context.Background()

	p := jakePayload()
	p.Comments = str("wants a quote")
	p.RoofType = str("pitched")
	p.EnergyBillAmount = floatPtr(120)
	first, err := e.intake.Intake(ctx, p)
	if err != nil {
		t.Fatalf("intake: %v", err)
	}
	stored := e.db.RawLead(first.Lead.ID)
	writes := e.db.LeadWrites
	rows := len(e.db.AllOutbox())

	second, err := e.intake.Intake(ctx, p)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if second.CreatedVsUpdated != models.IntakeUpdated {
		t.Errorf("replay reported %s", second.CreatedVsUpdated)
	}
	if e.db.LeadWrites != writes {
		t.Errorf("replay wrote the lead again")
	}
	if got := len(e.db.AllOutbox()); got != rows {
		t.Errorf("replay queued %d side effects", got-rows)
	}
	if !reflect.DeepEqual(stored, e.db.RawLead(first.Lead.ID)) {
		t.Error("stored lead changed on replay")
	}
}

func TestConcurrentIntakeCreatesOnce(t *testing.T) {
	e := newEnv(t)
	e.mapAgent(t, "JakeR", e.agent)

	const n = 8
	var wg sync.WaitGroup
	results := make([]*models.IntakeResult, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.intake.Intake(context.Background(), jakePayload())
		}(i)
	}
	wg.Wait()

	created := 0
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("intake %d: %v", i, errs[i])
		}
		if results[i].CreatedVsUpdated == models.IntakeCreated {
			created++
		}
		if results[i].Lead.ID != results[0].Lead.ID {
			t.Errorf("intake %d landed on lead %d", i, results[i].Lead.ID)
		}
	}
	if created != 1 {
		t.Errorf("expected one create, got %d", created)
	}
	if e.db.LeadCount() != 1 {
		t.Errorf("expected one lead row, got %d", e.db.LeadCount())
	}
}

func TestIntakeAgentResolution(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.intake.Intake(ctx, &models.DialerPayload{ExternalDialerUserID: str("ghost"), PhoneNumber: str("+441234500099")})
	if !errors.Is(err, apperr.ErrAgentMappingMissing) {
		t.Fatalf("expected AgentMappingMissing, got %v", err)
	}
	if e.db.LeadCount() != 0 {
		t.Fatal("lead created without an agent")
	}

	// falls back to the dialer username
	res, err := e.intake.Intake(ctx, &models.DialerPayload{
		ExternalDialerUserID: str("ghost"),
		DialerUsername:       str("BOB"),
		PhoneNumber:          str("+441234500099"),
	})
	if err != nil {
		t.Fatalf("username fallback: %v", err)
	}
	if !res.Lead.IsOwnedBy(e.agent2.ID) {
		t.Errorf("owner = %v, want bob", res.Lead.OwningAgentID)
	}

	_, err = e.intake.Intake(ctx, &models.DialerPayload{PhoneNumber: str("+441234500098")})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("missing routing should be a validation error, got %v", err)
	}
}

func TestIntakeSkipsRetiredAgent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.mapAgent(t, "JakeR", e.agent)

	retired := false
	if _, err := e.principals.Update(ctx, e.agent.ID, &models.UpdatePrincipalRequest{IsActive: &retired}); err != nil {
		t.Fatalf("retire: %v", err)
	}
	_, err := e.intake.Intake(ctx, jakePayload())
	if !errors.Is(err, apperr.ErrAgentMappingMissing) {
		t.Errorf("retired agent should not receive leads, got %v", err)
	}
}

func TestIntakeRejectsBadDayNightRate(t *testing.T) {
	e := newEnv(t)
	e.mapAgent(t, "JakeR", e.agent)
	p := jakePayload()
	p.DayNightRate = str("sometimes")
	_, err := e.intake.Intake(context.Background(), p)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation || ae.Field != "day_night_rate" {
		t.Errorf("expected day_night_rate validation error, got %v", err)
	}
}

func TestIntakeUpdateKeepsStatusAndOwner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	l := e.sentToKelly(t, "+441234500050")

	e.mapAgent(t, "other", e.agent2)
	res, err := e.intake.Intake(ctx, &models.DialerPayload{
		ExternalDialerUserID: str("other"),
		PhoneNumber:          str("+441234500050"),
		City:                 str("York"),
	})
	if err != nil {
		t.Fatalf("intake: %v", err)
	}
	if res.Lead.Status != models.StatusSentToKelly {
		t.Errorf("status moved to %s", res.Lead.Status)
	}
	if !res.Lead.IsOwnedBy(e.agent.ID) {
		t.Errorf("owner changed to %v", res.Lead.OwningAgentID)
	}
	if res.Lead.City != "York" {
		t.Errorf("city = %q", res.Lead.City)
	}
	if res.Lead.ID != l.ID {
		t.Errorf("updated a different lead")
	}
}

func TestIntakeAdoptsOrphanedLead(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	created, err := e.leads.Create(ctx, e.admin.Actor(), &models.CreateLeadRequest{Phone: "+441234500060", FullName: "Orphan"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Lead.OwningAgentID != nil {
		t.Fatalf("admin lead should start unowned")
	}

	e.mapAgent(t, "JakeR", e.agent)
	res, err := e.intake.Intake(ctx, &models.DialerPayload{ExternalDialerUserID: str("JakeR"), PhoneNumber: str("+441234500060")})
	if err != nil {
		t.Fatalf("intake: %v", err)
	}
	if !res.Lead.IsOwnedBy(e.agent.ID) || res.Lead.AgentName != e.agent.Name {
		t.Errorf("orphan not adopted: %v %q", res.Lead.OwningAgentID, res.Lead.AgentName)
	}
}

func TestIntakeOnDeletedLeadConflicts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.mapAgent(t, "JakeR", e.agent)
	first, err := e.intake.Intake(ctx, jakePayload())
	if err != nil {
		t.Fatalf("intake: %v", err)
	}
	if _, err := e.leads.SoftDelete(ctx, e.admin.Actor(), first.Lead.ID, "duplicate"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = e.intake.Intake(ctx, jakePayload())
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindDuplicateKey || ae.ExistingID != first.Lead.ID {
		t.Errorf("expected DuplicateKey naming the deleted lead, got %v", err)
	}
}

func TestCheckAPIKey(t *testing.T) {
	s := &IntakeService{APIKey: "s3cret"}
	if err := s.CheckAPIKey("s3cret"); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}
	if err := s.CheckAPIKey("nope"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("bad key accepted: %v", err)
	}
	open := &IntakeService{}
	if err := open.CheckAPIKey(""); err != nil {
		t.Errorf("unset key should allow everything: %v", err)
	}
}

func TestIntakeRejectsPhoneWithoutDigits(t *testing.T) {
	e := newEnv(t)
	e.mapAgent(t, "JakeR", e.agent)
	p := jakePayload()
	p.PhoneNumber = str("+")
	_, err := e.intake.Intake(context.Background(), p)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation || ae.Field != "phone_number" {
		t.Errorf("expected phone_number validation error, got %v", err)
	}

	_, err = e.leads.Create(context.Background(), e.agent.Actor(), &models.CreateLeadRequest{Phone: "+", FullName: "No Digits"})
	if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation || ae.Field != "phone" {
		t.Errorf("expected phone validation error on create, got %v", err)
	}
	if n := e.db.LeadCount(); n != 0 {
		t.Errorf("%d leads stored, want 0", n)
	}
}
