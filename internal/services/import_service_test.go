package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"leads-backend/internal/apperr"
	"leads-backend/internal/models"
)

const importDump = `[
  {"phone": "07700 900600", "full_name": "Imported One", "agent_username": "alice"},
  {"phone": "07700 900601", "first_name": "Imported", "last_name": "Two", "status": "interested", "dialer_lead_id": "V-77"},
  {"phone": "07700 900600", "full_name": "Duplicate Of One"},
  {"phone": "", "full_name": "No Phone"},
  {"phone": "07700 900602", "agent_username": "nobody"}
]`

func TestImportJSON(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	report, err := e.imports.ImportJSON(ctx, e.admin.Actor(), strings.NewReader(importDump), "")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Created != 2 || report.Skipped != 1 || report.Failed != 2 {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Errors) != 2 {
		t.Errorf("errors = %v", report.Errors)
	}

	one, err := e.db.Leads().GetByPhone(ctx, "07700900600")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !one.IsOwnedBy(e.agent.ID) || one.Source != models.SourceImport || !strings.HasPrefix(one.LeadNumber, models.LeadPrefixImport) {
		t.Errorf("imported lead = %+v", one)
	}
	two, err := e.db.Leads().GetByDialerLeadID(ctx, "V-77")
	if err != nil || two.FullName != "Imported Two" || two.Status != models.StatusInterested {
		t.Errorf("second lead = %+v %v", two, err)
	}
}

func TestImportRejectsNonAdmin(t *testing.T) {
	e := newEnv(t)
	_, err := e.imports.ImportJSON(context.Background(), e.agent.Actor(), strings.NewReader(importDump), "")
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	_, err = e.imports.ImportJSON(context.Background(), e.admin.Actor(), strings.NewReader(`{"not": "an array"}`), "")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for a non-array, got %v", err)
	}
}

func TestDialerLeadIDIsUniqueOnItsOwn(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.mapAgent(t, "JakeR", e.agent)
	first, err := e.intake.Intake(ctx, &models.DialerPayload{
		ExternalDialerUserID: str("JakeR"),
		DialerLeadID:         str("V-9"),
		PhoneNumber:          str("+441234500700"),
		FirstName:            str("Alice"),
		LastName:             str("Brown"),
	})
	if err != nil {
		t.Fatalf("intake: %v", err)
	}

	rec := &ImportRecord{
		CreateLeadRequest: models.CreateLeadRequest{Phone: "+441234500701", FullName: "Someone Else"},
		DialerLeadID:      "V-9",
	}
	err = e.imports.importOne(ctx, e.admin.Actor(), rec, models.LeadPrefixImport)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindDuplicateKey {
		t.Fatalf("err = %v, want duplicate key", err)
	}
	if ae.Field != "dialer_lead_id" || ae.ExistingID != first.Lead.ID || ae.ExistingDisplay != "Alice Brown" {
		t.Errorf("duplicate = field %q id %d name %q", ae.Field, ae.ExistingID, ae.ExistingDisplay)
	}

	report, err := e.imports.Import(ctx, e.admin.Actor(), []ImportRecord{*rec}, "")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Created != 0 || report.Skipped != 1 {
		t.Errorf("report = %+v", report)
	}
	if n := e.db.LeadCount(); n != 1 {
		t.Errorf("%d leads stored, want 1", n)
	}
}
