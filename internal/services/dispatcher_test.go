package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"leads-backend/internal/lifecycle"
	"leads-backend/internal/models"
)

func TestBackoffDoublesUpToCap(t *testing.T) {
	d := &Dispatcher{cfg: DispatcherConfig{BaseBackoff: 30 * time.Second, MaxBackoff: 5 * time.Minute}}
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 2 * time.Minute},
		{4, 4 * time.Minute},
		{5, 5 * time.Minute},
		{12, 5 * time.Minute},
	}
	for _, tc := range cases {
		if got := d.backoff(tc.attempts); got != tc.want {
			t.Errorf("backoff(%d) = %s, want %s", tc.attempts, got, tc.want)
		}
	}
}

func TestEntriesSkipDisabledAdapters(t *testing.T) {
	cfg := DefaultDispatcherConfig()
	d := NewDispatcher(nil, nil, nil, nil, nil, nil, cfg)
	plan := lifecycle.Plan{CalendarKind: models.OutboxCalendarCreate, Email: true, AuditAction: models.AuditUpdated}
	if rows := d.Entries(plan, nil, time.Now()); len(rows) != 0 {
		t.Errorf("expected no rows without adapters, got %d", len(rows))
	}

	e := newEnv(t)
	now := e.clock.Now()
	rows := e.dispatch.Entries(plan, nil, now)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	kinds := []string{models.OutboxCalendarCreate, models.OutboxEmailConfirmation, models.OutboxAudit}
	for i, r := range rows {
		if r.Kind != kinds[i] {
			t.Errorf("row %d kind = %s, want %s", i, r.Kind, kinds[i])
		}
		if !r.NextAttemptAt.After(now) {
			t.Errorf("row %d is not leased to the inline drain", i)
		}
		if r.ID == "" || r.MaxAttempts < 1 {
			t.Errorf("row %d malformed: %+v", i, r)
		}
	}
}

func TestOutboxGivesUpAfterMaxAttempts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.audit.SetErr(errors.New("quota exceeded"))
	l := e.interestedLead(t, "+441234500200")

	row := outboxByKind(e.db.AllOutbox(), l.ID)[models.OutboxAudit]
	if row == nil || row.Attempts != 1 || row.Status != models.OutboxPending {
		t.Fatalf("audit row after inline drain: %+v", row)
	}

	for i := 0; i < 5; i++ {
		e.clock.Advance(time.Hour)
		if _, err := e.dispatch.RunOnce(ctx); err != nil {
			t.Fatalf("run once: %v", err)
		}
	}
	row = outboxByKind(e.db.AllOutbox(), l.ID)[models.OutboxAudit]
	if row.Status != models.OutboxFailed || row.Attempts != row.MaxAttempts {
		t.Errorf("row should be failed after %d attempts: %+v", row.MaxAttempts, row)
	}
	if row.LastError == "" {
		t.Error("last error not recorded")
	}
}

func TestRunOnceRespectsSchedule(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.audit.SetErr(errors.New("down"))
	e.interestedLead(t, "+441234500210")
	e.audit.SetErr(nil)

	n, err := e.dispatch.RunOnce(ctx)
	if err != nil || n != 0 {
		t.Fatalf("nothing should be due yet: %d %v", n, err)
	}
	e.clock.Advance(time.Minute)
	n, err = e.dispatch.RunOnce(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected the retry to run: %d %v", n, err)
	}
	if rows := e.audit.Snapshot(); len(rows) != 1 || rows[0].Action != models.AuditCreated {
		t.Errorf("audit rows = %+v", rows)
	}
}

func TestDeletedLeadOnlyAuditsDeletion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	l := e.interestedLead(t, "+441234500220")
	if _, err := e.leads.SoftDelete(ctx, e.admin.Actor(), l.ID, "bad data"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// a stale UPDATED intent for the now-deleted lead is dropped
	rows := e.dispatch.Entries(lifecycle.Plan{AuditAction: models.AuditUpdated}, nil, e.clock.Now())
	rows[0].LeadID = l.ID
	report := e.dispatch.Drain(ctx, rows)
	if report.AuditLogged {
		t.Error("UPDATED row written for a deleted lead")
	}
	last := e.audit.Snapshot()
	if last[len(last)-1].Action != models.AuditDeleted {
		t.Errorf("last audit action = %s", last[len(last)-1].Action)
	}
}
