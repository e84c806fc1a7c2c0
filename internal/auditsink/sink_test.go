package auditsink

import (
	"bytes"
	"context"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"leads-backend/internal/models"

	"golang.org/x/time/rate"
)

func TestMockSinkUpdatesLatestRowInPlace(t *testing.T) {
	s := NewMockSink()
	ctx := context.Background()
	s.Write(ctx, models.AuditRow{LeadID: 1, Action: models.AuditCreated, Status: models.StatusInterested})
	s.Write(ctx, models.AuditRow{LeadID: 2, Action: models.AuditCreated})
	s.Write(ctx, models.AuditRow{LeadID: 1, Action: models.AuditUpdated, Status: models.StatusSentToKelly})
	s.Write(ctx, models.AuditRow{LeadID: 1, Action: models.AuditDeleted})

	rows := s.Snapshot()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Status != models.StatusSentToKelly || rows[0].Action != models.AuditUpdated {
		t.Fatalf("expected first row rewritten, got %+v", rows[0])
	}
	if rows[2].Action != models.AuditDeleted {
		t.Fatalf("DELETED must append, got %+v", rows[2])
	}
}

func TestLimitedSpacesWrites(t *testing.T) {
	l := NewLimited(NewMockSink(), 0, 20*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Write(ctx, models.AuditRow{LeadID: i, Action: models.AuditCreated}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("expected writes to be spaced, took %s", elapsed)
	}
}

func TestLimitedPicksStricterBound(t *testing.T) {
	l := NewLimited(NewMockSink(), 50, time.Millisecond)
	if got, want := l.limiter.Limit(), rate.Every(1200*time.Millisecond); got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
	l = NewLimited(NewMockSink(), 50, 2*time.Second)
	if got, want := l.limiter.Limit(), rate.Every(2*time.Second); got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestLimitedGivesUpWhenContextTooShort(t *testing.T) {
	l := NewLimited(NewMockSink(), 0, time.Hour)
	ctx := context.Background()
	if err := l.Write(ctx, models.AuditRow{LeadID: 1}); err != nil {
		t.Fatalf("first write should pass: %v", err)
	}
	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := l.Write(short, models.AuditRow{LeadID: 2}); err == nil {
		t.Fatalf("expected limiter to refuse a wait beyond the deadline")
	}
}

func TestRowFromRange(t *testing.T) {
	cases := map[string]int{"Leads!A12:R12": 12, "Sheet1!A3": 3}
	for in, want := range cases {
		if got, ok := rowFromRange(in); !ok || got != want {
			t.Errorf("%s: expected %d, got %d", in, want, got)
		}
	}
	if _, ok := rowFromRange("Leads!A:A"); ok {
		t.Errorf("expected no row in a column range")
	}
}

func TestLogSinkWritesToLog(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	err := LogSink{}.Write(context.Background(), models.AuditRow{
		LeadID: 7, Action: models.AuditCreated, Status: models.StatusInterested, AgentName: "Jake R",
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := buf.String(); !strings.Contains(got, "CREATED lead=7") || !strings.Contains(got, `agent="Jake R"`) {
		t.Errorf("log line = %q", got)
	}
}
