// Package auditsink mirrors lead mutations into an external spreadsheet.
// The sheet is never authoritative; the outbox retries failed writes.
package auditsink

import (
	"context"
	"log"
	"sync"
	"time"

	"leads-backend/internal/models"

	"golang.org/x/time/rate"
)

// Sink appends CREATED/DELETED rows and may rewrite the latest row of a
// lead in place on UPDATED.
type Sink interface {
	Write(ctx context.Context, row models.AuditRow) error
}

// Limited serializes writes through a token bucket. With burst 1 and
// rate.Every(interval) consecutive writes are at least interval apart.
type Limited struct {
	next    Sink
	limiter *rate.Limiter
}

// NewLimited enforces whichever of writesPerMinute and minInterval is stricter
func NewLimited(next Sink, writesPerMinute int, minInterval time.Duration) *Limited {
	interval := minInterval
	if writesPerMinute > 0 {
		if perWrite := time.Minute / time.Duration(writesPerMinute); perWrite > interval {
			interval = perWrite
		}
	}
	return &Limited{next: next, limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Write waits for a slot. When the wait would outlive ctx the write fails
// straight away and the outbox reschedules it.
func (l *Limited) Write(ctx context.Context, row models.AuditRow) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	return l.next.Write(ctx, row)
}

// LogSink writes rows to the server log. The server falls back to it when
// no spreadsheet is configured.
type LogSink struct{}

func (LogSink) Write(ctx context.Context, row models.AuditRow) error {
	log.Printf("[Audit] %s lead=%d status=%s agent=%q", row.Action, row.LeadID, row.Status, row.AgentName)
	return nil
}

// MockSink records rows in memory, rewriting the latest row of a lead on
// UPDATED the same way the sheet does.
type MockSink struct {
	mu   sync.Mutex
	Rows []models.AuditRow
	Err  error
}

func NewMockSink() *MockSink { return &MockSink{} }

func (m *MockSink) Write(ctx context.Context, row models.AuditRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if row.Action == models.AuditUpdated {
		for i := len(m.Rows) - 1; i >= 0; i-- {
			if m.Rows[i].LeadID == row.LeadID {
				m.Rows[i] = row
				return nil
			}
		}
	}
	m.Rows = append(m.Rows, row)
	return nil
}

func (m *MockSink) SetErr(err error) {
	m.mu.Lock()
	m.Err = err
	m.mu.Unlock()
}

// Snapshot returns a copy of the rows written so far
func (m *MockSink) Snapshot() []models.AuditRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AuditRow(nil), m.Rows...)
}
