package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"leads-backend/internal/apperr"
	"leads-backend/internal/auditsink"
	"leads-backend/internal/calendar"
	"leads-backend/internal/lifecycle"
	"leads-backend/internal/mailer"
	"leads-backend/internal/metrics"
	"leads-backend/internal/models"
	"leads-backend/internal/timeutil"

	"github.com/google/uuid"
)

type DispatcherConfig struct {
	PollInterval  time.Duration
	BatchSize     int
	Lease         time.Duration // how long a claimed row is hidden from other workers
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	InlineTimeout time.Duration // budget for draining a request's rows after commit

	CalendarAttempts int
	EmailAttempts    int
	AuditAttempts    int
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		PollInterval:     15 * time.Second,
		BatchSize:        20,
		Lease:            2 * time.Minute,
		BaseBackoff:      30 * time.Second,
		MaxBackoff:       30 * time.Minute,
		InlineTimeout:    20 * time.Second,
		CalendarAttempts: 3,
		EmailAttempts:    1,
		AuditAttempts:    3,
	}
}

// Dispatcher delivers outbox rows to the calendar, email and audit adapters.
// A nil adapter disables its kind: no rows are written for it.
type Dispatcher struct {
	Outbox     OutboxStore
	Leads      LeadStore
	Principals PrincipalStore
	Calendar   calendar.Provider
	Mailer     mailer.Sender
	Audit      auditsink.Sink

	cfg DispatcherConfig
	now func() time.Time
}

func NewDispatcher(outbox OutboxStore, leads LeadStore, principals PrincipalStore,
	cal calendar.Provider, mail mailer.Sender, audit auditsink.Sink, cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		Outbox:     outbox,
		Leads:      leads,
		Principals: principals,
		Calendar:   cal,
		Mailer:     mail,
		Audit:      audit,
		cfg:        cfg,
		now:        time.Now,
	}
}

// errSkipped marks a row that no longer applies to the lead's current state
var errSkipped = errors.New("skipped")

// Entries turns a plan into outbox rows for the lead transaction. Rows are
// leased to the inline drain so the worker leaves them alone until it has
// had its go.
func (d *Dispatcher) Entries(plan lifecycle.Plan, before *models.Lead, now time.Time) []*models.OutboxEntry {
	var out []*models.OutboxEntry
	for _, kind := range plan.Kinds() {
		payload := models.OutboxPayload{}
		maxAttempts := 0
		switch kind {
		case models.OutboxCalendarCreate, models.OutboxCalendarUpdate:
			if d.Calendar == nil {
				continue
			}
			maxAttempts = d.cfg.CalendarAttempts
		case models.OutboxCalendarDelete:
			if d.Calendar == nil || before == nil {
				continue
			}
			payload.EventID = before.CalendarEventID
			maxAttempts = d.cfg.CalendarAttempts
		case models.OutboxEmailConfirmation:
			if d.Mailer == nil {
				continue
			}
			maxAttempts = d.cfg.EmailAttempts
		case models.OutboxAudit:
			if d.Audit == nil {
				continue
			}
			payload.Action = plan.AuditAction
			maxAttempts = d.cfg.AuditAttempts
		}
		raw, _ := json.Marshal(payload)
		out = append(out, &models.OutboxEntry{
			ID:            uuid.NewString(),
			Kind:          kind,
			Payload:       raw,
			Status:        models.OutboxPending,
			MaxAttempts:   max(maxAttempts, 1),
			NextAttemptAt: now.Add(d.cfg.Lease),
			CreatedAt:     now,
		})
	}
	return out
}

// Drain delivers the rows a request just committed, in order, and reports
// what happened. It never returns an error: failures stay in the outbox.
func (d *Dispatcher) Drain(ctx context.Context, entries []*models.OutboxEntry) models.SideEffectReport {
	var report models.SideEffectReport
	if len(entries) == 0 {
		return report
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.InlineTimeout)
	defer cancel()

	for _, e := range entries {
		err := d.deliver(ctx, e)
		if err != nil && !errors.Is(err, errSkipped) {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", adapterFor(e.Kind), err))
			continue
		}
		if errors.Is(err, errSkipped) {
			continue
		}
		switch e.Kind {
		case models.OutboxCalendarCreate, models.OutboxCalendarUpdate:
			report.CalendarSynced = true
		case models.OutboxCalendarDelete:
			report.CalendarCancelled = true
		case models.OutboxEmailConfirmation:
			report.EmailSent = true
		case models.OutboxAudit:
			report.AuditLogged = true
		}
	}
	return report
}

// Run polls for due rows until ctx ends
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	log.Printf("[Dispatcher] worker started (poll=%s batch=%d)", d.cfg.PollInterval, d.cfg.BatchSize)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Dispatcher] worker stopped")
			return
		case <-ticker.C:
			if n, err := d.RunOnce(ctx); err != nil {
				log.Printf("[Dispatcher] poll failed: %v", err)
			} else if n > 0 {
				log.Printf("[Dispatcher] delivered %d outbox rows", n)
			}
		}
	}
}

// RunOnce claims and delivers one batch, returning how many rows it handled
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	entries, err := d.Outbox.ClaimDue(ctx, d.now(), d.cfg.BatchSize, d.cfg.Lease)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		_ = d.deliver(ctx, e)
	}
	if pending, err := d.Outbox.CountPending(ctx); err == nil {
		metrics.OutboxBacklog.Set(float64(pending))
	}
	return len(entries), nil
}

// deliver makes one attempt and records the outcome on the row
func (d *Dispatcher) deliver(ctx context.Context, e *models.OutboxEntry) error {
	attempts := e.Attempts + 1
	err := d.execute(ctx, e)
	now := d.now()

	switch {
	case err == nil || errors.Is(err, errSkipped):
		result := "ok"
		if err != nil {
			result = "skipped"
		}
		metrics.SideEffectsTotal.WithLabelValues(e.Kind, result).Inc()
		if markErr := d.Outbox.MarkDone(ctx, e.ID, attempts, now); markErr != nil {
			log.Printf("[Dispatcher] lead %d %s: failed to mark done: %v", e.LeadID, e.Kind, markErr)
		}
		return err

	case attempts >= e.MaxAttempts:
		metrics.SideEffectsTotal.WithLabelValues(e.Kind, "failed").Inc()
		log.Printf("[Dispatcher] lead %d %s (%s) gave up after %d attempts: %v",
			e.LeadID, e.Kind, adapterFor(e.Kind), attempts, err)
		if markErr := d.Outbox.MarkFailed(ctx, e.ID, attempts, err.Error()); markErr != nil {
			log.Printf("[Dispatcher] lead %d %s: failed to mark failed: %v", e.LeadID, e.Kind, markErr)
		}

	default:
		metrics.SideEffectsTotal.WithLabelValues(e.Kind, "retry").Inc()
		next := now.Add(d.backoff(attempts))
		log.Printf("[Dispatcher] lead %d %s (%s) attempt %d failed, retry at %s: %v",
			e.LeadID, e.Kind, adapterFor(e.Kind), attempts, next.Format(time.RFC3339), err)
		if markErr := d.Outbox.MarkRetry(ctx, e.ID, attempts, err.Error(), next); markErr != nil {
			log.Printf("[Dispatcher] lead %d %s: failed to schedule retry: %v", e.LeadID, e.Kind, markErr)
		}
	}
	return err
}

func (d *Dispatcher) backoff(attempts int) time.Duration {
	wait := d.cfg.BaseBackoff
	for i := 1; i < attempts; i++ {
		wait *= 2
		if wait >= d.cfg.MaxBackoff {
			return d.cfg.MaxBackoff
		}
	}
	return wait
}

func (d *Dispatcher) execute(ctx context.Context, e *models.OutboxEntry) error {
	var payload models.OutboxPayload
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
	}

	lead, err := d.Leads.Get(ctx, e.LeadID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return errSkipped
		}
		return err
	}

	switch e.Kind {
	case models.OutboxCalendarCreate, models.OutboxCalendarUpdate:
		return d.syncCalendar(ctx, lead)
	case models.OutboxCalendarDelete:
		return d.cancelCalendar(ctx, lead, payload.EventID)
	case models.OutboxEmailConfirmation:
		return d.sendConfirmation(ctx, lead)
	case models.OutboxAudit:
		return d.appendAudit(ctx, lead, payload.Action)
	}
	return fmt.Errorf("unknown outbox kind %q", e.Kind)
}

// syncCalendar creates the event, or updates it when the lead already has
// one, and stores the provider's id on the lead.
func (d *Dispatcher) syncCalendar(ctx context.Context, lead *models.Lead) error {
	if lead.IsDeleted || lead.Status != models.StatusAppointmentSet || lead.AppointmentDate == nil {
		return errSkipped
	}
	spec, err := calendar.BuildEvent(lead)
	if err != nil {
		return err
	}

	var eventID string
	if lead.CalendarEventID != "" {
		eventID, err = d.Calendar.Update(ctx, lead.CalendarEventID, spec)
	} else {
		eventID, err = d.Calendar.Create(ctx, spec)
	}
	if err != nil {
		return err
	}
	if eventID == lead.CalendarEventID {
		return nil
	}

	ok, err := d.Leads.SetCalendarEventID(ctx, lead.ID, lead.CalendarEventID, eventID)
	if err != nil {
		return err
	}
	if !ok {
		// another delivery got there first; ours is surplus
		log.Printf("[Calendar] lead %d event id changed underneath us, removing %s", lead.ID, eventID)
		if delErr := d.Calendar.Delete(ctx, eventID); delErr != nil {
			log.Printf("[Calendar] lead %d failed to remove surplus event %s: %v", lead.ID, eventID, delErr)
		}
	}
	return nil
}

func (d *Dispatcher) cancelCalendar(ctx context.Context, lead *models.Lead, eventID string) error {
	if eventID == "" {
		return errSkipped
	}
	if lead.Status == models.StatusAppointmentSet && lead.CalendarEventID == eventID && !lead.IsDeleted {
		// the lead was booked again onto this event
		return errSkipped
	}
	if err := d.Calendar.Delete(ctx, eventID); err != nil {
		return err
	}
	if _, err := d.Leads.SetCalendarEventID(ctx, lead.ID, eventID, ""); err != nil {
		log.Printf("[Calendar] lead %d event %s cancelled but id not cleared: %v", lead.ID, eventID, err)
	}
	return nil
}

func (d *Dispatcher) sendConfirmation(ctx context.Context, lead *models.Lead) error {
	if lead.IsDeleted || lead.Email == "" || lead.AppointmentDate == nil || lead.Status != models.StatusAppointmentSet {
		return errSkipped
	}
	spec, err := calendar.BuildEvent(lead)
	if err != nil {
		return err
	}
	uid := fmt.Sprintf("lead-%d-%d@leads-backend", lead.ID, lead.AppointmentDate.Unix())
	invite := calendar.Invite(spec, uid, d.Mailer.From(), d.now())

	msg := mailer.Message{
		To:      lead.Email,
		Subject: "Your solar appointment on " + timeutil.FormatLondon(*lead.AppointmentDate, "Monday 2 January 2006"),
		Body:    d.confirmationBody(ctx, lead),
		Attachments: []mailer.Attachment{{
			Filename:    "appointment.ics",
			ContentType: "text/calendar; method=REQUEST; charset=UTF-8",
			Data:        []byte(invite),
		}},
	}
	return d.Mailer.Send(ctx, msg)
}

func (d *Dispatcher) confirmationBody(ctx context.Context, lead *models.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", lead.DisplayName())
	fmt.Fprintf(&b, "Your solar survey appointment is booked for %s (UK time).\n\n",
		timeutil.FormatLondon(*lead.AppointmentDate, "Monday 2 January 2006 at 15:04"))
	if addr := lead.Address(); addr != "" {
		fmt.Fprintf(&b, "Property: %s", addr)
		if lead.City != "" {
			fmt.Fprintf(&b, ", %s", lead.City)
		}
		if lead.PostalCode != "" {
			fmt.Fprintf(&b, " %s", lead.PostalCode)
		}
		b.WriteString("\n")
	}
	if lead.SalesRepName != "" {
		fmt.Fprintf(&b, "Your surveyor: %s\n", lead.SalesRepName)
	}

	contact := lead.AgentName
	if lead.OwningAgentID != nil && d.Principals != nil {
		if p, err := d.Principals.Get(ctx, *lead.OwningAgentID); err == nil {
			contact = p.Name
			if p.Phone != "" {
				contact += " (" + p.Phone + ")"
			} else if p.Email != "" {
				contact += " (" + p.Email + ")"
			}
		}
	}
	if contact != "" {
		fmt.Fprintf(&b, "Your contact: %s\n", contact)
	}
	fmt.Fprintf(&b, "\nReference: %s\n", lead.LeadNumber)
	b.WriteString("\nA calendar invite is attached. Reply to this email if you need to change the time.\n")
	return b.String()
}

func (d *Dispatcher) appendAudit(ctx context.Context, lead *models.Lead, action string) error {
	if action == "" {
		return errSkipped
	}
	if lead.IsDeleted && action != models.AuditDeleted {
		return errSkipped
	}
	return d.Audit.Write(ctx, models.NewAuditRow(lead, action, d.now()))
}

func adapterFor(kind string) string {
	switch kind {
	case models.OutboxCalendarCreate, models.OutboxCalendarUpdate, models.OutboxCalendarDelete:
		return "calendar"
	case models.OutboxEmailConfirmation:
		return "email"
	case models.OutboxAudit:
		return "audit"
	}
	return kind
}
