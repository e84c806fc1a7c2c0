package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"leads-backend/internal/apperr"
	"leads-backend/internal/lifecycle"
	"leads-backend/internal/metrics"
	"leads-backend/internal/models"
	"leads-backend/internal/notes"
	"leads-backend/internal/visibility"
)

const (
	maxStaleRetries  = 3
	maxNumberRetries = 5
	defaultListLimit = 100
	maxListLimit     = 500
)

// LeadService is the only writer of lead rows. Every change is a
// read-modify-write guarded by the row version; side effects are written to
// the outbox in the same transaction and drained after commit.
type LeadService struct {
	Leads         LeadStore
	Principals    PrincipalStore
	Dialer        *DialerService
	Dispatcher    *Dispatcher
	Notifications *NotificationService
	Retention     time.Duration

	now func() time.Time
}

func NewLeadService(leads LeadStore, principals PrincipalStore, dialer *DialerService,
	dispatcher *Dispatcher, notifications *NotificationService, retention time.Duration) *LeadService {
	return &LeadService{
		Leads:         leads,
		Principals:    principals,
		Dialer:        dialer,
		Dispatcher:    dispatcher,
		Notifications: notifications,
		Retention:     retention,
		now:           time.Now,
	}
}

// change is what an edit asks the transaction to write besides the row
type change struct {
	op         lifecycle.Operation
	plan       lifecycle.Plan
	reason     string
	notify     []*models.Notification
	callback   *models.Callback
	submission *models.FieldSubmission
	unlink     bool
}

// edit stages a change on after, a private copy of before. Returning a nil
// change means there is nothing to write.
type edit func(before, after *models.Lead) (*change, error)

func (s *LeadService) mutate(ctx context.Context, actor models.Actor, id int, fn edit) (*models.TransitionResult, error) {
	for attempt := 1; ; attempt++ {
		before, err := s.Leads.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if before.IsDeleted && actor.Role != models.RoleAdmin {
			return nil, apperr.NotFound("lead", id)
		}

		after := before.Clone()
		c, err := fn(before, after)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return &models.TransitionResult{Lead: before}, nil
		}

		if before.Status == models.StatusAppointmentSet && after.Status != models.StatusAppointmentSet {
			// the delete row keeps the old id; a rebooking gets a fresh event
			after.CalendarEventID = ""
		}

		now := s.now()
		after.UpdatedAt = now
		if err := lifecycle.CheckInvariants(after); err != nil {
			return nil, err
		}

		m := s.mutation(actor, c, before, after, now)
		err = s.Leads.Update(ctx, m)
		if errors.Is(err, apperr.ErrStale) {
			if attempt < maxStaleRetries {
				continue
			}
			return nil, apperr.Internal(fmt.Sprintf("lead %d kept changing during %s", id, c.op), err)
		}
		if err != nil {
			return nil, err
		}
		return s.committed(ctx, c, m), nil
	}
}

// create inserts a fully populated lead, retrying lead-number collisions
func (s *LeadService) create(ctx context.Context, actor models.Actor, lead *models.Lead, prefix string, c *change) (*models.TransitionResult, error) {
	lead.Phone = models.NormalizePhone(lead.Phone)
	if err := s.ensureUnique(ctx, lead); err != nil {
		return nil, err
	}

	now := s.now()
	lead.CreatedAt, lead.UpdatedAt = now, now
	if err := lifecycle.CheckInvariants(lead); err != nil {
		return nil, err
	}
	c.plan = lifecycle.PlanEffects(c.op, nil, lead)

	for attempt := 1; attempt <= maxNumberRetries; attempt++ {
		m := s.mutation(actor, c, nil, lead, now)
		m.NumberPrefix = prefix
		err := s.Leads.Create(ctx, m)
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Kind == apperr.KindDuplicateKey && ae.Field == "lead_number" {
			log.Printf("[Leads] lead number collision in %s, retrying (%d/%d)", prefix, attempt, maxNumberRetries)
			continue
		}
		if err != nil {
			return nil, err
		}
		return s.committed(ctx, c, m), nil
	}
	return nil, apperr.Internal("could not allocate a lead number in "+prefix, nil)
}

// ensureUnique names the existing row, soft-deleted or not, before the
// insert. The store constraint still decides races.
func (s *LeadService) ensureUnique(ctx context.Context, lead *models.Lead) error {
	existing, err := s.Leads.GetByPhone(ctx, lead.Phone)
	switch {
	case err == nil:
		if existing.IsDeleted {
			log.Printf("[Leads] phone %s belongs to deleted lead %d; restore it instead", lead.Phone, existing.ID)
		}
		return apperr.DuplicateKey("phone", existing.ID, existing.DisplayName())
	case !errors.Is(err, apperr.ErrNotFound):
		return err
	}
	if lead.DialerLeadID != nil {
		existing, err := s.Leads.GetByDialerLeadID(ctx, *lead.DialerLeadID)
		switch {
		case err == nil:
			return apperr.DuplicateKey("dialer_lead_id", existing.ID, existing.DisplayName())
		case !errors.Is(err, apperr.ErrNotFound):
			return err
		}
	}
	return nil
}

func (s *LeadService) mutation(actor models.Actor, c *change, before, after *models.Lead, now time.Time) *models.LeadMutation {
	m := &models.LeadMutation{
		Lead:             after,
		Notifications:    c.notify,
		Callback:         c.callback,
		FieldSubmission:  c.submission,
		UnlinkSubmission: c.unlink,
	}
	from := ""
	if before != nil {
		from = before.Status
	}
	if before == nil || from != after.Status || c.op == lifecycle.OpSoftDelete || c.op == lifecycle.OpRestore {
		m.StatusChange = &models.LeadStatusChange{
			FromStatus: from,
			ToStatus:   after.Status,
			Operation:  string(c.op),
			ActorID:    actorRef(actor),
			Reason:     c.reason,
			CreatedAt:  now,
		}
	}
	if s.Dispatcher != nil {
		m.Outbox = s.Dispatcher.Entries(c.plan, before, now)
	}
	return m
}

// committed runs everything that happens after the transaction: metrics,
// live push and the inline outbox drain.
func (s *LeadService) committed(ctx context.Context, c *change, m *models.LeadMutation) *models.TransitionResult {
	if sc := m.StatusChange; sc != nil && sc.FromStatus != sc.ToStatus {
		metrics.LeadTransitionsTotal.WithLabelValues(string(c.op), sc.ToStatus).Inc()
	}
	s.Notifications.Publish(m.Notifications)

	var report models.SideEffectReport
	if s.Dispatcher != nil {
		report = s.Dispatcher.Drain(ctx, m.Outbox)
	}
	report.NotificationCreated = len(m.Notifications) > 0

	lead := m.Lead
	if report.CalendarSynced || report.CalendarCancelled {
		if fresh, err := s.Leads.Get(context.WithoutCancel(ctx), lead.ID); err == nil {
			lead = fresh
		}
	}
	return &models.TransitionResult{Lead: lead, SideEffects: report}
}

func actorRef(actor models.Actor) *int {
	if actor.ID == 0 {
		return nil
	}
	id := actor.ID
	return &id
}

// Create adds a lead by hand. Agents always own what they create.
func (s *LeadService) Create(ctx context.Context, actor models.Actor, req *models.CreateLeadRequest) (*models.TransitionResult, error) {
	switch actor.Role {
	case models.RoleAdmin, models.RoleAgent, models.RoleStaff4dshire:
	default:
		return nil, apperr.Forbidden(fmt.Sprintf("role %s may not create leads", actor.Role))
	}
	if models.NormalizePhone(req.Phone) == "" {
		return nil, apperr.Validation("phone", "required")
	}

	status := req.Status
	if status == "" {
		status = models.StatusColdCall
	}
	if actor.Role != models.RoleAdmin && status != models.StatusColdCall && status != models.StatusInterested {
		return nil, apperr.Validation("status", "new leads start as cold_call or interested")
	}

	lead := leadFromRequest(req, status, models.SourceManual)
	lead.CreatedByID = actorRef(actor)

	owner := req.OwningAgent
	if actor.Role == models.RoleAgent {
		owner = &actor.ID
	}
	if owner != nil {
		if err := s.assignAgent(ctx, lead, *owner); err != nil {
			return nil, err
		}
	}

	return s.create(ctx, actor, lead, models.LeadPrefixManual, &change{op: lifecycle.OpCreate})
}

// leadFromRequest builds an unsaved lead from a hand-entered or imported
// record
func leadFromRequest(req *models.CreateLeadRequest, status, source string) *models.Lead {
	lead := &models.Lead{
		Phone:        req.Phone,
		Email:        strings.TrimSpace(req.Email),
		FullName:     strings.TrimSpace(req.FullName),
		Title:        strings.TrimSpace(req.Title),
		FirstName:    strings.TrimSpace(req.FirstName),
		MiddleName:   strings.TrimSpace(req.MiddleName),
		LastName:     strings.TrimSpace(req.LastName),
		AddressLine1: strings.TrimSpace(req.AddressLine1),
		AddressLine2: strings.TrimSpace(req.AddressLine2),
		AddressLine3: strings.TrimSpace(req.AddressLine3),
		City:         strings.TrimSpace(req.City),
		PostalCode:   strings.TrimSpace(req.PostalCode),
		Country:      strings.TrimSpace(req.Country),
		Status:       status,
		Source:       source,
	}
	if lead.FullName == "" {
		lead.FullName = models.JoinName(lead.FirstName, lead.MiddleName, lead.LastName)
	}
	if req.Survey != nil {
		lead.Survey = *req.Survey
	}
	if req.Energy != nil {
		lead.Energy = *req.Energy
	}
	lead.Notes = notes.Rebuild(lead, req.Notes)
	return lead
}

// assignAgent sets the owning agent and the preserved display name
func (s *LeadService) assignAgent(ctx context.Context, l *models.Lead, principalID int) error {
	p, err := s.Principals.Get(ctx, principalID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Validation("owning_agent_id", fmt.Sprintf("principal %d does not exist", principalID))
		}
		return err
	}
	if !p.IsActive {
		return apperr.Validation("owning_agent_id", fmt.Sprintf("principal %d is retired", principalID))
	}
	l.OwningAgentID = &p.ID
	l.AgentName = p.Name
	return nil
}

func (s *LeadService) assignSalesRep(ctx context.Context, l *models.Lead, principalID int) error {
	p, err := s.Principals.Get(ctx, principalID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Validation("field_sales_rep_id", fmt.Sprintf("principal %d does not exist", principalID))
		}
		return err
	}
	if p.Role != models.RoleSalesRep || !p.IsActive {
		return apperr.Validation("field_sales_rep_id", fmt.Sprintf("principal %d is not an active salesrep", principalID))
	}
	l.FieldSalesRepID = &p.ID
	l.SalesRepName = p.Name
	return nil
}

// Get returns a lead the actor may see. Anything else is NotFound.
func (s *LeadService) Get(ctx context.Context, actor models.Actor, id int) (*models.Lead, error) {
	l, err := s.Leads.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visibility.CanRead(actor, l) {
		return nil, apperr.NotFound("lead", id)
	}
	return l, nil
}

// List applies the actor's scope to q and returns one page plus the total
func (s *LeadService) List(ctx context.Context, actor models.Actor, q models.LeadQuery) ([]*models.Lead, int, error) {
	if q.OrderBy != "" {
		if _, ok := models.LeadOrderings[strings.TrimPrefix(q.OrderBy, "-")]; !ok {
			return nil, 0, apperr.Validation("ordering", fmt.Sprintf("cannot order by %q", q.OrderBy))
		}
	}
	for _, st := range q.Statuses {
		if !models.ValidStatus(st) {
			return nil, 0, apperr.Validation("status", fmt.Sprintf("unknown status %q", st))
		}
	}
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}
	if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}

	q = visibility.Scope(actor, q)
	if q.Empty {
		return []*models.Lead{}, 0, nil
	}
	leads, err := s.Leads.List(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Leads.Count(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	if leads == nil {
		leads = []*models.Lead{}
	}
	return leads, total, nil
}

// ColdCallList is the agent's queue, empty while the dialer is switched off
func (s *LeadService) ColdCallList(ctx context.Context, actor models.Actor) ([]*models.Lead, error) {
	if actor.Role != models.RoleAgent && actor.Role != models.RoleAdmin {
		return nil, apperr.Forbidden("only agents have a cold-call queue")
	}
	active, err := s.Dialer.IsActive(ctx)
	if err != nil {
		return nil, err
	}
	if !active {
		return []*models.Lead{}, nil
	}
	q := models.LeadQuery{Statuses: []string{models.StatusColdCall}, OrderBy: "created_at", Limit: maxListLimit}
	if actor.Role == models.RoleAgent {
		q.OwningAgentID = &actor.ID
	}
	leads, err := s.Leads.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if leads == nil {
		leads = []*models.Lead{}
	}
	return leads, nil
}

// Update applies a partial edit. Status never changes here.
func (s *LeadService) Update(ctx context.Context, actor models.Actor, id int, req *models.UpdateLeadRequest) (*models.TransitionResult, error) {
	return s.mutate(ctx, actor, id, func(before, after *models.Lead) (*change, error) {
		if !visibility.CanMutate(actor, before) {
			if visibility.CanRead(actor, before) {
				return nil, apperr.Forbidden("you may not edit this lead")
			}
			return nil, apperr.NotFound("lead", id)
		}
		if before.IsDeleted {
			return nil, apperr.TransitionRejected(before.Status, before.Status, "lead is deleted; restore it first")
		}

		set(&after.Email, req.Email)
		set(&after.FullName, req.FullName)
		set(&after.FirstName, req.FirstName)
		set(&after.LastName, req.LastName)
		set(&after.AddressLine1, req.AddressLine1)
		set(&after.AddressLine2, req.AddressLine2)
		set(&after.AddressLine3, req.AddressLine3)
		set(&after.City, req.City)
		set(&after.PostalCode, req.PostalCode)
		set(&after.Country, req.Country)
		if req.FullName == nil && (req.FirstName != nil || req.LastName != nil) {
			after.FullName = models.JoinName(after.FirstName, after.MiddleName, after.LastName)
		}
		if req.Survey != nil {
			after.Survey = *req.Survey
		}
		if req.Energy != nil {
			after.Energy = *req.Energy
		}
		free, _ := notes.Split(before.Notes)
		if req.Notes != nil {
			free = *req.Notes
		}
		after.Notes = notes.Rebuild(after, free)

		if req.OwningAgentID != nil && !before.IsOwnedBy(*req.OwningAgentID) {
			if actor.Role != models.RoleAdmin {
				return nil, apperr.Forbidden("only an admin can reassign a lead")
			}
			if err := s.assignAgent(ctx, after, *req.OwningAgentID); err != nil {
				return nil, err
			}
		}
		if req.FieldSalesRepID != nil {
			if actor.Role != models.RoleAdmin && actor.Role != models.RoleQualifier {
				return nil, apperr.Forbidden("only a qualifier or admin can assign a salesrep")
			}
			if err := s.assignSalesRep(ctx, after, *req.FieldSalesRepID); err != nil {
				return nil, err
			}
		}

		if sameRecord(before, after) {
			return nil, nil
		}
		return &change{op: lifecycle.OpUpdate, plan: lifecycle.PlanEffects(lifecycle.OpUpdate, before, after)}, nil
	})
}

// SoftDelete hides a lead from default reads. Its phone stays reserved.
func (s *LeadService) SoftDelete(ctx context.Context, actor models.Actor, id int, reason string) (*models.TransitionResult, error) {
	if actor.Role != models.RoleAdmin {
		return nil, apperr.Forbidden("only an admin can delete leads")
	}
	return s.mutate(ctx, actor, id, func(before, after *models.Lead) (*change, error) {
		if before.IsDeleted {
			return nil, apperr.TransitionRejected(before.Status, before.Status, "lead is already deleted")
		}
		now := s.now()
		after.IsDeleted = true
		after.DeletedAt = &now
		after.DeletedByID = actorRef(actor)
		after.DeletionReason = strings.TrimSpace(reason)
		return &change{
			op:     lifecycle.OpSoftDelete,
			plan:   lifecycle.PlanSoftDelete(),
			reason: after.DeletionReason,
			unlink: true,
		}, nil
	})
}

// Restore brings a soft-deleted lead back with every field intact
func (s *LeadService) Restore(ctx context.Context, actor models.Actor, id int) (*models.TransitionResult, error) {
	if actor.Role != models.RoleAdmin {
		return nil, apperr.Forbidden("only an admin can restore leads")
	}
	return s.mutate(ctx, actor, id, func(before, after *models.Lead) (*change, error) {
		if !before.IsDeleted {
			return nil, apperr.TransitionRejected(before.Status, before.Status, "lead is not deleted")
		}
		after.IsDeleted = false
		after.DeletedAt = nil
		after.DeletedByID = nil
		after.DeletionReason = ""
		return &change{op: lifecycle.OpRestore, plan: lifecycle.PlanRestore()}, nil
	})
}

// HardDeleteExpired purges leads soft-deleted longer than olderThan ago
// (the configured retention when zero), cascading to their inbox rows,
// callbacks and history.
func (s *LeadService) HardDeleteExpired(ctx context.Context, actor models.Actor, olderThan time.Duration) (int, error) {
	if actor.Role != models.RoleAdmin {
		return 0, apperr.Forbidden("only an admin can purge leads")
	}
	if olderThan <= 0 {
		olderThan = s.Retention
	}
	cutoff := s.now().Add(-olderThan)
	n, err := s.Leads.HardDeleteExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	log.Printf("[Leads] purged %d leads deleted before %s", n, cutoff.Format(time.RFC3339))
	return n, nil
}

func (s *LeadService) History(ctx context.Context, actor models.Actor, id int) ([]*models.LeadStatusChange, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	h, err := s.Leads.History(ctx, id)
	if err != nil {
		return nil, err
	}
	if h == nil {
		h = []*models.LeadStatusChange{}
	}
	return h, nil
}

func (s *LeadService) Stats(ctx context.Context) (*models.LeadStats, error) {
	st, err := s.Leads.Stats(ctx)
	if err != nil {
		return nil, err
	}
	metrics.OutboxBacklog.Set(float64(st.OutboxBacklog))
	return st, nil
}

// sameRecord compares two versions of a lead ignoring bookkeeping
func sameRecord(a, b *models.Lead) bool {
	x, y := a.Clone(), b.Clone()
	y.UpdatedAt, y.Version = x.UpdatedAt, x.Version
	return reflect.DeepEqual(x, y)
}
