package storetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"leads-backend/internal/apperr"
	"leads-backend/internal/models"
)

type Leads struct{ db *DB }

func (s *Leads) Get(ctx context.Context, id int) (*models.Lead, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	l, ok := s.db.leads[id]
	if !ok {
		return nil, apperr.NotFound("lead", id)
	}
	return s.db.readLead(l), nil
}

func (s *Leads) GetByPhone(ctx context.Context, phone string) (*models.Lead, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	phone = models.NormalizePhone(phone)
	for _, l := range s.db.leads {
		if l.Phone == phone {
			return s.db.readLead(l), nil
		}
	}
	return nil, apperr.NotFound("lead with phone", phone)
}

func (s *Leads) GetByDialerLeadID(ctx context.Context, dialerLeadID string) (*models.Lead, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, l := range s.db.leads {
		if l.DialerLeadID != nil && *l.DialerLeadID == dialerLeadID {
			return s.db.readLead(l), nil
		}
	}
	return nil, apperr.NotFound("lead with dialer id", dialerLeadID)
}

func (s *Leads) List(ctx context.Context, q models.LeadQuery) ([]*models.Lead, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := s.db.matching(q)
	sortLeads(out, q.OrderBy)
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Leads) Count(ctx context.Context, q models.LeadQuery) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return len(s.db.matching(q)), nil
}

func (s *Leads) Create(ctx context.Context, m *models.LeadMutation) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.LeadWriteErr != nil {
		return s.db.LeadWriteErr
	}
	l := m.Lead
	l.Phone = models.NormalizePhone(l.Phone)
	if err := s.db.checkLead(l, 0); err != nil {
		return err
	}

	prefix := m.NumberPrefix
	if prefix == "" {
		prefix = models.LeadPrefixManual
	}
	s.db.sequences[prefix]++
	l.LeadNumber = fmt.Sprintf("%s%03d", prefix, s.db.sequences[prefix])
	for _, e := range s.db.leads {
		if e.LeadNumber == l.LeadNumber {
			return apperr.DuplicateKey("lead_number", e.ID, e.DisplayName())
		}
	}

	s.db.nextLead++
	l.ID = s.db.nextLead
	l.Version = 1
	stamp(&l.CreatedAt)
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = l.CreatedAt
	}
	s.db.leads[l.ID] = l.Clone()
	s.db.applyOwned(l, m)
	l.FieldSubmissionID = s.db.submissionFor(l.ID)
	s.db.LeadWrites++
	return nil
}

func (s *Leads) Update(ctx context.Context, m *models.LeadMutation) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.LeadWriteErr != nil {
		return s.db.LeadWriteErr
	}
	l := m.Lead
	existing, ok := s.db.leads[l.ID]
	if !ok {
		return apperr.NotFound("lead", l.ID)
	}
	if existing.Version != l.Version {
		return apperr.ErrStale
	}
	l.Phone = models.NormalizePhone(l.Phone)
	l.LeadNumber = existing.LeadNumber
	if err := s.db.checkLead(l, l.ID); err != nil {
		return err
	}

	l.Version = existing.Version + 1
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = time.Now()
	}
	l.CreatedAt = existing.CreatedAt
	s.db.leads[l.ID] = l.Clone()
	if m.UnlinkSubmission {
		for _, fs := range s.db.submissions {
			if fs.LeadID != nil && *fs.LeadID == l.ID {
				fs.LeadID = nil
			}
		}
	}
	s.db.applyOwned(l, m)
	l.FieldSubmissionID = s.db.submissionFor(l.ID)
	s.db.LeadWrites++
	return nil
}

func (s *Leads) SetCalendarEventID(ctx context.Context, leadID int, expected, eventID string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	l, ok := s.db.leads[leadID]
	if !ok {
		return false, apperr.NotFound("lead", leadID)
	}
	if l.CalendarEventID != expected {
		return false, nil
	}
	l.CalendarEventID = eventID
	l.Version++
	return true, nil
}

func (s *Leads) HardDeleteExpired(ctx context.Context, deletedBefore time.Time) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for id, l := range s.db.leads {
		if !l.IsDeleted || l.DeletedAt == nil || !l.DeletedAt.Before(deletedBefore) {
			continue
		}
		delete(s.db.leads, id)
		for nid, nt := range s.db.notifications {
			if nt.LeadID == id {
				delete(s.db.notifications, nid)
			}
		}
		for cid, cb := range s.db.callbacks {
			if cb.LeadID == id {
				delete(s.db.callbacks, cid)
			}
		}
		for oid, e := range s.db.outbox {
			if e.LeadID == id {
				delete(s.db.outbox, oid)
			}
		}
		kept := s.db.history[:0]
		for _, h := range s.db.history {
			if h.LeadID != id {
				kept = append(kept, h)
			}
		}
		s.db.history = kept
		for _, fs := range s.db.submissions {
			if fs.LeadID != nil && *fs.LeadID == id {
				fs.LeadID = nil
			}
		}
		n++
	}
	return n, nil
}

func (s *Leads) History(ctx context.Context, leadID int) ([]*models.LeadStatusChange, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*models.LeadStatusChange
	for _, h := range s.db.history {
		if h.LeadID == leadID {
			c := *h
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *Leads) Stats(ctx context.Context) (*models.LeadStats, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	st := &models.LeadStats{ByStatus: map[string]int{}, ByAgent: map[string]int{}}
	for _, l := range s.db.leads {
		if l.IsDeleted {
			st.Deleted++
			continue
		}
		st.Total++
		st.ByStatus[l.Status]++
		name := l.AgentName
		if name == "" {
			name = "unassigned"
		}
		st.ByAgent[name]++
	}
	for _, e := range s.db.outbox {
		if e.Status == models.OutboxPending {
			st.OutboxBacklog++
		}
	}
	return st, nil
}

// checkLead mirrors the table's unique, check and foreign key constraints
func (db *DB) checkLead(l *models.Lead, selfID int) error {
	if l.Phone == "" {
		return apperr.Validation("phone", "required")
	}
	for _, e := range db.leads {
		if e.ID == selfID {
			continue
		}
		if e.Phone == l.Phone {
			return apperr.DuplicateKey("phone", e.ID, e.DisplayName())
		}
		if l.DialerLeadID != nil && e.DialerLeadID != nil && *e.DialerLeadID == *l.DialerLeadID {
			return apperr.DuplicateKey("dialer_lead_id", e.ID, e.DisplayName())
		}
	}
	switch l.Status {
	case models.StatusAppointmentSet, models.StatusAppointmentCompleted, models.StatusSaleMade, models.StatusSaleLost:
		if l.AppointmentDate == nil {
			return apperr.Validation("appointment_date", "violates leads_appointment_date_check")
		}
	}
	if l.Status == models.StatusSaleMade && (l.SaleAmount == nil || *l.SaleAmount < 0) {
		return apperr.Validation("sale_amount", "violates leads_sale_amount_check")
	}
	for _, ref := range []*int{l.OwningAgentID, l.FieldSalesRepID} {
		if ref == nil {
			continue
		}
		if _, ok := db.principals[*ref]; !ok {
			return apperr.Validation("principal", fmt.Sprintf("principal %d does not exist", *ref))
		}
	}
	return nil
}

// applyOwned writes the child rows of a mutation; caller holds the lock
func (db *DB) applyOwned(l *models.Lead, m *models.LeadMutation) {
	now := time.Now()
	if h := m.StatusChange; h != nil {
		db.nextHistory++
		h.ID = db.nextHistory
		h.LeadID = l.ID
		stamp(&h.CreatedAt)
		c := *h
		db.history = append(db.history, &c)
	}
	for _, n := range m.Notifications {
		db.nextNotification++
		n.ID = db.nextNotification
		n.LeadID = l.ID
		if n.LeadNumber == "" {
			n.LeadNumber = l.LeadNumber
		}
		stamp(&n.CreatedAt)
		c := *n
		db.notifications[n.ID] = &c
	}
	if cb := m.Callback; cb != nil {
		db.nextCallback++
		cb.ID = db.nextCallback
		cb.LeadID = l.ID
		if cb.Status == "" {
			cb.Status = models.CallbackScheduled
		}
		cb.CreatedAt, cb.UpdatedAt = now, now
		c := *cb
		db.callbacks[cb.ID] = &c
	}
	for _, e := range m.Outbox {
		e.LeadID = l.ID
		if e.Status == "" {
			e.Status = models.OutboxPending
		}
		stamp(&e.CreatedAt)
		db.outbox[e.ID] = cloneOutbox(e)
		db.outboxOrder = append(db.outboxOrder, e.ID)
	}
	if fs := m.FieldSubmission; fs != nil {
		id := l.ID
		if fs.ID == 0 {
			db.nextSubmission++
			fs.ID = db.nextSubmission
			fs.LeadID = &id
			if fs.ReviewStatus == "" {
				fs.ReviewStatus = models.ReviewPending
			}
			fs.CreatedAt, fs.UpdatedAt = now, now
			c := *fs
			db.submissions[fs.ID] = &c
		} else if existing, ok := db.submissions[fs.ID]; ok {
			review := *existing
			c := *fs
			c.ReviewStatus, c.ReviewerID, c.ReviewedAt, c.ReviewerNotes = review.ReviewStatus, review.ReviewerID, review.ReviewedAt, review.ReviewerNotes
			c.CreatedAt = review.CreatedAt
			c.UpdatedAt = now
			db.submissions[fs.ID] = &c
			*fs = c
		}
	}
}

func (db *DB) submissionFor(leadID int) *int {
	for _, fs := range db.submissions {
		if fs.LeadID != nil && *fs.LeadID == leadID {
			id := fs.ID
			return &id
		}
	}
	return nil
}

func (db *DB) readLead(l *models.Lead) *models.Lead {
	c := l.Clone()
	c.FieldSubmissionID = db.submissionFor(l.ID)
	return c
}

func (db *DB) matching(q models.LeadQuery) []*models.Lead {
	var out []*models.Lead
	for _, l := range db.leads {
		c := db.readLead(l)
		if q.Matches(c) {
			out = append(out, c)
		}
	}
	return out
}

func sortLeads(leads []*models.Lead, orderBy string) {
	desc := true
	key := "created_at"
	if orderBy != "" {
		desc = strings.HasPrefix(orderBy, "-")
		key = strings.TrimPrefix(orderBy, "-")
	}
	less := func(a, b *models.Lead) int {
		switch key {
		case "updated_at":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case "appointment_date":
			return compareTimePtr(a.AppointmentDate, b.AppointmentDate)
		case "full_name":
			return strings.Compare(a.FullName, b.FullName)
		case "lead_number":
			return strings.Compare(a.LeadNumber, b.LeadNumber)
		case "status":
			return strings.Compare(a.Status, b.Status)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(leads, func(i, j int) bool {
		c := less(leads[i], leads[j])
		if c == 0 {
			c = leads[i].ID - leads[j].ID
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Compare(*b)
}
