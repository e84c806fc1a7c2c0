package storetest

import (
	"context"
	"sort"
	"time"

	"leads-backend/internal/apperr"
	"leads-backend/internal/models"
)

type Notifications struct{ db *DB }

func (s *Notifications) Create(ctx context.Context, n *models.Notification) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.leads[n.LeadID]; !ok {
		return apperr.Validation("lead_id", "lead does not exist")
	}
	s.db.nextNotification++
	n.ID = s.db.nextNotification
	stamp(&n.CreatedAt)
	c := *n
	s.db.notifications[n.ID] = &c
	return nil
}

func (s *Notifications) ListForRecipient(ctx context.Context, recipientID int, unreadOnly bool) ([]*models.Notification, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*models.Notification
	for _, n := range s.db.notifications {
		if n.RecipientID != recipientID || (unreadOnly && n.IsRead) {
			continue
		}
		c := *n
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Notifications) CountUnread(ctx context.Context, recipientID int) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, nt := range s.db.notifications {
		if nt.RecipientID == recipientID && !nt.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *Notifications) MarkRead(ctx context.Context, id, recipientID int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n, ok := s.db.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return apperr.NotFound("notification", id)
	}
	n.IsRead = true
	return nil
}

func (s *Notifications) MarkAllRead(ctx context.Context, recipientID int) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	count := 0
	for _, n := range s.db.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (s *Notifications) Delete(ctx context.Context, id, recipientID int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n, ok := s.db.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return apperr.NotFound("notification", id)
	}
	delete(s.db.notifications, id)
	return nil
}

type Callbacks struct{ db *DB }

func (s *Callbacks) Get(ctx context.Context, id int) (*models.Callback, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cb, ok := s.db.callbacks[id]
	if !ok {
		return nil, apperr.NotFound("callback", id)
	}
	return s.db.readCallback(cb), nil
}

func (s *Callbacks) ListForAgent(ctx context.Context, agentID int, statuses []string) ([]*models.Callback, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*models.Callback
	for _, cb := range s.db.callbacks {
		if cb.AgentID != agentID {
			continue
		}
		if len(statuses) > 0 && !containsString(statuses, cb.Status) {
			continue
		}
		out = append(out, s.db.readCallback(cb))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	return out, nil
}

func (s *Callbacks) UpdateStatus(ctx context.Context, id int, status, notes string, completedAt *time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cb, ok := s.db.callbacks[id]
	if !ok {
		return apperr.NotFound("callback", id)
	}
	cb.Status = status
	if notes != "" {
		cb.Notes = notes
	}
	cb.CompletedAt = completedAt
	cb.UpdatedAt = time.Now()
	return nil
}

func (db *DB) readCallback(cb *models.Callback) *models.Callback {
	c := *cb
	if l, ok := db.leads[cb.LeadID]; ok {
		c.LeadName = l.DisplayName()
	}
	return &c
}

type Outbox struct{ db *DB }

func (s *Outbox) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.OutboxEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*models.OutboxEntry
	for _, id := range s.db.outboxOrder {
		e, ok := s.db.outbox[id]
		if !ok || e.Status != models.OutboxPending || e.NextAttemptAt.After(now) {
			continue
		}
		e.NextAttemptAt = now.Add(lease)
		out = append(out, cloneOutbox(e))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Outbox) MarkDone(ctx context.Context, id string, attempts int, at time.Time) error {
	return s.set(id, func(e *models.OutboxEntry) {
		e.Status = models.OutboxDone
		e.Attempts = attempts
		e.LastError = ""
		e.DoneAt = &at
	})
}

func (s *Outbox) MarkRetry(ctx context.Context, id string, attempts int, lastErr string, next time.Time) error {
	return s.set(id, func(e *models.OutboxEntry) {
		e.Attempts = attempts
		e.LastError = lastErr
		e.NextAttemptAt = next
	})
}

func (s *Outbox) MarkFailed(ctx context.Context, id string, attempts int, lastErr string) error {
	return s.set(id, func(e *models.OutboxEntry) {
		e.Status = models.OutboxFailed
		e.Attempts = attempts
		e.LastError = lastErr
	})
}

func (s *Outbox) CountPending(ctx context.Context) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, e := range s.db.outbox {
		if e.Status == models.OutboxPending {
			n++
		}
	}
	return n, nil
}

func (s *Outbox) set(id string, fn func(e *models.OutboxEntry)) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	e, ok := s.db.outbox[id]
	if !ok {
		return apperr.NotFound("outbox entry", id)
	}
	fn(e)
	return nil
}

type FieldSubmissions struct{ db *DB }

func (s *FieldSubmissions) Get(ctx context.Context, id int) (*models.FieldSubmission, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	fs, ok := s.db.submissions[id]
	if !ok {
		return nil, apperr.NotFound("field submission", id)
	}
	return s.db.readSubmission(fs), nil
}

func (s *FieldSubmissions) List(ctx context.Context, canvasserID *int) ([]*models.FieldSubmission, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*models.FieldSubmission
	for _, fs := range s.db.submissions {
		if canvasserID != nil && fs.CanvasserID != *canvasserID {
			continue
		}
		out = append(out, s.db.readSubmission(fs))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *FieldSubmissions) UpdateReview(ctx context.Context, fs *models.FieldSubmission) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	existing, ok := s.db.submissions[fs.ID]
	if !ok {
		return apperr.NotFound("field submission", fs.ID)
	}
	existing.ReviewStatus = fs.ReviewStatus
	existing.ReviewerID = fs.ReviewerID
	existing.ReviewedAt = fs.ReviewedAt
	existing.ReviewerNotes = fs.ReviewerNotes
	existing.UpdatedAt = time.Now()
	return nil
}

func (db *DB) readSubmission(fs *models.FieldSubmission) *models.FieldSubmission {
	c := *fs
	if p, ok := db.principals[fs.CanvasserID]; ok {
		c.CanvasserName = p.Name
	}
	return &c
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
