package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leads-backend/internal/apperr"
	"leads-backend/internal/models"
)

// DefaultDueWindow is how far ahead a scheduled callback counts as due
const DefaultDueWindow = 15 * time.Minute

type CallbackService struct {
	Store     CallbackStore
	Leads     *LeadService
	DueWindow time.Duration

	now func() time.Time
}

func NewCallbackService(store CallbackStore, leads *LeadService, dueWindow time.Duration) *CallbackService {
	if dueWindow <= 0 {
		dueWindow = DefaultDueWindow
	}
	return &CallbackService{Store: store, Leads: leads, DueWindow: dueWindow, now: time.Now}
}

// Create books a callback on one of the agent's leads
func (s *CallbackService) Create(ctx context.Context, actor models.Actor, req *models.CreateCallbackRequest) (*models.Callback, error) {
	if req.LeadID == 0 {
		return nil, apperr.Validation("lead_id", "required")
	}
	_, cb, err := s.Leads.ScheduleCallback(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	cb.Evaluate(s.now(), s.DueWindow)
	return cb, nil
}

// Scheduled lists the caller's open callbacks, soonest first
func (s *CallbackService) Scheduled(ctx context.Context, actor models.Actor) ([]*models.Callback, error) {
	return s.list(ctx, actor, func(cb *models.Callback) bool { return true })
}

// Due lists callbacks inside the window or already overdue
func (s *CallbackService) Due(ctx context.Context, actor models.Actor) ([]*models.Callback, error) {
	return s.list(ctx, actor, func(cb *models.Callback) bool { return cb.Due || cb.Overdue })
}

// Upcoming lists scheduled callbacks that are not yet due
func (s *CallbackService) Upcoming(ctx context.Context, actor models.Actor) ([]*models.Callback, error) {
	return s.list(ctx, actor, func(cb *models.Callback) bool { return !cb.Due && !cb.Overdue })
}

func (s *CallbackService) list(ctx context.Context, actor models.Actor, keep func(*models.Callback) bool) ([]*models.Callback, error) {
	all, err := s.Store.ListForAgent(ctx, actor.ID, []string{models.CallbackScheduled})
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]*models.Callback, 0, len(all))
	for _, cb := range all {
		cb.Evaluate(now, s.DueWindow)
		if keep(cb) {
			out = append(out, cb)
		}
	}
	return out, nil
}

// UpdateStatus closes or reopens a callback. Completing stamps completed_at.
func (s *CallbackService) UpdateStatus(ctx context.Context, actor models.Actor, id int, req *models.UpdateCallbackStatusRequest) (*models.Callback, error) {
	if !models.ValidCallbackStatus(req.Status) {
		return nil, apperr.Validation("status", fmt.Sprintf("unknown callback status %q", req.Status))
	}
	cb, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cb.AgentID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, apperr.NotFound("callback", id)
	}

	var completedAt *time.Time
	if req.Status == models.CallbackCompleted {
		now := s.now()
		completedAt = &now
	}
	if err := s.Store.UpdateStatus(ctx, id, req.Status, strings.TrimSpace(req.Notes), completedAt); err != nil {
		return nil, err
	}
	updated, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated.Evaluate(s.now(), s.DueWindow)
	return updated, nil
}
