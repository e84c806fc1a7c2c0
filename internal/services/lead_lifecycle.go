package services

import (
	"context"
	"fmt"
	"strings"

	"leads-backend/internal/apperr"
	"leads-backend/internal/lifecycle"
	"leads-backend/internal/models"
	"leads-backend/internal/notes"
	"leads-backend/internal/timeutil"
)

// Disposition records a cold-call outcome. The status follows from the
// disposition unless the agent picks one.
func (s *LeadService) Disposition(ctx context.Context, actor models.Actor, id int, req *models.DispositionRequest) (*models.TransitionResult, error) {
	if !models.ValidDisposition(req.Disposition) {
		return nil, apperr.Validation("disposition", fmt.Sprintf("unknown disposition %q", req.Disposition))
	}
	status := req.Status
	if status == "" {
		status = lifecycle.StatusForDisposition(req.Disposition)
	}

	return s.mutate(ctx, actor, id, func(before, after *models.Lead) (*change, error) {
		if err := lifecycle.Check(lifecycle.OpDisposition, before, actor, lifecycle.Target{Status: status}); err != nil {
			return nil, err
		}
		after.Status = status
		after.Disposition = req.Disposition
		appendNote(after, req.Notes)
		return s.transition(lifecycle.OpDisposition, actor, before, after, req.Notes), nil
	})
}

// SendToKelly hands an interested lead to the qualifiers
func (s *LeadService) SendToKelly(ctx context.Context, actor models.Actor, id int) (*models.TransitionResult, error) {
	return s.mutate(ctx, actor, id, func(before, after *models.Lead) (*change, error) {
		target := lifecycle.Target{Status: models.StatusSentToKelly}
		if err := lifecycle.Check(lifecycle.OpSendToKelly, before, actor, target); err != nil {
			return nil, err
		}
		after.Status = models.StatusSentToKelly
		return s.transition(lifecycle.OpSendToKelly, actor, before, after, ""), nil
	})
}

// Qualify applies the qualifier's decision and tells the owning agent
func (s *LeadService) Qualify(ctx context.Context, actor models.Actor, id int, req *models.QualifyRequest) (*models.TransitionResult, error) {
	target := lifecycle.Target{
		Status:              req.Status,
		AppointmentDate:     req.AppointmentDate,
		QualifierCallbackAt: req.QualifierCallbackAt,
	}

	return s.mutate(ctx, actor, id, func(before, after *models.Lead) (*change, error) {
		if err := lifecycle.Check(lifecycle.OpQualify, before, actor, target); err != nil {
			return nil, err
		}
		after.Status = req.Status
		switch req.Status {
		case models.StatusAppointmentSet:
			at := req.AppointmentDate.UTC()
			after.AppointmentDate = &at
		case models.StatusCallback:
			at := req.QualifierCallbackAt.UTC()
			after.QualifierCallbackAt = &at
		}
		if req.FieldSalesRepID != nil {
			if err := s.assignSalesRep(ctx, after, *req.FieldSalesRepID); err != nil {
				return nil, err
			}
		}
		appendNote(after, req.Notes)
		return s.transition(lifecycle.OpQualify, actor, before, after, req.Notes), nil
	})
}

// RescheduleAppointment moves a booked appointment and re-syncs the event
func (s *LeadService) RescheduleAppointment(ctx context.Context, actor models.Actor, id int, req *models.RescheduleRequest) (*models.TransitionResult, error) {
	at := req.AppointmentDate.UTC()
	target := lifecycle.Target{Status: models.StatusAppointmentSet, AppointmentDate: &at}

	return s.mutate(ctx, actor, id, func(before, after *models.Lead) (*change, error) {
		if err := lifecycle.Check(lifecycle.OpReschedule, before, actor, target); err != nil {
			return nil, err
		}
		after.AppointmentDate = &at
		if req.FieldSalesRepID != nil {
			if err := s.assignSalesRep(ctx, after, *req.FieldSalesRepID); err != nil {
				return nil, err
			}
		}
		c := s.transition(lifecycle.OpReschedule, actor, before, after, "rescheduled")
		if after.OwningAgentID != nil {
			c.notify = append(c.notify, &models.Notification{
				RecipientID: *after.OwningAgentID,
				SenderID:    actorRef(actor),
				LeadNumber:  after.LeadNumber,
				Type:        models.NotificationAppointmentSet,
				Message: fmt.Sprintf("Appointment for %s (%s) moved to %s by %s", after.DisplayName(), after.LeadNumber,
					timeutil.FormatLondon(at, timeutil.DisplayLayout), actor.Name),
			})
		}
		return c, nil
	})
}

// CompleteAppointment records the field outcome of the salesrep's visit
func (s *LeadService) CompleteAppointment(ctx context.Context, actor models.Actor, id int, req *models.CompleteAppointmentRequest) (*models.TransitionResult, error) {
	target := lifecycle.Target{Status: req.Status, SaleAmount: req.SaleAmount}

	return s.mutate(ctx, actor, id, func(before, after *models.Lead) (*change, error) {
		if err := lifecycle.Check(lifecycle.OpCompleteAppointment, before, actor, target); err != nil {
			return nil, err
		}
		after.Status = req.Status
		if req.SaleAmount != nil {
			amount := *req.SaleAmount
			after.SaleAmount = &amount
		}
		appendNote(after, req.Notes)
		return s.transition(lifecycle.OpCompleteAppointment, actor, before, after, req.Notes), nil
	})
}

// ScheduleCallback moves the lead to callback and books the reminder in
// the same transaction.
func (s *LeadService) ScheduleCallback(ctx context.Context, actor models.Actor, req *models.CreateCallbackRequest) (*models.TransitionResult, *models.Callback, error) {
	if req.ScheduledTime.IsZero() {
		return nil, nil, apperr.Validation("scheduled_time", "required")
	}
	var booked *models.Callback

	res, err := s.mutate(ctx, actor, req.LeadID, func(before, after *models.Lead) (*change, error) {
		target := lifecycle.Target{Status: models.StatusCallback}
		if err := lifecycle.Check(lifecycle.OpScheduleCallback, before, actor, target); err != nil {
			return nil, err
		}
		if before.OwningAgentID == nil {
			return nil, apperr.Validation("lead_id", "lead has no owning agent to call back")
		}
		after.Status = models.StatusCallback
		appendNote(after, req.Notes)

		c := s.transition(lifecycle.OpScheduleCallback, actor, before, after, req.Notes)
		booked = &models.Callback{
			AgentID:       *before.OwningAgentID,
			ScheduledTime: req.ScheduledTime.UTC(),
			Status:        models.CallbackScheduled,
			Notes:         strings.TrimSpace(req.Notes),
			CreatedByID:   actorRef(actor),
		}
		c.callback = booked
		return c, nil
	})
	if err != nil {
		return nil, nil, err
	}
	booked.LeadName = res.Lead.DisplayName()
	return res, booked, nil
}

// transition plans side effects for a table-driven change and adds the
// qualifier's notification.
func (s *LeadService) transition(op lifecycle.Operation, actor models.Actor, before, after *models.Lead, reason string) *change {
	c := &change{
		op:     op,
		plan:   lifecycle.PlanEffects(op, before, after),
		reason: strings.TrimSpace(reason),
	}
	if c.plan.Notify {
		msg := fmt.Sprintf("%s marked %s (%s) as %s", actor.Name, after.DisplayName(), after.LeadNumber, after.Status)
		if after.Status == models.StatusAppointmentSet && after.AppointmentDate != nil {
			msg += " for " + timeutil.FormatLondon(*after.AppointmentDate, timeutil.DisplayLayout)
		}
		c.notify = append(c.notify, &models.Notification{
			RecipientID: *after.OwningAgentID,
			SenderID:    actorRef(actor),
			LeadNumber:  after.LeadNumber,
			Type:        models.NotificationStatusUpdate,
			Message:     msg,
		})
	}
	return c
}

// appendNote adds a line to the free-text part and re-renders the details
func appendNote(l *models.Lead, line string) {
	free, _ := notes.Split(l.Notes)
	l.Notes = notes.Rebuild(l, notes.AppendFree(free, line))
}
