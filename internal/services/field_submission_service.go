package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"leads-backend/internal/apperr"
	"leads-backend/internal/lifecycle"
	"leads-backend/internal/models"
	"leads-backend/internal/notes"
)

// FieldSubmissionService handles canvasser assessments. Each submission
// creates its lead in the same transaction; re-saves patch that lead.
type FieldSubmissionService struct {
	Store         FieldSubmissionStore
	Leads         *LeadService
	Notifications *NotificationService
	now           func() time.Time
}

func NewFieldSubmissionService(store FieldSubmissionStore, leads *LeadService, notifications *NotificationService) *FieldSubmissionService {
	return &FieldSubmissionService{Store: store, Leads: leads, Notifications: notifications, now: time.Now}
}

func (s *FieldSubmissionService) Submit(ctx context.Context, actor models.Actor, req *models.FieldSubmissionRequest) (*models.FieldSubmission, *models.TransitionResult, error) {
	if actor.Role != models.RoleCanvasser && actor.Role != models.RoleAdmin {
		return nil, nil, apperr.Forbidden("only canvassers file field submissions")
	}
	if err := validateSubmission(req); err != nil {
		return nil, nil, err
	}

	fs := &models.FieldSubmission{CanvasserID: actor.ID, ReviewStatus: models.ReviewPending}
	applySubmission(fs, req)

	lead := &models.Lead{
		Status:      models.StatusSentToKelly,
		Source:      models.SourceFieldSubmission,
		CreatedByID: actorRef(actor),
	}
	patchFromSubmission(lead, fs, "")

	res, err := s.Leads.create(ctx, actor, lead, models.LeadPrefixField, &change{op: lifecycle.OpCreate, submission: fs})
	if err != nil {
		return nil, nil, err
	}
	log.Printf("[FieldSubmissions] %s filed submission %d as lead %s", actor.Name, fs.ID, res.Lead.LeadNumber)
	return fs, res, nil
}

// Resave replaces the assessment and pushes it to the linked lead. The
// lead's status is never touched here.
func (s *FieldSubmissionService) Resave(ctx context.Context, actor models.Actor, id int, req *models.FieldSubmissionRequest) (*models.FieldSubmission, *models.TransitionResult, error) {
	if err := validateSubmission(req); err != nil {
		return nil, nil, err
	}
	fs, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	if fs.CanvasserID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, nil, apperr.Forbidden("submission belongs to another canvasser")
	}
	if fs.LeadID == nil {
		return nil, nil, apperr.TransitionRejected("", "", "submission is no longer linked to a lead")
	}
	applySubmission(fs, req)

	res, err := s.Leads.mutate(ctx, actor, *fs.LeadID, func(before, after *models.Lead) (*change, error) {
		if before.IsDeleted {
			return nil, apperr.TransitionRejected(before.Status, before.Status, "lead is deleted; restore it first")
		}
		free, _ := notes.Split(before.Notes)
		patchFromSubmission(after, fs, free)
		if sameRecord(before, after) {
			return nil, nil
		}
		return &change{op: lifecycle.OpFieldEdit, plan: lifecycle.PlanEffects(lifecycle.OpFieldEdit, before, after), submission: fs}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return fs, res, nil
}

// Review records the back-office verdict and tells the canvasser
func (s *FieldSubmissionService) Review(ctx context.Context, actor models.Actor, id int, req *models.ReviewFieldSubmissionRequest) (*models.FieldSubmission, error) {
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleQualifier {
		return nil, apperr.Forbidden("only qualifiers and admins review submissions")
	}
	if !models.ValidReviewStatus(req.Status) {
		return nil, apperr.Validation("status", fmt.Sprintf("unknown review status %q", req.Status))
	}
	fs, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	fs.ReviewStatus = req.Status
	fs.ReviewerID = actorRef(actor)
	fs.ReviewedAt = &now
	fs.ReviewerNotes = strings.TrimSpace(req.Notes)
	if err := s.Store.UpdateReview(ctx, fs); err != nil {
		return nil, err
	}

	if fs.LeadID != nil && s.Notifications != nil {
		n := &models.Notification{
			RecipientID: fs.CanvasserID,
			SenderID:    actorRef(actor),
			LeadID:      *fs.LeadID,
			Type:        models.NotificationQualificationResult,
			Message:     fmt.Sprintf("Your submission for %s was marked %s by %s", fs.FullName, req.Status, actor.Name),
		}
		if err := s.Notifications.Store.Create(ctx, n); err != nil {
			log.Printf("[FieldSubmissions] review of %d saved but notification failed: %v", id, err)
		} else {
			s.Notifications.Publish([]*models.Notification{n})
		}
	}
	return fs, nil
}

func (s *FieldSubmissionService) Get(ctx context.Context, actor models.Actor, id int) (*models.FieldSubmission, error) {
	fs, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case models.RoleAdmin, models.RoleQualifier:
		return fs, nil
	case models.RoleCanvasser:
		if fs.CanvasserID == actor.ID {
			return fs, nil
		}
	}
	return nil, apperr.NotFound("field submission", id)
}

func (s *FieldSubmissionService) List(ctx context.Context, actor models.Actor) ([]*models.FieldSubmission, error) {
	var list []*models.FieldSubmission
	var err error
	switch actor.Role {
	case models.RoleAdmin, models.RoleQualifier:
		list, err = s.Store.List(ctx, nil)
	case models.RoleCanvasser:
		list, err = s.Store.List(ctx, &actor.ID)
	default:
		return nil, apperr.Forbidden("field submissions are for canvassers and reviewers")
	}
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*models.FieldSubmission{}
	}
	return list, nil
}

func validateSubmission(req *models.FieldSubmissionRequest) error {
	if strings.TrimSpace(req.FullName) == "" {
		return apperr.Validation("full_name", "required")
	}
	if models.NormalizePhone(req.Phone) == "" {
		return apperr.Validation("phone", "required")
	}
	if strings.TrimSpace(req.AddressLine1) == "" {
		return apperr.Validation("address1", "required")
	}
	if req.MonthlyBill != nil && *req.MonthlyBill < 0 {
		return apperr.Validation("monthly_bill", "must not be negative")
	}
	return nil
}

func applySubmission(fs *models.FieldSubmission, req *models.FieldSubmissionRequest) {
	fs.FullName = strings.TrimSpace(req.FullName)
	fs.Phone = models.NormalizePhone(req.Phone)
	fs.Email = strings.TrimSpace(req.Email)
	fs.AddressLine1 = strings.TrimSpace(req.AddressLine1)
	fs.AddressLine2 = strings.TrimSpace(req.AddressLine2)
	fs.City = strings.TrimSpace(req.City)
	fs.PostalCode = strings.TrimSpace(req.PostalCode)
	fs.PropertyType = strings.TrimSpace(req.PropertyType)
	fs.PropertyOwnership = strings.TrimSpace(req.PropertyOwnership)
	fs.RoofType = strings.TrimSpace(req.RoofType)
	fs.RoofOrientation = strings.TrimSpace(req.RoofOrientation)
	fs.Shading = strings.TrimSpace(req.Shading)
	fs.MonthlyBill = req.MonthlyBill
	fs.Notes = strings.TrimSpace(req.Notes)
}

// patchFromSubmission copies the assessment onto the lead. free is the
// lead's existing free text; the canvasser's own lines are merged into it.
func patchFromSubmission(l *models.Lead, fs *models.FieldSubmission, free string) {
	l.FullName = fs.FullName
	l.Phone = fs.Phone
	l.Email = fs.Email
	l.AddressLine1 = fs.AddressLine1
	l.AddressLine2 = fs.AddressLine2
	l.City = fs.City
	l.PostalCode = fs.PostalCode
	l.Survey.PropertyType = fs.PropertyType
	l.Survey.PropertyOwnership = fs.PropertyOwnership
	l.Survey.RoofType = fs.RoofType
	if fs.MonthlyBill != nil {
		v := *fs.MonthlyBill
		l.Energy.EnergyBillAmount = &v
	}
	if fs.RoofOrientation != "" {
		free = notes.AppendFree(free, "Roof orientation: "+fs.RoofOrientation)
	}
	if fs.Shading != "" {
		free = notes.AppendFree(free, "Shading: "+fs.Shading)
	}
	free = notes.AppendFree(free, fs.Notes)
	l.Notes = notes.Rebuild(l, free)
}
