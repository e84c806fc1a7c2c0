package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"leads-backend/internal/apperr"
	"leads-backend/internal/models"
)

func doorstep() *models.FieldSubmissionRequest {
	return &models.FieldSubmissionRequest{
		FullName:        "Harold Green",
		Phone:           "07700 900400",
		AddressLine1:    "4 Mill Lane",
		City:            "Halifax",
		PostalCode:      "HX1 2AB",
		PropertyType:    "semi-detached",
		RoofType:        "pitched",
		RoofOrientation: "south",
		Shading:         "none",
		MonthlyBill:     floatPtr(140),
	}
}

func TestSubmitCreatesLinkedLead(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	fs, res, err := e.submissions.Submit(ctx, e.canvasser.Actor(), doorstep())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	l := res.Lead
	if fs.LeadID == nil || *fs.LeadID != l.ID {
		t.Fatalf("submission not linked: %v", fs.LeadID)
	}
	if l.Status != models.StatusSentToKelly || l.Source != models.SourceFieldSubmission {
		t.Errorf("lead = %s/%s", l.Status, l.Source)
	}
	if !strings.HasPrefix(l.LeadNumber, models.LeadPrefixField) {
		t.Errorf("lead number %q", l.LeadNumber)
	}
	if l.Survey.RoofType != "pitched" || l.Energy.EnergyBillAmount == nil || *l.Energy.EnergyBillAmount != 140 {
		t.Errorf("survey not copied: %+v %+v", l.Survey, l.Energy)
	}
	if !strings.Contains(l.Notes, "Roof orientation: south") {
		t.Errorf("notes = %q", l.Notes)
	}

	// canvasser sees it, qualifier works it
	if _, err := e.leads.Get(ctx, e.canvasser.Actor(), l.ID); err != nil {
		t.Errorf("canvasser cannot read own lead: %v", err)
	}
	if _, err := e.leads.Get(ctx, e.qualifier.Actor(), l.ID); err != nil {
		t.Errorf("qualifier cannot read the lead: %v", err)
	}

	if _, _, err := e.submissions.Submit(ctx, e.agent.Actor(), doorstep()); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("agents cannot submit, got %v", err)
	}
	if _, _, err := e.submissions.Submit(ctx, e.canvasser.Actor(), doorstep()); !errors.Is(err, apperr.ErrDuplicateKey) {
		t.Errorf("same phone twice should conflict, got %v", err)
	}
}

func TestResaveNeverMovesStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	fs, res, err := e.submissions.Submit(ctx, e.canvasser.Actor(), doorstep())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := e.leads.Qualify(ctx, e.qualifier.Actor(), res.Lead.ID, &models.QualifyRequest{Status: models.StatusBlowOut}); err != nil {
		t.Fatalf("qualify: %v", err)
	}

	edit := doorstep()
	edit.City = "Huddersfield"
	edit.Shading = "partial"
	_, resaved, err := e.submissions.Resave(ctx, e.canvasser.Actor(), fs.ID, edit)
	if err != nil {
		t.Fatalf("resave: %v", err)
	}
	if resaved.Lead.Status != models.StatusBlowOut {
		t.Errorf("status moved to %s", resaved.Lead.Status)
	}
	if resaved.Lead.City != "Huddersfield" || !strings.Contains(resaved.Lead.Notes, "Shading: partial") {
		t.Errorf("edit not pushed to lead: %q %q", resaved.Lead.City, resaved.Lead.Notes)
	}
	stored, err := e.submissions.Get(ctx, e.canvasser.Actor(), fs.ID)
	if err != nil || stored.City != "Huddersfield" {
		t.Errorf("submission not updated: %+v %v", stored, err)
	}

	other := e.principal(t, "cora", "Cora Canvasser", models.RoleCanvasser)
	if _, _, err := e.submissions.Resave(ctx, other.Actor(), fs.ID, edit); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("another canvasser edited the submission: %v", err)
	}
}

func TestResaveAfterDeleteIsRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	fs, res, err := e.submissions.Submit(ctx, e.canvasser.Actor(), doorstep())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.leads.SoftDelete(ctx, e.admin.Actor(), res.Lead.ID, "test"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := e.submissions.Resave(ctx, e.canvasser.Actor(), fs.ID, doorstep()); !errors.Is(err, apperr.ErrStateTransitionRejected) {
		t.Errorf("unlinked submission re-saved: %v", err)
	}
}

func TestReviewNotifiesCanvasser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	fs, _, err := e.submissions.Submit(ctx, e.canvasser.Actor(), doorstep())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := e.submissions.Review(ctx, e.canvasser.Actor(), fs.ID, &models.ReviewFieldSubmissionRequest{Status: models.ReviewCompleted}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("canvasser reviewed own work: %v", err)
	}
	reviewed, err := e.submissions.Review(ctx, e.qualifier.Actor(), fs.ID, &models.ReviewFieldSubmissionRequest{Status: models.ReviewCompleted, Notes: "good lead"})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if reviewed.ReviewStatus != models.ReviewCompleted || reviewed.ReviewedAt == nil || reviewed.ReviewerID == nil {
		t.Errorf("review block: %+v", reviewed)
	}

	inbox, err := e.notifications.Inbox(ctx, e.canvasser.Actor(), true)
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	if inbox.Unread != 1 || inbox.Notifications[0].Type != models.NotificationQualificationResult {
		t.Errorf("inbox = %+v", inbox)
	}
	if len(e.pub.For(e.canvasser.ID)) != 1 {
		t.Error("review not pushed live")
	}

	list, err := e.submissions.List(ctx, e.canvasser.Actor())
	if err != nil || len(list) != 1 || list[0].CanvasserName != e.canvasser.Name {
		t.Errorf("list = %+v %v", list, err)
	}
	if _, err := e.submissions.List(ctx, e.agent.Actor()); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("agent listed submissions: %v", err)
	}
}

func TestNotificationInbox(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for _, phone := range []string{"+441234500500", "+441234500501"} {
		l := e.sentToKelly(t, phone)
		if _, err := e.leads.Qualify(ctx, e.qualifier.Actor(), l.ID, &models.QualifyRequest{Status: models.StatusNoContact}); err != nil {
			t.Fatalf("qualify: %v", err)
		}
	}

	inbox, err := e.notifications.Inbox(ctx, e.agent.Actor(), false)
	if err != nil || inbox.Unread != 2 || len(inbox.Notifications) != 2 {
		t.Fatalf("inbox = %+v %v", inbox, err)
	}
	first := inbox.Notifications[0]
	if err := e.notifications.MarkRead(ctx, e.agent.Actor(), first.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := e.notifications.MarkRead(ctx, e.agent2.Actor(), inbox.Notifications[1].ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("marked someone else's notification: %v", err)
	}
	n, err := e.notifications.MarkAllRead(ctx, e.agent.Actor())
	if err != nil || n != 1 {
		t.Errorf("mark all = %d %v", n, err)
	}
	if err := e.notifications.Delete(ctx, e.agent.Actor(), first.ID); err != nil {
		t.Errorf("delete: %v", err)
	}
	inbox, _ = e.notifications.Inbox(ctx, e.agent.Actor(), false)
	if inbox.Unread != 0 || len(inbox.Notifications) != 1 {
		t.Errorf("inbox after cleanup = %+v", inbox)
	}
}
