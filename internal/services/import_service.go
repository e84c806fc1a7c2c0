package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"leads-backend/internal/apperr"
	"leads-backend/internal/lifecycle"
	"leads-backend/internal/models"
)

// ImportRecord is one lead in a bulk JSON dump
type ImportRecord struct {
	models.CreateLeadRequest
	AgentUsername string `json:"agent_username,omitempty"`
	DialerLeadID  string `json:"dialer_lead_id,omitempty"`
}

type ImportReport struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"` // phone or dialer id already present
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// ImportService loads dumps through the same create path as the API, so
// every constraint still applies.
type ImportService struct {
	Leads *LeadService
}

func NewImportService(leads *LeadService) *ImportService {
	return &ImportService{Leads: leads}
}

// ImportJSON reads an array of ImportRecord
func (s *ImportService) ImportJSON(ctx context.Context, actor models.Actor, r io.Reader, prefix string) (*ImportReport, error) {
	var records []ImportRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, apperr.Validation("file", "expected a JSON array of leads: "+err.Error())
	}
	return s.Import(ctx, actor, records, prefix)
}

func (s *ImportService) Import(ctx context.Context, actor models.Actor, records []ImportRecord, prefix string) (*ImportReport, error) {
	if actor.Role != models.RoleAdmin {
		return nil, apperr.Forbidden("only an admin can import leads")
	}
	if prefix == "" {
		prefix = models.LeadPrefixImport
	}

	report := &ImportReport{}
	for i := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		err := s.importOne(ctx, actor, &records[i], prefix)
		var ae *apperr.Error
		switch {
		case err == nil:
			report.Created++
		case errors.As(err, &ae) && ae.Kind == apperr.KindDuplicateKey:
			report.Skipped++
		default:
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("record %d (%s): %v", i+1, records[i].Phone, err))
		}
	}
	log.Printf("[Import] %d created, %d skipped, %d failed", report.Created, report.Skipped, report.Failed)
	return report, nil
}

func (s *ImportService) importOne(ctx context.Context, actor models.Actor, rec *ImportRecord, prefix string) error {
	if models.NormalizePhone(rec.Phone) == "" {
		return apperr.Validation("phone", "required")
	}
	status := rec.Status
	if status == "" {
		status = models.StatusColdCall
	}
	lead := leadFromRequest(&rec.CreateLeadRequest, status, models.SourceImport)
	if id := strings.TrimSpace(rec.DialerLeadID); id != "" {
		lead.DialerLeadID = &id
	}

	switch {
	case rec.AgentUsername != "":
		p, err := s.Leads.Principals.GetByUsername(ctx, rec.AgentUsername)
		if err != nil {
			return err
		}
		if err := s.Leads.assignAgent(ctx, lead, p.ID); err != nil {
			return err
		}
	case rec.OwningAgent != nil:
		if err := s.Leads.assignAgent(ctx, lead, *rec.OwningAgent); err != nil {
			return err
		}
	}

	_, err := s.Leads.create(ctx, actor, lead, prefix, &change{op: lifecycle.OpCreate})
	return err
}
