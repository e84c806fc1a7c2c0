package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"strings"

	"leads-backend/internal/apperr"
	"leads-backend/internal/lifecycle"
	"leads-backend/internal/metrics"
	"leads-backend/internal/models"
	"leads-backend/internal/notes"
)

// intakeAttempts bounds the create-then-update fallback when two intakes
// for the same lead race
const intakeAttempts = 3

// IntakeService turns dialer events into leads, creating on first sight and
// patching on every repeat.
type IntakeService struct {
	Leads  *LeadService
	Dialer *DialerService
	APIKey string
}

func NewIntakeService(leads *LeadService, dialer *DialerService, apiKey string) *IntakeService {
	return &IntakeService{Leads: leads, Dialer: dialer, APIKey: apiKey}
}

// CheckAPIKey passes everything when no key is configured
func (s *IntakeService) CheckAPIKey(presented string) error {
	if s.APIKey == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(s.APIKey)) != 1 {
		return apperr.Unauthorized("invalid dialer API key")
	}
	return nil
}

// Intake resolves the owning agent, then creates or updates the lead
func (s *IntakeService) Intake(ctx context.Context, p *models.DialerPayload) (*models.IntakeResult, error) {
	ext, username := deref(p.ExternalDialerUserID), deref(p.DialerUsername)
	if strings.TrimSpace(ext) == "" && strings.TrimSpace(username) == "" {
		metrics.IntakeTotal.WithLabelValues("invalid").Inc()
		return nil, apperr.Validation("external_dialer_user_id", "external_dialer_user_id or dialer_username is required")
	}
	if p.DayNightRate != nil && !validDayNight(*p.DayNightRate) {
		metrics.IntakeTotal.WithLabelValues("invalid").Inc()
		return nil, apperr.Validation("day_night_rate", "must be yes, no or unsure")
	}

	agent, err := s.Dialer.ResolveAgent(ctx, ext, username)
	if err != nil {
		metrics.IntakeTotal.WithLabelValues("unmapped").Inc()
		log.Printf("[Intake] agent resolution failed for %q/%q: %v", ext, username, err)
		return nil, err
	}

	for attempt := 1; attempt <= intakeAttempts; attempt++ {
		existing, err := s.findExisting(ctx, p)
		if err != nil {
			return nil, err
		}

		if existing != nil {
			res, err := s.update(ctx, existing.ID, agent, p)
			if err != nil {
				metrics.IntakeTotal.WithLabelValues("error").Inc()
				return nil, err
			}
			metrics.IntakeTotal.WithLabelValues(models.IntakeUpdated).Inc()
			return &models.IntakeResult{Lead: res.Lead, CreatedVsUpdated: models.IntakeUpdated}, nil
		}

		res, err := s.create(ctx, agent, p)
		if err == nil {
			metrics.IntakeTotal.WithLabelValues(models.IntakeCreated).Inc()
			log.Printf("[Intake] created lead %d (%s) for agent %s", res.Lead.ID, res.Lead.LeadNumber, agent.Name)
			return &models.IntakeResult{Lead: res.Lead, CreatedVsUpdated: models.IntakeCreated}, nil
		}
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Kind == apperr.KindDuplicateKey && ae.Field != "lead_number" {
			// a concurrent intake won the insert; take the update path
			continue
		}
		metrics.IntakeTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	return nil, apperr.Internal("intake kept colliding with concurrent writers", nil)
}

// findExisting looks up by dialer lead id, then by phone
func (s *IntakeService) findExisting(ctx context.Context, p *models.DialerPayload) (*models.Lead, error) {
	if id := strings.TrimSpace(deref(p.DialerLeadID)); id != "" {
		l, err := s.Leads.Leads.GetByDialerLeadID(ctx, id)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}
	if phone := models.NormalizePhone(deref(p.PhoneNumber)); phone != "" {
		l, err := s.Leads.Leads.GetByPhone(ctx, phone)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

func (s *IntakeService) create(ctx context.Context, agent *models.Principal, p *models.DialerPayload) (*models.TransitionResult, error) {
	if models.NormalizePhone(deref(p.PhoneNumber)) == "" {
		return nil, apperr.Validation("phone_number", "required for a new lead")
	}
	lead := &models.Lead{
		Status: models.StatusInterested,
		Source: models.SourceDialer,
	}
	applyPayload(lead, p)
	lead.Notes = notes.Rebuild(lead, notes.AppendFree("", deref(p.Comments)))
	lead.OwningAgentID = &agent.ID
	lead.AgentName = agent.Name

	return s.Leads.create(ctx, models.SystemActor, lead, models.LeadPrefixDialer, &change{op: lifecycle.OpIntake})
}

// update patches present fields. Status and ownership are left alone,
// except that an orphaned lead is adopted by the calling agent.
func (s *IntakeService) update(ctx context.Context, id int, agent *models.Principal, p *models.DialerPayload) (*models.TransitionResult, error) {
	return s.Leads.mutate(ctx, models.SystemActor, id, func(before, after *models.Lead) (*change, error) {
		if before.IsDeleted {
			// the operator has to restore it first
			return nil, apperr.DuplicateKey("phone", before.ID, before.DisplayName())
		}
		applyPayload(after, p)
		if after.OwningAgentID == nil {
			after.OwningAgentID = &agent.ID
			after.AgentName = agent.Name
		}
		free, _ := notes.Split(before.Notes)
		after.Notes = notes.Rebuild(after, notes.AppendFree(free, deref(p.Comments)))

		if sameRecord(before, after) {
			return nil, nil
		}
		return &change{
			op:   lifecycle.OpIntake,
			plan: lifecycle.PlanEffects(lifecycle.OpIntake, before, after),
		}, nil
	})
}

// applyPayload copies every field the dialer sent onto l
func applyPayload(l *models.Lead, p *models.DialerPayload) {
	if p.PhoneNumber != nil {
		if phone := models.NormalizePhone(*p.PhoneNumber); phone != "" {
			l.Phone = phone
		}
	}
	if p.DialerLeadID != nil {
		if id := strings.TrimSpace(*p.DialerLeadID); id != "" {
			l.DialerLeadID = &id
		}
	}
	set(&l.Email, p.Email)
	set(&l.Title, p.Title)
	set(&l.FirstName, p.FirstName)
	set(&l.MiddleName, p.MiddleName)
	set(&l.LastName, p.LastName)
	switch {
	case p.FullName != nil && strings.TrimSpace(*p.FullName) != "":
		l.FullName = strings.TrimSpace(*p.FullName)
	case p.FirstName != nil || p.MiddleName != nil || p.LastName != nil:
		l.FullName = models.JoinName(l.FirstName, l.MiddleName, l.LastName)
	}

	set(&l.AddressLine1, p.Address1)
	set(&l.AddressLine2, p.Address2)
	set(&l.AddressLine3, p.Address3)
	set(&l.City, p.City)
	set(&l.State, p.State)
	set(&l.Province, p.Province)
	set(&l.PostalCode, p.PostalCode)
	set(&l.Country, p.CountryCode)

	// verbatim echo, never parsed
	d := &l.Dialer
	setRaw(&d.VendorID, p.VendorID)
	setRaw(&d.Campaign, p.Campaign)
	setRaw(&d.ListID, p.ListID)
	setRaw(&d.Group, p.Group)
	setRaw(&d.ChannelGroup, p.ChannelGroup)
	setRaw(&d.AltPhone, p.AltPhone)
	setRaw(&d.SecurityPhrase, p.SecurityPhrase)
	setRaw(&d.Gender, p.Gender)
	setRaw(&d.DateOfBirth, p.DateOfBirth)
	setRaw(&d.PhoneCode, p.PhoneCode)
	setRaw(&d.DialedNumber, p.DialedNumber)
	setRaw(&d.DialedLabel, p.DialedLabel)
	setRaw(&d.CustomerZapChannel, p.CustomerZapChannel)
	setRaw(&d.ServerIP, p.ServerIP)
	setRaw(&d.SIPExten, p.SIPExten)
	setRaw(&d.SessionID, p.SessionID)
	setRaw(&d.UniqueID, p.UniqueID)
	setRaw(&d.Epoch, p.Epoch)
	setRaw(&d.SQLDate, p.SQLDate)
	setRaw(&d.RecordingFile, p.RecordingFile)
	setRaw(&d.Rank, p.Rank)
	setRaw(&d.Owner, p.Owner)
	setRaw(&d.DialerUserID, p.ExternalDialerUserID)
	setRaw(&d.DialerUsername, p.DialerUsername)

	sc := &l.Script
	setRaw(&sc.CampScript, p.CampScript)
	setRaw(&sc.InScript, p.InScript)
	setRaw(&sc.ScriptWidth, p.ScriptWidth)
	setRaw(&sc.ScriptHeight, p.ScriptHeight)

	sv := &l.Survey
	set(&sv.PreferredContactTime, p.PreferredContactTime)
	set(&sv.PropertyOwnership, p.PropertyOwnership)
	set(&sv.PropertyType, p.PropertyType)
	set(&sv.NumberOfBedrooms, p.NumberOfBedrooms)
	set(&sv.RoofType, p.RoofType)
	set(&sv.RoofMaterial, p.RoofMaterial)
	set(&sv.AverageMonthlyElectricityBill, p.AverageMonthlyElectricityBill)
	set(&sv.CurrentEnergySupplier, p.CurrentEnergySupplier)
	set(&sv.ElectricHeatingAppliances, p.ElectricHeatingAppliances)
	set(&sv.EnergyDetails, p.EnergyDetails)
	set(&sv.Timeframe, p.Timeframe)
	set(&sv.MovingPropertiesNextFiveYears, p.MovingPropertiesNextFiveYears)
	set(&sv.TimeframeDetails, p.TimeframeDetails)

	e := &l.Energy
	if p.EnergyBillAmount != nil {
		v := *p.EnergyBillAmount
		e.EnergyBillAmount = &v
	}
	if p.HasEVCharger != nil {
		v := *p.HasEVCharger
		e.HasEVCharger = &v
	}
	if p.DayNightRate != nil {
		e.DayNightRate = strings.ToLower(strings.TrimSpace(*p.DayNightRate))
	}
	if p.HasPreviousQuotes != nil {
		v := *p.HasPreviousQuotes
		e.HasPreviousQuotes = &v
	}
	set(&e.PreviousQuotesDetails, p.PreviousQuotesDetails)
}

func validDayNight(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", models.DayNightYes, models.DayNightNo, models.DayNightUnsure:
		return true
	}
	return false
}

func set(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setRaw(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
