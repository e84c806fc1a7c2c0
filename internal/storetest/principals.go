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

type Principals struct{ db *DB }

func (s *Principals) Create(ctx context.Context, p *models.Principal) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, e := range s.db.principals {
		if strings.EqualFold(e.Username, p.Username) {
			return apperr.Validation("username", "already taken")
		}
		if p.Email != "" && strings.EqualFold(e.Email, p.Email) {
			return apperr.Validation("email", "already taken")
		}
	}
	s.db.nextPrincipal++
	p.ID = s.db.nextPrincipal
	stamp(&p.CreatedAt)
	p.UpdatedAt = p.CreatedAt
	c := *p
	s.db.principals[p.ID] = &c
	return nil
}

func (s *Principals) Get(ctx context.Context, id int) (*models.Principal, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.principals[id]
	if !ok {
		return nil, apperr.NotFound("principal", id)
	}
	c := *p
	return &c, nil
}

func (s *Principals) GetByUsername(ctx context.Context, username string) (*models.Principal, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, p := range s.db.principals {
		if strings.EqualFold(p.Username, username) {
			c := *p
			return &c, nil
		}
	}
	return nil, apperr.NotFound("principal", username)
}

func (s *Principals) GetByLogin(ctx context.Context, login string) (*models.Principal, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, p := range s.db.principals {
		if strings.EqualFold(p.Username, login) || (p.Email != "" && strings.EqualFold(p.Email, login)) {
			c := *p
			return &c, nil
		}
	}
	return nil, apperr.NotFound("principal", login)
}

func (s *Principals) List(ctx context.Context, includeRetired bool) ([]*models.Principal, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*models.Principal
	for _, p := range s.db.principals {
		if !p.IsActive && !includeRetired {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Principals) Update(ctx context.Context, p *models.Principal) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.principals[p.ID]; !ok {
		return apperr.NotFound("principal", p.ID)
	}
	for _, e := range s.db.principals {
		if e.ID != p.ID && p.Email != "" && strings.EqualFold(e.Email, p.Email) {
			return apperr.Validation("email", "already taken")
		}
	}
	p.UpdatedAt = time.Now()
	c := *p
	s.db.principals[p.ID] = &c
	return nil
}

func (s *Principals) Delete(ctx context.Context, id int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.principals[id]; !ok {
		return apperr.NotFound("principal", id)
	}
	for _, l := range s.db.leads {
		if l.OwningAgentID != nil && *l.OwningAgentID == id {
			l.OwningAgentID = nil
		}
		if l.FieldSalesRepID != nil && *l.FieldSalesRepID == id {
			l.FieldSalesRepID = nil
		}
		if l.CreatedByID != nil && *l.CreatedByID == id {
			l.CreatedByID = nil
		}
	}
	for ext, m := range s.db.mappings {
		if m.PrincipalID == id {
			delete(s.db.mappings, ext)
		}
	}
	delete(s.db.principals, id)
	return nil
}

func (s *Principals) CountLeadReferences(ctx context.Context, id int) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, l := range s.db.leads {
		if (l.OwningAgentID != nil && *l.OwningAgentID == id) ||
			(l.FieldSalesRepID != nil && *l.FieldSalesRepID == id) ||
			(l.CreatedByID != nil && *l.CreatedByID == id) {
			n++
		}
	}
	return n, nil
}

func (s *Principals) SetTOTPSecret(ctx context.Context, id int, secret string) error {
	return s.modify(id, func(p *models.Principal) { p.TOTPSecret = secret; p.TOTPEnabled = false })
}

func (s *Principals) EnableTOTP(ctx context.Context, id int) error {
	return s.modify(id, func(p *models.Principal) { p.TOTPEnabled = true })
}

func (s *Principals) modify(id int, fn func(p *models.Principal)) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.principals[id]
	if !ok {
		return apperr.NotFound("principal", id)
	}
	fn(p)
	p.UpdatedAt = time.Now()
	return nil
}

type DialerMappings struct{ db *DB }

func (s *DialerMappings) GetByExternalID(ctx context.Context, externalUserID string) (*models.DialerMapping, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m, ok := s.db.mappings[externalUserID]
	if !ok {
		return nil, apperr.NotFound("dialer mapping", externalUserID)
	}
	c := *m
	if p, ok := s.db.principals[m.PrincipalID]; ok {
		c.PrincipalName = p.Name
	}
	return &c, nil
}

func (s *DialerMappings) List(ctx context.Context) ([]*models.DialerMapping, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]*models.DialerMapping, 0, len(s.db.mappings))
	for _, m := range s.db.mappings {
		c := *m
		if p, ok := s.db.principals[m.PrincipalID]; ok {
			c.PrincipalName = p.Name
		}
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalUserID < out[j].ExternalUserID })
	return out, nil
}

func (s *DialerMappings) Upsert(ctx context.Context, m *models.DialerMapping) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.principals[m.PrincipalID]; !ok {
		return apperr.Validation("principal_id", fmt.Sprintf("principal %d does not exist", m.PrincipalID))
	}
	for ext, e := range s.db.mappings {
		if e.PrincipalID == m.PrincipalID && ext != m.ExternalUserID {
			return apperr.Validation("principal_id", fmt.Sprintf("already mapped to dialer user %s", ext))
		}
	}
	now := time.Now()
	if e, ok := s.db.mappings[m.ExternalUserID]; ok {
		e.PrincipalID = m.PrincipalID
		e.UpdatedAt = now
		*m = *e
		return nil
	}
	s.db.nextMapping++
	m.ID = s.db.nextMapping
	m.CreatedAt, m.UpdatedAt = now, now
	c := *m
	s.db.mappings[m.ExternalUserID] = &c
	return nil
}

func (s *DialerMappings) Delete(ctx context.Context, externalUserID string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.mappings[externalUserID]; !ok {
		return apperr.NotFound("dialer mapping", externalUserID)
	}
	delete(s.db.mappings, externalUserID)
	return nil
}

type Settings struct{ db *DB }

func (s *Settings) Get(ctx context.Context, key string) (*models.SystemSetting, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	v, ok := s.db.settings[key]
	if !ok {
		return nil, apperr.NotFound("setting", key)
	}
	c := *v
	return &c, nil
}

func (s *Settings) Upsert(ctx context.Context, key, value, description string, updatedBy *int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	v, ok := s.db.settings[key]
	if !ok {
		v = &models.SystemSetting{ID: len(s.db.settings) + 1, SettingKey: key}
		s.db.settings[key] = v
	}
	v.SettingValue = value
	if description != "" {
		v.Description = description
	}
	v.UpdatedByID = updatedBy
	v.UpdatedAt = time.Now()
	return nil
}

func (s *Settings) List(ctx context.Context) ([]*models.SystemSetting, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]*models.SystemSetting, 0, len(s.db.settings))
	for _, v := range s.db.settings {
		c := *v
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SettingKey < out[j].SettingKey })
	return out, nil
}
