package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"leads-backend/internal/apperr"
	"leads-backend/internal/cache"
	"leads-backend/internal/models"

	"gopkg.in/yaml.v3"
)

// DialerService owns the external-id to agent bijection and the
// dialer-active switch.
type DialerService struct {
	Mappings   DialerMappingStore
	Principals PrincipalStore
	Settings   SettingStore
}

func NewDialerService(mappings DialerMappingStore, principals PrincipalStore, settings SettingStore) *DialerService {
	return &DialerService{
		Mappings:   mappings,
		Principals: principals,
		Settings:   settings,
	}
}

// ResolveAgent maps a dialer event onto its owning agent: the mapping for
// externalUserID first, then a principal with the dialer username.
func (s *DialerService) ResolveAgent(ctx context.Context, externalUserID, username string) (*models.Principal, error) {
	externalUserID = strings.TrimSpace(externalUserID)
	username = strings.TrimSpace(username)

	if externalUserID != "" {
		p, err := s.byExternalID(ctx, externalUserID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}

	if username != "" {
		p, err := s.Principals.GetByUsername(ctx, username)
		switch {
		case err == nil && p.IsActive:
			return p, nil
		case err != nil && !errors.Is(err, apperr.ErrNotFound):
			return nil, err
		}
	}

	return nil, apperr.AgentMappingMissing(externalUserID, username)
}

func (s *DialerService) byExternalID(ctx context.Context, externalUserID string) (*models.Principal, error) {
	if id, ok := cache.GetCachedMapping(ctx, externalUserID); ok {
		p, err := s.Principals.Get(ctx, id)
		if err == nil && p.IsActive {
			return p, nil
		}
		cache.InvalidateMapping(ctx, externalUserID)
	}

	m, err := s.Mappings.GetByExternalID(ctx, externalUserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	p, err := s.Principals.Get(ctx, m.PrincipalID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !p.IsActive {
		log.Printf("[Dialer] mapping %s points at retired principal %d", externalUserID, p.ID)
		return nil, nil
	}
	cache.CacheMapping(ctx, externalUserID, p.ID)
	return p, nil
}

func (s *DialerService) ListMappings(ctx context.Context) ([]*models.DialerMapping, error) {
	return s.Mappings.List(ctx)
}

// UpsertMapping creates or reassigns an external id
func (s *DialerService) UpsertMapping(ctx context.Context, req *models.UpsertDialerMappingRequest) (*models.DialerMapping, error) {
	ext := strings.TrimSpace(req.ExternalUserID)
	if ext == "" {
		return nil, apperr.Validation("external_user_id", "required")
	}
	p, err := s.Principals.Get(ctx, req.PrincipalID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Validation("principal_id", fmt.Sprintf("principal %d does not exist", req.PrincipalID))
		}
		return nil, err
	}
	if p.Role != models.RoleAgent {
		return nil, apperr.Validation("principal_id", "only agents can be mapped to dialer users")
	}

	m := &models.DialerMapping{ExternalUserID: ext, PrincipalID: p.ID}
	if err := s.Mappings.Upsert(ctx, m); err != nil {
		return nil, err
	}
	m.PrincipalName = p.Name
	cache.InvalidateMapping(ctx, ext)
	return m, nil
}

func (s *DialerService) DeleteMapping(ctx context.Context, externalUserID string) error {
	if err := s.Mappings.Delete(ctx, externalUserID); err != nil {
		return err
	}
	cache.InvalidateMapping(ctx, externalUserID)
	return nil
}

// IsActive reads the dialer-active flag. An unset flag means inactive.
func (s *DialerService) IsActive(ctx context.Context) (bool, error) {
	if active, ok := cache.GetCachedDialerActive(ctx); ok {
		return active, nil
	}
	setting, err := s.Settings.Get(ctx, models.SettingDialerActive)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			cache.CacheDialerActive(ctx, false)
			return false, nil
		}
		return false, err
	}
	active, _ := strconv.ParseBool(setting.SettingValue)
	cache.CacheDialerActive(ctx, active)
	return active, nil
}

func (s *DialerService) SetActive(ctx context.Context, actor models.Actor, active bool) error {
	by := actor.ID
	if err := s.Settings.Upsert(ctx, models.SettingDialerActive, strconv.FormatBool(active),
		"Surfaces the cold-call queue to agents", &by); err != nil {
		return err
	}
	cache.CacheDialerActive(ctx, active)
	log.Printf("[Dialer] active=%t set by %s", active, actor.Name)
	return nil
}

// MappingSeed binds an external dialer user to an agent by username
type MappingSeed struct {
	ExternalUserID string `yaml:"external_user_id"`
	Username       string `yaml:"username"`
}

// ParseMappingSeeds reads a seed file of the form
//
//	mappings:
//	  - external_user_id: "1001"
//	    username: alice
func ParseMappingSeeds(r io.Reader) ([]MappingSeed, error) {
	var doc struct {
		Mappings []MappingSeed `yaml:"mappings"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, apperr.Validation("file", "invalid mapping seed file: "+err.Error())
	}
	return doc.Mappings, nil
}

// SeedMappings upserts every seed it can resolve and reports the rest
func (s *DialerService) SeedMappings(ctx context.Context, seeds []MappingSeed) (int, []string) {
	applied := 0
	var failures []string
	for _, seed := range seeds {
		p, err := s.Principals.GetByUsername(ctx, strings.TrimSpace(seed.Username))
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s -> %s: %v", seed.ExternalUserID, seed.Username, err))
			continue
		}
		if _, err := s.UpsertMapping(ctx, &models.UpsertDialerMappingRequest{
			ExternalUserID: seed.ExternalUserID,
			PrincipalID:    p.ID,
		}); err != nil {
			failures = append(failures, fmt.Sprintf("%s -> %s: %v", seed.ExternalUserID, seed.Username, err))
			continue
		}
		applied++
	}
	cache.InvalidateDialerCaches(ctx)
	log.Printf("[Dialer] seeded %d mappings, %d failed", applied, len(failures))
	return applied, failures
}
