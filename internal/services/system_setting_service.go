package services

import (
	"context"
	"log"
	"strconv"
	"strings"

	"leads-backend/internal/apperr"
	"leads-backend/internal/models"
)

type SettingRepository interface {
	SettingStore
	List(ctx context.Context) ([]*models.SystemSetting, error)
}

type SystemSettingService struct {
	Repo   SettingRepository
	Dialer *DialerService
}

func NewSystemSettingService(repo SettingRepository, dialer *DialerService) *SystemSettingService {
	return &SystemSettingService{Repo: repo, Dialer: dialer}
}

func (s *SystemSettingService) GetSetting(ctx context.Context, key string) (*models.SystemSetting, error) {
	return s.Repo.Get(ctx, key)
}

func (s *SystemSettingService) ListSettings(ctx context.Context) ([]*models.SystemSetting, error) {
	return s.Repo.List(ctx)
}

// UpdateSetting stores a value. dialer_active goes through the dialer
// service so its cached copy follows.
func (s *SystemSettingService) UpdateSetting(ctx context.Context, actor models.Actor, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return apperr.Validation("key", "required")
	}
	if key == models.SettingDialerActive {
		active, err := strconv.ParseBool(value)
		if err != nil {
			return apperr.Validation("setting_value", "must be true or false")
		}
		return s.Dialer.SetActive(ctx, actor, active)
	}
	by := actor.ID
	if err := s.Repo.Upsert(ctx, key, value, "", &by); err != nil {
		return err
	}
	log.Printf("[Settings] %s set by %s", key, actor.Name)
	return nil
}
