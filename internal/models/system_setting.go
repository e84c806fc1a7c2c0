package models

import "time"

// Setting keys
const (
	SettingDialerActive = "dialer_active"
)

type SystemSetting struct {
	ID           int       `json:"id"`
	SettingKey   string    `json:"setting_key"`
	SettingValue string    `json:"setting_value"`
	Description  string    `json:"description"`
	UpdatedAt    time.Time `json:"updated_at"`
	UpdatedByID  *int      `json:"updated_by_id,omitempty"`
}

type UpdateSettingRequest struct {
	SettingValue string `json:"setting_value"`
}
