package domain

import "time"

// ViewMode is how the tenant list is rendered.
type ViewMode string

const (
	ViewGrid ViewMode = "GRID"
	ViewList ViewMode = "LIST"
)

// UserSettings holds console preferences. Last write wins.
type UserSettings struct {
	UserID             string    `json:"user_id"`
	SelectedTenantID   string    `json:"selected_tenant_id,omitempty"`
	ViewMode           ViewMode  `json:"view_mode"`
	Locale             string    `json:"locale"`
	EmailNotifications bool      `json:"email_notifications"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// DefaultSettings returns the preferences used before the user saves any.
func DefaultSettings(userID string) *UserSettings {
	return &UserSettings{
		UserID:             userID,
		ViewMode:           ViewGrid,
		Locale:             "pt-BR",
		EmailNotifications: true,
	}
}

// UpdateSettingsRequest is the body for PUT /v1/settings.
type UpdateSettingsRequest struct {
	SelectedTenantID   string   `json:"selected_tenant_id" validate:"omitempty,uuid"`
	ViewMode           ViewMode `json:"view_mode" validate:"required,oneof=GRID LIST"`
	Locale             string   `json:"locale" validate:"required,oneof=pt-BR en-US es-ES"`
	EmailNotifications bool     `json:"email_notifications"`
}
