package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
)

var settingsTracer = otel.Tracer("service/settings")

// SettingsService reads and writes console preferences. Last write wins.
type SettingsService struct {
	store   port.SettingsStore
	tenants port.TenantStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(store port.SettingsStore, tenants port.TenantStore) *SettingsService {
	return &SettingsService{store: store, tenants: tenants}
}

// Get returns the actor's settings, or the defaults if none were saved.
func (s *SettingsService) Get(ctx context.Context, actor *domain.UserProfile) (*domain.UserSettings, error) {
	ctx, span := settingsTracer.Start(ctx, "SettingsService.Get")
	defer span.End()

	if actor == nil {
		return nil, &domain.ErrUnauthorized{Message: "Sessão inválida"}
	}
	settings, err := s.store.GetSettings(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if settings == nil {
		return domain.DefaultSettings(actor.ID), nil
	}
	return settings, nil
}

// Put replaces the actor's settings. A selected tenant must be one the
// actor can manage.
func (s *SettingsService) Put(ctx context.Context, actor *domain.UserProfile, req *domain.UpdateSettingsRequest) (*domain.UserSettings, error) {
	ctx, span := settingsTracer.Start(ctx, "SettingsService.Put")
	defer span.End()

	if actor == nil {
		return nil, &domain.ErrUnauthorized{Message: "Sessão inválida"}
	}
	if req.ViewMode != domain.ViewGrid && req.ViewMode != domain.ViewList {
		return nil, &domain.ErrValidation{Field: "view_mode", Message: "modo de visualização inválido"}
	}
	if req.SelectedTenantID != "" {
		if _, err := authorizeTenant(ctx, s.tenants, actor, req.SelectedTenantID); err != nil {
			return nil, err
		}
	}

	saved, err := s.store.UpsertSettings(ctx, &domain.UserSettings{
		UserID:             actor.ID,
		SelectedTenantID:   req.SelectedTenantID,
		ViewMode:           req.ViewMode,
		Locale:             req.Locale,
		EmailNotifications: req.EmailNotifications,
	})
	if err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	return saved, nil
}
