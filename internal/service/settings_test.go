package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_DefaultsThenPut(t *testing.T) {
	svc := service.NewSettingsService(&fakeSettingsStore{}, newFakeTenantStore(tenantOfA, tenantOfB))
	ctx := context.Background()

	got, err := svc.Get(ctx, &partnerA)
	require.NoError(t, err)
	assert.Equal(t, domain.ViewGrid, got.ViewMode)
	assert.Equal(t, "pt-BR", got.Locale)

	_, err = svc.Put(ctx, &partnerA, &domain.UpdateSettingsRequest{
		SelectedTenantID: "t-a", ViewMode: domain.ViewList, Locale: "en-US",
	})
	require.NoError(t, err)

	got, err = svc.Get(ctx, &partnerA)
	require.NoError(t, err)
	assert.Equal(t, domain.ViewList, got.ViewMode)
	assert.Equal(t, "t-a", got.SelectedTenantID)
	assert.False(t, got.EmailNotifications)
}

func TestSettings_PutRejectsForeignTenant(t *testing.T) {
	svc := service.NewSettingsService(&fakeSettingsStore{}, newFakeTenantStore(tenantOfA, tenantOfB))

	_, err := svc.Put(context.Background(), &partnerA, &domain.UpdateSettingsRequest{
		SelectedTenantID: "t-b", ViewMode: domain.ViewGrid, Locale: "pt-BR",
	})
	var nf *domain.ErrNotFound
	assert.True(t, errors.As(err, &nf))
}

func TestSettings_PutRejectsViewMode(t *testing.T) {
	svc := service.NewSettingsService(&fakeSettingsStore{}, newFakeTenantStore())

	_, err := svc.Put(context.Background(), &partnerA, &domain.UpdateSettingsRequest{ViewMode: "CARDS", Locale: "pt-BR"})
	var ve *domain.ErrValidation
	assert.True(t, errors.As(err, &ve))
}
