package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/observability"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type credentialFixture struct {
	svc       *service.CredentialService
	tenants   *fakeTenantStore
	creds     *fakeCredentialStore
	exchanger *fakeExchanger
	metrics   *observability.Metrics
}

func newCredentialFixture(t *testing.T) *credentialFixture {
	t.Helper()
	tenants := newFakeTenantStore(tenantOfA, tenantOfB)
	creds := newFakeCredentialStore(tenants)
	exchanger := &fakeExchanger{tokens: &domain.TokenSet{AccessToken: "new-access", RefreshToken: "new-refresh", ExpiresIn: 3600}}
	metrics := observability.NewMetrics()
	svc := service.NewCredentialService(tenants, creds, newSealer(t), exchanger, metrics, zap.NewNop())
	return &credentialFixture{svc: svc, tenants: tenants, creds: creds, exchanger: exchanger, metrics: metrics}
}

// connect stores a Conta Azul credential sealed the way the OAuth callback does.
func (f *credentialFixture) connect(t *testing.T, id, tenantID, refreshToken string, expiresIn time.Duration) {
	t.Helper()
	box := newSealer(t)
	access, err := box.Seal("old-access", "tenant_credentials:"+id+":access")
	require.NoError(t, err)
	refresh, err := box.Seal(refreshToken, "tenant_credentials:"+id+":refresh")
	require.NoError(t, err)
	exp := time.Now().Add(expiresIn)
	f.creds.put(domain.TenantCredential{
		ID: id, TenantID: tenantID, Platform: domain.PlatformContaAzul, Active: true, ExpiresAt: &exp,
	}, domain.CredentialSecrets{AccessTokenEnc: access, RefreshTokenEnc: refresh})
	require.NoError(t, f.tenants.SetConnectionFlag(context.Background(), tenantID, domain.PlatformContaAzul, true))
}

func TestCreateOlist_SealsAPIKey(t *testing.T) {
	f := newCredentialFixture(t)

	cred, err := f.svc.CreateOlist(context.Background(), &partnerA, "t-a", &domain.CreateCredentialRequest{
		Platform: domain.PlatformOlist, APIKey: "olist-api-key-123",
	})
	require.NoError(t, err)
	assert.True(t, cred.Active)
	assert.True(t, cred.HasTokens)

	secrets, _ := f.creds.GetCredentialSecrets(context.Background(), cred.ID)
	assert.NotContains(t, secrets.AccessTokenEnc, "olist-api-key-123")

	plain, err := newSealer(t).Open(secrets.AccessTokenEnc, "tenant_credentials:"+cred.ID+":access")
	require.NoError(t, err)
	assert.Equal(t, "olist-api-key-123", plain)
	assert.True(t, f.tenants.tenants["t-a"].OlistConnected)
}

func TestCreateOlist_StoreFailureLeavesNoCredential(t *testing.T) {
	f := newCredentialFixture(t)
	f.creds.upsertErr = &domain.ErrExternalService{Service: "supabase/rpc", Err: errors.New("boom")}

	for i := 0; i < 2; i++ {
		_, err := f.svc.CreateOlist(context.Background(), &partnerA, "t-a", &domain.CreateCredentialRequest{
			Platform: domain.PlatformOlist, APIKey: "olist-api-key-123",
		})
		var ext *domain.ErrExternalService
		require.True(t, errors.As(err, &ext))
	}

	creds, err := f.svc.List(context.Background(), &partnerA, "t-a")
	require.NoError(t, err)
	assert.Empty(t, creds)
	assert.False(t, f.tenants.tenants["t-a"].OlistConnected)
}

func TestCreateOlist_RejectsContaAzul(t *testing.T) {
	f := newCredentialFixture(t)

	_, err := f.svc.CreateOlist(context.Background(), &partnerA, "t-a", &domain.CreateCredentialRequest{
		Platform: domain.PlatformContaAzul, APIKey: "whatever-key",
	})
	var ve *domain.ErrValidation
	assert.True(t, errors.As(err, &ve))
}

func TestRevoke_ClearsFlag(t *testing.T) {
	f := newCredentialFixture(t)
	f.connect(t, "c1", "t-a", "rt", time.Hour)

	require.NoError(t, f.svc.Revoke(context.Background(), &partnerA, "t-a", "c1"))

	cred, _ := f.creds.GetCredential(context.Background(), "c1")
	assert.False(t, cred.Active)
	assert.NotNil(t, cred.RevokedAt)
	assert.False(t, f.tenants.tenants["t-a"].ContaAzulConnected)
}

func TestRevoke_CredentialOfAnotherTenant(t *testing.T) {
	f := newCredentialFixture(t)
	f.connect(t, "c1", "t-b", "rt", time.Hour)

	err := f.svc.Revoke(context.Background(), &partnerA, "t-a", "c1")
	var nf *domain.ErrNotFound
	assert.True(t, errors.As(err, &nf))
}

func TestRefresh_RotatesTokens(t *testing.T) {
	f := newCredentialFixture(t)
	f.connect(t, "c1", "t-a", "old-refresh", 5*time.Minute)

	cred, err := f.svc.Refresh(context.Background(), &partnerA, "t-a", "c1")
	require.NoError(t, err)
	require.NotNil(t, cred.ExpiresAt)
	assert.True(t, cred.ExpiresAt.After(time.Now().Add(50*time.Minute)))
	assert.Equal(t, []string{"old-refresh"}, f.exchanger.refreshWith)

	secrets, _ := f.creds.GetCredentialSecrets(context.Background(), "c1")
	plain, err := newSealer(t).Open(secrets.RefreshTokenEnc, "tenant_credentials:c1:refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-refresh", plain)
	assert.Equal(t, int64(1), f.metrics.GetConsoleSnapshot().TokenRefreshes)
}

func TestRefresh_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	f := newCredentialFixture(t)
	f.connect(t, "c1", "t-a", "stable-refresh", 5*time.Minute)
	f.exchanger.tokens = &domain.TokenSet{AccessToken: "a2", ExpiresIn: 3600}

	_, err := f.svc.Refresh(context.Background(), &partnerA, "t-a", "c1")
	require.NoError(t, err)

	secrets, _ := f.creds.GetCredentialSecrets(context.Background(), "c1")
	plain, err := newSealer(t).Open(secrets.RefreshTokenEnc, "tenant_credentials:c1:refresh")
	require.NoError(t, err)
	assert.Equal(t, "stable-refresh", plain)
}

func TestRefresh_InvalidGrantDeactivates(t *testing.T) {
	f := newCredentialFixture(t)
	f.connect(t, "c1", "t-a", "revoked", 5*time.Minute)
	f.exchanger.err = &domain.ErrInvalidGrant{Description: "revoked"}

	_, err := f.svc.Refresh(context.Background(), &partnerA, "t-a", "c1")
	var ve *domain.ErrValidation
	require.True(t, errors.As(err, &ve))

	cred, _ := f.creds.GetCredential(context.Background(), "c1")
	assert.False(t, cred.Active)
	assert.False(t, f.tenants.tenants["t-a"].ContaAzulConnected)
}

func TestRefreshExpiring_Report(t *testing.T) {
	f := newCredentialFixture(t)
	f.connect(t, "soon-1", "t-a", "r1", 5*time.Minute)
	f.connect(t, "soon-2", "t-b", "r2", 10*time.Minute)
	f.connect(t, "later", "t-a", "r3", 2*time.Hour)

	report, err := f.svc.RefreshExpiring(context.Background(), 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 2, report.Refreshed)
	assert.Equal(t, 0, report.Failed)
	assert.ElementsMatch(t, []string{"r1", "r2"}, f.exchanger.refreshWith)
}

func TestRefreshExpiring_CountsFailures(t *testing.T) {
	f := newCredentialFixture(t)
	f.connect(t, "c1", "t-a", "r1", 5*time.Minute)
	f.connect(t, "c2", "t-b", "r2", 5*time.Minute)
	f.exchanger.err = &domain.ErrInvalidGrant{}

	report, err := f.svc.RefreshExpiring(context.Background(), 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Deactivated)
	assert.Equal(t, 0, report.Refreshed)

	f2 := newCredentialFixture(t)
	f2.connect(t, "c1", "t-a", "r1", 5*time.Minute)
	f2.exchanger.err = &domain.ErrExternalService{Service: "contaazul/oauth", Err: errors.New("boom")}

	report, err = f2.svc.RefreshExpiring(context.Background(), 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	cred, _ := f2.creds.GetCredential(context.Background(), "c1")
	assert.True(t, cred.Active)
}
