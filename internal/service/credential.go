package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/observability"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var credentialTracer = otel.Tracer("service/credential")

// refreshConcurrency bounds parallel refresh calls during a sweep.
const refreshConcurrency = 4

// Token refresh outcomes, used as metric labels.
const (
	refreshSuccess      = "success"
	refreshFailed       = "failed"
	refreshInvalidGrant = "invalid_grant"
)

// CredentialService manages tenant credentials and keeps Conta Azul
// tokens fresh.
type CredentialService struct {
	tenants     port.TenantStore
	credentials port.CredentialStore
	sealer      port.Sealer
	exchanger   port.TokenExchanger
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewCredentialService creates a new credential service.
func NewCredentialService(tenants port.TenantStore, credentials port.CredentialStore, sealer port.Sealer, exchanger port.TokenExchanger, metrics *observability.Metrics, logger *zap.Logger) *CredentialService {
	return &CredentialService{
		tenants:     tenants,
		credentials: credentials,
		sealer:      sealer,
		exchanger:   exchanger,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// tokenAAD binds a sealed token to its credential and kind, so sealed
// values cannot be swapped between rows or between access and refresh.
func tokenAAD(credentialID, kind string) string {
	return "tenant_credentials:" + credentialID + ":" + kind
}

// sealTokens seals a token pair for storage.
func sealTokens(sealer port.Sealer, credentialID, access, refresh string) (string, string, error) {
	accessEnc, err := sealer.Seal(access, tokenAAD(credentialID, "access"))
	if err != nil {
		return "", "", fmt.Errorf("seal access token: %w", err)
	}
	refreshEnc, err := sealer.Seal(refresh, tokenAAD(credentialID, "refresh"))
	if err != nil {
		return "", "", fmt.Errorf("seal refresh token: %w", err)
	}
	return accessEnc, refreshEnc, nil
}

// List returns the tenant's credentials without token material.
func (s *CredentialService) List(ctx context.Context, actor *domain.UserProfile, tenantID string) ([]domain.TenantCredential, error) {
	ctx, span := credentialTracer.Start(ctx, "CredentialService.List")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if _, err := authorizeTenant(ctx, s.tenants, actor, tenantID); err != nil {
		return nil, err
	}
	creds, err := s.credentials.ListCredentials(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	if creds == nil {
		creds = []domain.TenantCredential{}
	}
	return creds, nil
}

// CreateOlist stores an Olist API key, sealed, and marks the tenant connected.
func (s *CredentialService) CreateOlist(ctx context.Context, actor *domain.UserProfile, tenantID string, req *domain.CreateCredentialRequest) (*domain.TenantCredential, error) {
	ctx, span := credentialTracer.Start(ctx, "CredentialService.CreateOlist")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if req.Platform != domain.PlatformOlist {
		return nil, &domain.ErrValidation{Field: "platform", Message: "Conta Azul é conectada via OAuth"}
	}
	if _, err := authorizeTenant(ctx, s.tenants, actor, tenantID); err != nil {
		return nil, err
	}

	cred, err := s.credentials.CreateCredential(ctx, &domain.TenantCredential{
		TenantID: tenantID,
		Platform: domain.PlatformOlist,
	})
	if err != nil {
		return nil, fmt.Errorf("create credential: %w", err)
	}

	if err := s.storeAPIKey(ctx, cred, req.APIKey); err != nil {
		// The row has no key yet; drop it so a retry starts clean.
		if derr := s.credentials.DeleteCredential(context.WithoutCancel(ctx), cred.ID); derr != nil {
			s.logger.Error("failed to remove incomplete credential",
				zap.String("tenant_id", tenantID),
				zap.String("credential_id", cred.ID),
				zap.Error(derr),
			)
		}
		return nil, err
	}

	s.logger.Info("olist credential stored",
		zap.String("tenant_id", tenantID),
		zap.String("credential_id", cred.ID),
	)
	return s.reload(ctx, cred.ID)
}

func (s *CredentialService) storeAPIKey(ctx context.Context, cred *domain.TenantCredential, apiKey string) error {
	sealed, err := s.sealer.Seal(apiKey, tokenAAD(cred.ID, "access"))
	if err != nil {
		return fmt.Errorf("seal api key: %w", err)
	}
	if err := s.credentials.UpsertSealedTokens(ctx, &domain.SealedTokenSet{
		CredentialID:   cred.ID,
		TenantID:       cred.TenantID,
		Platform:       domain.PlatformOlist,
		AccessTokenEnc: sealed,
	}); err != nil {
		return fmt.Errorf("store api key: %w", err)
	}
	return nil
}

// Revoke deactivates a credential and clears the tenant's connection flag.
func (s *CredentialService) Revoke(ctx context.Context, actor *domain.UserProfile, tenantID, credentialID string) error {
	ctx, span := credentialTracer.Start(ctx, "CredentialService.Revoke")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID), attribute.String("credential.id", credentialID))

	cred, err := s.tenantCredential(ctx, actor, tenantID, credentialID)
	if err != nil {
		return err
	}
	if err := s.deactivate(ctx, cred); err != nil {
		return err
	}

	s.logger.Info("credential revoked",
		zap.String("tenant_id", tenantID),
		zap.String("credential_id", credentialID),
		zap.String("platform", string(cred.Platform)),
		zap.String("by", actor.ID),
	)
	return nil
}

// Refresh refreshes one Conta Azul credential on demand.
func (s *CredentialService) Refresh(ctx context.Context, actor *domain.UserProfile, tenantID, credentialID string) (*domain.TenantCredential, error) {
	ctx, span := credentialTracer.Start(ctx, "CredentialService.Refresh")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID), attribute.String("credential.id", credentialID))

	cred, err := s.tenantCredential(ctx, actor, tenantID, credentialID)
	if err != nil {
		return nil, err
	}
	if cred.Platform != domain.PlatformContaAzul {
		return nil, &domain.ErrValidation{Field: "platform", Message: "apenas credenciais Conta Azul podem ser renovadas"}
	}
	if !cred.Active {
		return nil, &domain.ErrValidation{Field: "credential", Message: "credencial inativa"}
	}

	if err := s.refreshOne(ctx, cred); err != nil {
		var grant *domain.ErrInvalidGrant
		if errors.As(err, &grant) {
			return nil, &domain.ErrValidation{Field: "credential", Message: "autorização expirada, conecte a Conta Azul novamente"}
		}
		return nil, err
	}
	return s.reload(ctx, credentialID)
}

// RefreshExpiring refreshes every active Conta Azul credential expiring
// within window. Individual failures are counted, not returned.
func (s *CredentialService) RefreshExpiring(ctx context.Context, window time.Duration) (*domain.RefreshReport, error) {
	ctx, span := credentialTracer.Start(ctx, "CredentialService.RefreshExpiring")
	defer span.End()

	creds, err := s.credentials.ListExpiringCredentials(ctx, domain.PlatformContaAzul, s.now().Add(window))
	if err != nil {
		return nil, fmt.Errorf("list expiring credentials: %w", err)
	}

	report := &domain.RefreshReport{Checked: len(creds)}
	var mu sync.Mutex
	bulkhead := resilience.NewBulkhead(refreshConcurrency)
	g, gctx := errgroup.WithContext(ctx)

	for i := range creds {
		cred := &creds[i]
		g.Go(func() error {
			if err := bulkhead.Acquire(gctx); err != nil {
				return err
			}
			defer bulkhead.Release()

			err := s.refreshOne(gctx, cred)

			mu.Lock()
			defer mu.Unlock()
			var grant *domain.ErrInvalidGrant
			switch {
			case err == nil:
				report.Refreshed++
			case errors.As(err, &grant):
				report.Deactivated++
			default:
				report.Failed++
				s.logger.Warn("token refresh failed",
					zap.String("tenant_id", cred.TenantID),
					zap.String("credential_id", cred.ID),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	span.SetAttributes(
		attribute.Int("refresh.checked", report.Checked),
		attribute.Int("refresh.refreshed", report.Refreshed),
	)
	return report, nil
}

// refreshOne rotates the tokens of a single credential. A rejected refresh
// token deactivates the credential.
func (s *CredentialService) refreshOne(ctx context.Context, cred *domain.TenantCredential) error {
	secrets, err := s.credentials.GetCredentialSecrets(ctx, cred.ID)
	if err != nil {
		s.metrics.IncrTokenRefresh(refreshFailed)
		return fmt.Errorf("load secrets: %w", err)
	}
	if secrets == nil || secrets.RefreshTokenEnc == "" {
		s.metrics.IncrTokenRefresh(refreshFailed)
		return &domain.ErrValidation{Field: "credential", Message: "credencial sem refresh token"}
	}

	refreshToken, err := s.sealer.Open(secrets.RefreshTokenEnc, tokenAAD(cred.ID, "refresh"))
	if err != nil {
		s.metrics.IncrTokenRefresh(refreshFailed)
		return fmt.Errorf("open refresh token: %w", err)
	}

	tokens, err := s.exchanger.Refresh(ctx, refreshToken)
	if err != nil {
		var grant *domain.ErrInvalidGrant
		if errors.As(err, &grant) {
			s.metrics.IncrTokenRefresh(refreshInvalidGrant)
			s.logger.Warn("refresh token rejected, deactivating credential",
				zap.String("tenant_id", cred.TenantID),
				zap.String("credential_id", cred.ID),
			)
			if derr := s.deactivate(ctx, cred); derr != nil {
				return errors.Join(err, derr)
			}
			return err
		}
		s.metrics.IncrTokenRefresh(refreshFailed)
		return fmt.Errorf("refresh tokens: %w", err)
	}

	// Providers may omit the refresh token when they do not rotate it.
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	accessEnc, refreshEnc, err := sealTokens(s.sealer, cred.ID, tokens.AccessToken, tokens.RefreshToken)
	if err != nil {
		s.metrics.IncrTokenRefresh(refreshFailed)
		return err
	}

	scope := tokens.Scope
	if scope == "" {
		scope = cred.Scope
	}
	if err := s.credentials.UpsertSealedTokens(ctx, &domain.SealedTokenSet{
		CredentialID:    cred.ID,
		TenantID:        cred.TenantID,
		Platform:        domain.PlatformContaAzul,
		AccessTokenEnc:  accessEnc,
		RefreshTokenEnc: refreshEnc,
		Scope:           scope,
		ExpiresAt:       tokens.ExpiresAt(s.now()),
	}); err != nil {
		s.metrics.IncrTokenRefresh(refreshFailed)
		return fmt.Errorf("store refreshed tokens: %w", err)
	}

	s.metrics.IncrTokenRefresh(refreshSuccess)
	s.logger.Debug("token refreshed",
		zap.String("tenant_id", cred.TenantID),
		zap.String("credential_id", cred.ID),
	)
	return nil
}

func (s *CredentialService) deactivate(ctx context.Context, cred *domain.TenantCredential) error {
	if err := s.credentials.DeactivateCredential(ctx, cred.ID, s.now()); err != nil {
		return fmt.Errorf("deactivate credential: %w", err)
	}
	if err := s.tenants.SetConnectionFlag(ctx, cred.TenantID, cred.Platform, false); err != nil {
		return fmt.Errorf("clear connection flag: %w", err)
	}
	return nil
}

func (s *CredentialService) tenantCredential(ctx context.Context, actor *domain.UserProfile, tenantID, credentialID string) (*domain.TenantCredential, error) {
	if _, err := authorizeTenant(ctx, s.tenants, actor, tenantID); err != nil {
		return nil, err
	}
	cred, err := s.credentials.GetCredential(ctx, credentialID)
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	if cred == nil || cred.TenantID != tenantID {
		return nil, &domain.ErrNotFound{Resource: "credential", ID: credentialID}
	}
	return cred, nil
}

func (s *CredentialService) reload(ctx context.Context, credentialID string) (*domain.TenantCredential, error) {
	cred, err := s.credentials.GetCredential(ctx, credentialID)
	if err != nil {
		return nil, fmt.Errorf("reload credential: %w", err)
	}
	if cred == nil {
		return nil, &domain.ErrNotFound{Resource: "credential", ID: credentialID}
	}
	return cred, nil
}
