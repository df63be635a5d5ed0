package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/contaazul"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/observability"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var oauthTracer = otel.Tracer("service/oauth")

// OAuthConfig is the Conta Azul registration plus where to send the browser
// afterwards.
type OAuthConfig struct {
	Provider    contaazul.Config
	RedirectURI string
	FrontendURL string
	StateTTL    time.Duration
}

// OAuthService runs the Conta Azul authorization-code flow.
type OAuthService struct {
	cfg         OAuthConfig
	tenants     port.TenantStore
	credentials port.CredentialStore
	users       *UserService
	states      port.StateStore
	exchanger   port.TokenExchanger
	sealer      port.Sealer
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewOAuthService creates a new OAuth service.
func NewOAuthService(cfg OAuthConfig, tenants port.TenantStore, credentials port.CredentialStore, users *UserService, states port.StateStore, exchanger port.TokenExchanger, sealer port.Sealer, metrics *observability.Metrics, logger *zap.Logger) *OAuthService {
	return &OAuthService{
		cfg:         cfg,
		tenants:     tenants,
		credentials: credentials,
		users:       users,
		states:      states,
		exchanger:   exchanger,
		sealer:      sealer,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Authorize starts the flow for a tenant: it reuses or creates the
// CONTA_AZUL credential, records the CSRF nonce and returns the provider URL.
func (s *OAuthService) Authorize(ctx context.Context, actor *domain.UserProfile, tenantID string) (*domain.AuthorizeResponse, error) {
	ctx, span := oauthTracer.Start(ctx, "OAuthService.Authorize")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if s.cfg.Provider.ClientID == "" {
		return nil, &domain.ErrOAuth{Code: domain.OAuthErrNotConfigured}
	}
	if _, err := authorizeTenant(ctx, s.tenants, actor, tenantID); err != nil {
		return nil, err
	}

	cred, err := s.credentials.FindCredential(ctx, tenantID, domain.PlatformContaAzul)
	if err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}
	if cred == nil {
		cred, err = s.credentials.CreateCredential(ctx, &domain.TenantCredential{
			TenantID: tenantID,
			Platform: domain.PlatformContaAzul,
			Scope:    s.cfg.Provider.Scope,
		})
		if err != nil {
			return nil, fmt.Errorf("create credential: %w", err)
		}
	}

	nonce := uuid.NewString()
	state, err := EncodeState(domain.OAuthState{TenantID: tenantID, CredentialID: cred.ID, Nonce: nonce})
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	if err := s.states.Save(ctx, nonce, &domain.PendingAuthorization{
		TenantID:     tenantID,
		CredentialID: cred.ID,
		UserID:       actor.ID,
		CreatedAt:    s.now(),
	}, s.cfg.StateTTL); err != nil {
		return nil, fmt.Errorf("save state: %w", err)
	}

	authURL, err := contaazul.AuthorizationURL(s.cfg.Provider, s.cfg.RedirectURI, state)
	if err != nil {
		return nil, err
	}

	s.logger.Info("oauth authorization started",
		zap.String("tenant_id", tenantID),
		zap.String("credential_id", cred.ID),
		zap.String("user_id", actor.ID),
	)
	return &domain.AuthorizeResponse{
		AuthorizationURL: authURL,
		CredentialID:     cred.ID,
		State:            state,
	}, nil
}

// HandleCallback runs the callback steps in order and always returns a
// result carrying the redirect to the SPA result page. There are no retries.
func (s *OAuthService) HandleCallback(ctx context.Context, params domain.CallbackParams) *domain.CallbackResult {
	ctx, span := oauthTracer.Start(ctx, "OAuthService.HandleCallback")
	defer span.End()

	pending, err := s.callback(ctx, params)
	if err != nil {
		code := domain.OAuthErrExchange
		var oe *domain.ErrOAuth
		if errors.As(err, &oe) {
			code = oe.Code
		}
		s.metrics.IncrOAuthExchange(code)
		span.SetAttributes(attribute.String("oauth.error", code))

		fields := []zap.Field{zap.String("error_code", code), zap.Error(err)}
		if pending != nil {
			fields = append(fields, zap.String("tenant_id", pending.TenantID))
		}
		s.logger.Warn("oauth callback failed", fields...)

		res := &domain.CallbackResult{
			Success:     false,
			ErrorCode:   code,
			RedirectURL: ResultURL(s.cfg.FrontendURL, false, code),
		}
		if pending != nil {
			res.TenantID = pending.TenantID
			res.CredentialID = pending.CredentialID
		}
		return res
	}

	s.metrics.IncrOAuthExchange("success")
	s.logger.Info("conta azul connected",
		zap.String("tenant_id", pending.TenantID),
		zap.String("credential_id", pending.CredentialID),
	)
	return &domain.CallbackResult{
		Success:      true,
		TenantID:     pending.TenantID,
		CredentialID: pending.CredentialID,
		RedirectURL:  ResultURL(s.cfg.FrontendURL, true, ""),
	}
}

func (s *OAuthService) callback(ctx context.Context, params domain.CallbackParams) (*domain.PendingAuthorization, error) {
	// 1. parameters
	if params.Error != "" {
		return nil, &domain.ErrOAuth{Code: domain.OAuthErrProvider, Err: fmt.Errorf("%s: %s", params.Error, params.ErrorDescription)}
	}
	if params.Code == "" || params.State == "" {
		return nil, &domain.ErrOAuth{Code: domain.OAuthErrMissingParams}
	}

	// 2-3. state: decode, then consume the stored nonce and compare
	st, err := DecodeState(params.State)
	if err != nil {
		return nil, &domain.ErrOAuth{Code: domain.OAuthErrInvalidState, Err: err}
	}
	pending, err := s.states.Consume(ctx, st.Nonce)
	if err != nil {
		return nil, &domain.ErrOAuth{Code: domain.OAuthErrStorage, Err: err}
	}
	if pending == nil {
		return nil, &domain.ErrOAuth{Code: domain.OAuthErrInvalidState, Err: errors.New("unknown, expired or reused nonce")}
	}
	if pending.TenantID != st.TenantID || pending.CredentialID != st.CredentialID {
		return nil, &domain.ErrOAuth{Code: domain.OAuthErrInvalidState, Err: errors.New("state does not match stored authorization")}
	}

	// 4. session
	user, err := s.users.GetProfile(ctx, pending.UserID)
	if err != nil || !user.Active {
		return pending, &domain.ErrOAuth{Code: domain.OAuthErrSessionExpired, Err: err}
	}
	tenant, err := s.tenants.GetTenant(ctx, pending.TenantID)
	if err != nil {
		return pending, &domain.ErrOAuth{Code: domain.OAuthErrStorage, Err: err}
	}
	if !user.CanManageTenant(tenant) {
		return pending, &domain.ErrOAuth{Code: domain.OAuthErrForbidden}
	}

	// 5. exchange
	tokens, err := s.exchanger.Exchange(ctx, params.Code, s.cfg.RedirectURI)
	if err != nil {
		return pending, &domain.ErrOAuth{Code: domain.OAuthErrExchange, Err: err}
	}

	// 6. seal and persist
	accessEnc, refreshEnc, err := sealTokens(s.sealer, pending.CredentialID, tokens.AccessToken, tokens.RefreshToken)
	if err != nil {
		return pending, &domain.ErrOAuth{Code: domain.OAuthErrStorage, Err: err}
	}
	scope := tokens.Scope
	if scope == "" {
		scope = s.cfg.Provider.Scope
	}
	if err := s.credentials.UpsertSealedTokens(ctx, &domain.SealedTokenSet{
		CredentialID:    pending.CredentialID,
		TenantID:        pending.TenantID,
		Platform:        domain.PlatformContaAzul,
		AccessTokenEnc:  accessEnc,
		RefreshTokenEnc: refreshEnc,
		Scope:           scope,
		ExpiresAt:       tokens.ExpiresAt(s.now()),
	}); err != nil {
		return pending, &domain.ErrOAuth{Code: domain.OAuthErrStorage, Err: err}
	}
	return pending, nil
}
