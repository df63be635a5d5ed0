// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// TenantStore persists tenants. Getters return nil, nil when nothing matches.
type TenantStore interface {
	ListTenants(ctx context.Context, filter domain.TenantFilter) ([]domain.Tenant, int, error)
	GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error)
	GetTenantByCNPJ(ctx context.Context, cnpj string) (*domain.Tenant, error)
	CreateTenant(ctx context.Context, t *domain.Tenant) (*domain.Tenant, error)
	UpdateTenant(ctx context.Context, tenantID string, updates map[string]any) (*domain.Tenant, error)
	SoftDeleteTenant(ctx context.Context, tenantID string, at time.Time) error
	SetConnectionFlag(ctx context.Context, tenantID string, platform domain.Platform, connected bool) error
}

// CredentialStore persists tenant credentials. Sealed tokens are only
// reachable through GetCredentialSecrets and UpsertSealedTokens.
type CredentialStore interface {
	ListCredentials(ctx context.Context, tenantID string) ([]domain.TenantCredential, error)
	GetCredential(ctx context.Context, credentialID string) (*domain.TenantCredential, error)
	FindCredential(ctx context.Context, tenantID string, platform domain.Platform) (*domain.TenantCredential, error)
	GetCredentialSecrets(ctx context.Context, credentialID string) (*domain.CredentialSecrets, error)
	CreateCredential(ctx context.Context, c *domain.TenantCredential) (*domain.TenantCredential, error)
	UpsertSealedTokens(ctx context.Context, set *domain.SealedTokenSet) error
	DeactivateCredential(ctx context.Context, credentialID string, at time.Time) error
	DeleteCredential(ctx context.Context, credentialID string) error
	ListExpiringCredentials(ctx context.Context, platform domain.Platform, before time.Time) ([]domain.TenantCredential, error)
}

// MappingRuleStore persists mapping rules.
type MappingRuleStore interface {
	ListRules(ctx context.Context, tenantID string, activeOnly bool) ([]domain.MappingRule, error)
	GetRule(ctx context.Context, ruleID string) (*domain.MappingRule, error)
	CreateRule(ctx context.Context, rule *domain.MappingRule) (*domain.MappingRule, error)
	UpdateRule(ctx context.Context, ruleID string, updates map[string]any) (*domain.MappingRule, error)
	DeleteRule(ctx context.Context, ruleID string) error
}

// UserStore persists console user profiles.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*domain.UserProfile, error)
	ListUsers(ctx context.Context, page, pageSize int) ([]domain.UserProfile, int, error)
	CreateUser(ctx context.Context, u *domain.UserProfile) (*domain.UserProfile, error)
	UpdateUser(ctx context.Context, userID string, updates map[string]any) (*domain.UserProfile, error)
}

// SettingsStore persists per-user console preferences.
type SettingsStore interface {
	GetSettings(ctx context.Context, userID string) (*domain.UserSettings, error)
	UpsertSettings(ctx context.Context, s *domain.UserSettings) (*domain.UserSettings, error)
}

// AuthProvider is the identity provider (Supabase GoTrue).
type AuthProvider interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*domain.AuthUser, *domain.Session, error)
	SignIn(ctx context.Context, email, password string) (*domain.AuthUser, *domain.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*domain.AuthUser, *domain.Session, error)
	RecoverPassword(ctx context.Context, email, redirectTo string) error
}

// TokenExchanger swaps an authorization code or refresh token for a token set.
type TokenExchanger interface {
	Exchange(ctx context.Context, code, redirectURI string) (*domain.TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenSet, error)
}

// StateStore keeps pending OAuth authorizations, single use.
type StateStore interface {
	Save(ctx context.Context, nonce string, p *domain.PendingAuthorization, ttl time.Duration) error
	Consume(ctx context.Context, nonce string) (*domain.PendingAuthorization, error)
}

// Sealer encrypts secrets at rest.
type Sealer interface {
	Seal(plaintext, aad string) (string, error)
	Open(sealed, aad string) (string, error)
}

// Pinger is a dependency that /healthz can ping.
type Pinger interface {
	Ping(ctx context.Context) error
}
