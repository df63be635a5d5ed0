package domain

import "time"

// ============================================================
// Tenant credentials
// ============================================================

// Platform identifies the external system a credential grants access to.
type Platform string

const (
	PlatformContaAzul Platform = "CONTA_AZUL"
	PlatformOlist     Platform = "OLIST"
)

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	return p == PlatformContaAzul || p == PlatformOlist
}

// TenantCredential is the client-safe view of a stored token set.
// Sealed tokens live in CredentialSecrets and are never serialized.
type TenantCredential struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	Platform      Platform   `json:"platform"`
	Active        bool       `json:"active"`
	Scope         string     `json:"scope,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	ActivatedAt   *time.Time `json:"activated_at,omitempty"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	LastRefreshAt *time.Time `json:"last_refresh_at,omitempty"`
	HasTokens     bool       `json:"has_tokens"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ExpiresWithin reports whether the access token expires before now+d.
func (c *TenantCredential) ExpiresWithin(now time.Time, d time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Before(now.Add(d))
}

// CredentialSecrets holds the sealed token pair of a credential.
type CredentialSecrets struct {
	AccessTokenEnc  string
	RefreshTokenEnc string
}

// SealedTokenSet is what the store persists after a successful exchange or refresh.
type SealedTokenSet struct {
	CredentialID    string
	TenantID        string
	Platform        Platform
	AccessTokenEnc  string
	RefreshTokenEnc string
	Scope           string
	ExpiresAt       *time.Time
}

// CreateCredentialRequest is the body for POST /v1/tenants/{tenantId}/credentials.
// Only OLIST credentials are created this way; Conta Azul goes through OAuth.
type CreateCredentialRequest struct {
	Platform Platform `json:"platform" validate:"required,oneof=OLIST"`
	APIKey   string   `json:"api_key" validate:"required,min=8"`
}
