package domain

import "time"

// ============================================================
// Conta Azul OAuth
// ============================================================

// OAuthState is what travels inside the state parameter.
type OAuthState struct {
	TenantID     string `json:"tenant_id"`
	CredentialID string `json:"credential_id"`
	Nonce        string `json:"nonce"`
}

// PendingAuthorization is stored server side under the CSRF nonce.
type PendingAuthorization struct {
	TenantID     string    `json:"tenant_id"`
	CredentialID string    `json:"credential_id"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthorizeResponse is returned by the authorize endpoint.
type AuthorizeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	CredentialID     string `json:"credential_id"`
	State            string `json:"state"`
}

// CallbackParams are the parameters the provider sends back.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CallbackURLRequest lets the SPA forward a callback URL whose
// parameters sit in the hash fragment.
type CallbackURLRequest struct {
	URL string `json:"url" validate:"required"`
}

// CallbackResult is the outcome of the callback flow.
type CallbackResult struct {
	Success      bool   `json:"success"`
	TenantID     string `json:"tenant_id,omitempty"`
	CredentialID string `json:"credential_id,omitempty"`
	ErrorCode    string `json:"error,omitempty"`
	RedirectURL  string `json:"redirect_url"`
}

// TokenSet is a plain token pair returned by the token endpoint.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

// ExpiresAt converts ExpiresIn into an absolute instant.
func (t *TokenSet) ExpiresAt(now time.Time) *time.Time {
	if t.ExpiresIn <= 0 {
		return nil
	}
	at := now.Add(time.Duration(t.ExpiresIn) * time.Second)
	return &at
}

// RefreshReport summarizes a refresh sweep.
type RefreshReport struct {
	Checked     int `json:"checked"`
	Refreshed   int `json:"refreshed"`
	Failed      int `json:"failed"`
	Deactivated int `json:"deactivated"`

	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
