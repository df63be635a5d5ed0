package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// CredentialStore implementation
// ============================================================

const rpcUpsertCredential = "upsert_tenant_credential"

// credentialRow maps tenant_credentials columns, sealed tokens included.
type credentialRow struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenant_id"`
	Platform        domain.Platform `json:"platform"`
	AccessTokenEnc  string          `json:"access_token_enc"`
	RefreshTokenEnc string          `json:"refresh_token_enc"`
	Scope           string          `json:"scope"`
	Active          bool            `json:"active"`
	ExpiresAt       *time.Time      `json:"expires_at"`
	ActivatedAt     *time.Time      `json:"activated_at"`
	RevokedAt       *time.Time      `json:"revoked_at"`
	LastRefreshAt   *time.Time      `json:"last_refresh_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (r *credentialRow) toDomain() domain.TenantCredential {
	return domain.TenantCredential{
		ID:            r.ID,
		TenantID:      r.TenantID,
		Platform:      r.Platform,
		Active:        r.Active,
		Scope:         r.Scope,
		ExpiresAt:     r.ExpiresAt,
		ActivatedAt:   r.ActivatedAt,
		RevokedAt:     r.RevokedAt,
		LastRefreshAt: r.LastRefreshAt,
		HasTokens:     r.AccessTokenEnc != "",
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (c *Client) ListCredentials(ctx context.Context, tenantID string) ([]domain.TenantCredential, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCredentials")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	q := url.Values{}
	q.Set("tenant_id", "eq."+tenantID)
	q.Set("order", "created_at.desc")
	return c.listCredentials(ctx, q)
}

func (c *Client) ListExpiringCredentials(ctx context.Context, platform domain.Platform, before time.Time) ([]domain.TenantCredential, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListExpiringCredentials")
	defer span.End()

	q := url.Values{}
	q.Set("platform", "eq."+string(platform))
	q.Set("active", "eq.true")
	q.Set("expires_at", "lt."+before.UTC().Format(time.RFC3339))
	q.Set("order", "expires_at.asc")
	return c.listCredentials(ctx, q)
}

func (c *Client) listCredentials(ctx context.Context, q url.Values) ([]domain.TenantCredential, error) {
	var creds []domain.TenantCredential
	err := c.execute(ctx, "supabase/credentials", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, tableCredentials+"?"+q.Encode())
		if err != nil {
			return err
		}
		creds = []domain.TenantCredential{}
		if body == nil {
			return nil
		}
		var rows []credentialRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode tenant_credentials: %w", err)
		}
		for i := range rows {
			creds = append(creds, rows[i].toDomain())
		}
		return nil
	})
	return creds, err
}

func (c *Client) getCredentialRow(ctx context.Context, q url.Values) (*credentialRow, error) {
	q.Set("limit", "1")
	var row *credentialRow
	err := c.execute(ctx, "supabase/credentials", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, tableCredentials+"?"+q.Encode())
		if err != nil {
			return err
		}
		row, err = decodeFirst[credentialRow](body)
		return err
	})
	return row, err
}

func (c *Client) GetCredential(ctx context.Context, credentialID string) (*domain.TenantCredential, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCredential")
	defer span.End()
	span.SetAttributes(attribute.String("credential.id", credentialID))

	q := url.Values{}
	q.Set("id", "eq."+credentialID)
	row, err := c.getCredentialRow(ctx, q)
	if err != nil || row == nil {
		return nil, err
	}
	cred := row.toDomain()
	return &cred, nil
}

// FindCredential returns the most recent credential of the tenant for the
// platform.
func (c *Client) FindCredential(ctx context.Context, tenantID string, platform domain.Platform) (*domain.TenantCredential, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindCredential")
	defer span.End()

	q := url.Values{}
	q.Set("tenant_id", "eq."+tenantID)
	q.Set("platform", "eq."+string(platform))
	q.Set("order", "created_at.desc")
	row, err := c.getCredentialRow(ctx, q)
	if err != nil || row == nil {
		return nil, err
	}
	cred := row.toDomain()
	return &cred, nil
}

func (c *Client) GetCredentialSecrets(ctx context.Context, credentialID string) (*domain.CredentialSecrets, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCredentialSecrets")
	defer span.End()

	q := url.Values{}
	q.Set("id", "eq."+credentialID)
	q.Set("select", "id,access_token_enc,refresh_token_enc")
	row, err := c.getCredentialRow(ctx, q)
	if err != nil || row == nil {
		return nil, err
	}
	return &domain.CredentialSecrets{
		AccessTokenEnc:  row.AccessTokenEnc,
		RefreshTokenEnc: row.RefreshTokenEnc,
	}, nil
}

func (c *Client) CreateCredential(ctx context.Context, cred *domain.TenantCredential) (*domain.TenantCredential, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateCredential")
	defer span.End()

	data := map[string]any{
		"tenant_id": cred.TenantID,
		"platform":  cred.Platform,
		"active":    false,
		"scope":     cred.Scope,
	}
	if cred.ID != "" {
		data["id"] = cred.ID
	}

	var created *domain.TenantCredential
	err := c.executeOnce(ctx, "supabase/credentials", func() error {
		body, err := c.doPost(ctx, tableCredentials, data)
		if err != nil {
			return err
		}
		row, err := decodeFirst[credentialRow](body)
		if err != nil {
			return fmt.Errorf("decode created credential: %w", err)
		}
		if row == nil {
			return fmt.Errorf("supabase returned no credential")
		}
		out := row.toDomain()
		created = &out
		return nil
	})
	return created, err
}

// UpsertSealedTokens writes both sealed tokens, activates the credential and
// flips the tenant connection flag in one RPC.
func (c *Client) UpsertSealedTokens(ctx context.Context, set *domain.SealedTokenSet) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertSealedTokens")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", set.TenantID),
		attribute.String("credential.id", set.CredentialID),
	)

	args := map[string]any{
		"p_credential_id":     set.CredentialID,
		"p_tenant_id":         set.TenantID,
		"p_platform":          set.Platform,
		"p_access_token_enc":  set.AccessTokenEnc,
		"p_refresh_token_enc": set.RefreshTokenEnc,
		"p_scope":             set.Scope,
		"p_expires_at":        set.ExpiresAt,
	}
	return c.execute(ctx, "supabase/rpc", func() error {
		_, err := c.doRPC(ctx, rpcUpsertCredential, args)
		return err
	})
}

// DeleteCredential removes a credential row that never received tokens.
func (c *Client) DeleteCredential(ctx context.Context, credentialID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteCredential")
	defer span.End()
	span.SetAttributes(attribute.String("credential.id", credentialID))

	path := fmt.Sprintf("%s?id=eq.%s", tableCredentials, url.QueryEscape(credentialID))
	return c.execute(ctx, "supabase/credentials", func() error {
		return c.doDelete(ctx, path)
	})
}

func (c *Client) DeactivateCredential(ctx context.Context, credentialID string, at time.Time) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeactivateCredential")
	defer span.End()
	span.SetAttributes(attribute.String("credential.id", credentialID))

	path := fmt.Sprintf("%s?id=eq.%s", tableCredentials, url.QueryEscape(credentialID))
	return c.execute(ctx, "supabase/credentials", func() error {
		_, err := c.doPatch(ctx, path, map[string]any{
			"active":            false,
			"revoked_at":        at.UTC(),
			"access_token_enc":  nil,
			"refresh_token_enc": nil,
			"updated_at":        at.UTC(),
		})
		return err
	})
}
