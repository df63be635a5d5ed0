package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
)

// ============================================================
// TokenExchanger over Supabase edge functions
// ============================================================

// Edge function names.
const (
	FunctionOAuthExchange = "contaazul-oauth-exchange"
	FunctionOAuthRefresh  = "contaazul-oauth-refresh"
)

// EdgeExchanger performs the Conta Azul token calls through edge functions
// that hold the client secret.
type EdgeExchanger struct {
	client *Client
}

// NewEdgeExchanger creates an exchanger backed by c.
func NewEdgeExchanger(c *Client) *EdgeExchanger {
	return &EdgeExchanger{client: c}
}

type edgeError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Exchange trades an authorization code for tokens. Not retried.
func (e *EdgeExchanger) Exchange(ctx context.Context, code, redirectURI string) (*domain.TokenSet, error) {
	ctx, span := tracer.Start(ctx, "Supabase.OAuthExchange")
	defer span.End()

	return e.call(ctx, FunctionOAuthExchange, map[string]string{
		"code":         code,
		"redirect_uri": redirectURI,
	})
}

// Refresh trades a refresh token for a new token set. Not retried.
func (e *EdgeExchanger) Refresh(ctx context.Context, refreshToken string) (*domain.TokenSet, error) {
	ctx, span := tracer.Start(ctx, "Supabase.OAuthRefresh")
	defer span.End()

	return e.call(ctx, FunctionOAuthRefresh, map[string]string{
		"refresh_token": refreshToken,
	})
}

func (e *EdgeExchanger) call(ctx context.Context, fn string, payload any) (*domain.TokenSet, error) {
	var (
		tokens   domain.TokenSet
		grantErr error
	)
	err := e.client.executeOnce(ctx, "supabase/functions", func() error {
		body, err := e.client.doFunction(ctx, fn, payload)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) {
				var ee edgeError
				if json.Unmarshal(body, &ee) == nil && ee.Error == "invalid_grant" {
					grantErr = &domain.ErrInvalidGrant{Description: ee.ErrorDescription}
				}
			}
			return err
		}
		if err := json.Unmarshal(body, &tokens); err != nil {
			return fmt.Errorf("decode token set: %w", err)
		}
		if tokens.AccessToken == "" {
			return fmt.Errorf("%s returned no access_token", fn)
		}
		return nil
	})
	if grantErr != nil {
		return nil, grantErr
	}
	if err != nil {
		return nil, err
	}
	return &tokens, nil
}
