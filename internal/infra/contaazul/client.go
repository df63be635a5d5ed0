// Package contaazul talks to the Conta Azul OAuth2 endpoints directly.
// Used when OAUTH_EXCHANGE_MODE=direct; the edge-function exchanger in
// package supabase is the default.
package contaazul

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("contaazul")

// Config holds the OAuth client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	Scope        string
}

// Client is the Conta Azul OAuth client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewClient creates a Conta Azul OAuth client. cb should come from
// resilience.NewCircuitBreaker so client errors do not trip it.
func NewClient(httpClient *http.Client, cfg Config, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *Client {
	return &Client{cfg: cfg, httpClient: httpClient, cb: cb, logger: logger}
}

// AuthorizationURL builds the URL the browser is sent to.
func AuthorizationURL(cfg Config, redirectURI, state string) (string, error) {
	u, err := url.Parse(cfg.AuthURL)
	if err != nil {
		return "", fmt.Errorf("parse auth url: %w", err)
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", cfg.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", cfg.Scope)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type tokenError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Exchange trades an authorization code for tokens.
func (c *Client) Exchange(ctx context.Context, code, redirectURI string) (*domain.TokenSet, error) {
	ctx, span := tracer.Start(ctx, "ContaAzul.Exchange")
	defer span.End()

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	return c.token(ctx, form)
}

// Refresh trades a refresh token for a new token set.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.TokenSet, error) {
	ctx, span := tracer.Start(ctx, "ContaAzul.Refresh")
	defer span.End()

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.token(ctx, form)
}

// token posts to the token endpoint once, behind the breaker. A rejected
// grant is returned as ErrInvalidGrant; other 4xx answers except 429 are
// permanent. Neither trips the breaker.
func (c *Client) token(ctx context.Context, form url.Values) (*domain.TokenSet, error) {
	var (
		tokens   domain.TokenSet
		grantErr error
	)
	_, err := c.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}

		if resp.StatusCode/100 != 2 {
			var te tokenError
			_ = json.Unmarshal(body, &te)
			c.logger.Warn("contaazul: token endpoint rejected request",
				zap.Int("status", resp.StatusCode),
				zap.String("grant_type", form.Get("grant_type")),
				zap.String("error", te.Error),
			)
			if te.Error == "invalid_grant" {
				grantErr = &domain.ErrInvalidGrant{Description: te.ErrorDescription}
				return nil, nil
			}
			err := fmt.Errorf("token http %d", resp.StatusCode)
			if te.Error != "" {
				err = fmt.Errorf("token http %d: %s: %s", resp.StatusCode, te.Error, te.ErrorDescription)
			}
			if resp.StatusCode/100 == 4 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, resilience.Permanent(err)
			}
			return nil, err
		}

		if err := json.Unmarshal(body, &tokens); err != nil {
			return nil, fmt.Errorf("decode token response: %w", err)
		}
		if tokens.AccessToken == "" {
			return nil, errors.New("token response without access_token")
		}
		return nil, nil
	})

	if grantErr != nil {
		return nil, grantErr
	}
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.ErrCircuitOpen{Service: "contaazul/oauth"}
		}
		return nil, &domain.ErrExternalService{Service: "contaazul/oauth", Err: err}
	}
	return &tokens, nil
}
