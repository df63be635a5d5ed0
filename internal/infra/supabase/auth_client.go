package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/resilience"

	"go.uber.org/zap"
)

// ============================================================
// AuthProvider implementation (GoTrue)
// ============================================================

type goTrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type goTrueSession struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	User         *goTrueUser `json:"user"`
}

// goTrueSignUp covers both sign-up shapes: a session when the project
// auto-confirms, a bare user when e-mail confirmation is pending.
type goTrueSignUp struct {
	goTrueSession
	ID    string `json:"id"`
	Email string `json:"email"`
}

type goTrueError struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (s *goTrueSession) toDomain() (*domain.AuthUser, *domain.Session) {
	var user *domain.AuthUser
	if s.User != nil {
		user = &domain.AuthUser{ID: s.User.ID, Email: s.User.Email}
	}
	return user, &domain.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		ExpiresIn:    s.ExpiresIn,
		ExpiresAt:    s.ExpiresAt,
	}
}

func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*domain.AuthUser, *domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignUp")
	defer span.End()

	payload := map[string]any{
		"email":    email,
		"password": password,
		"data":     metadata,
	}

	var out goTrueSignUp
	if err := c.authCall(ctx, "signup", payload, &out); err != nil {
		return nil, nil, err
	}

	if out.AccessToken == "" {
		id := out.ID
		if id == "" && out.User != nil {
			id = out.User.ID
		}
		return &domain.AuthUser{ID: id, Email: out.Email}, nil, nil
	}
	user, session := out.goTrueSession.toDomain()
	return user, session, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.AuthUser, *domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignIn")
	defer span.End()

	var out goTrueSession
	payload := map[string]string{"email": email, "password": password}
	if err := c.authCall(ctx, "token?grant_type=password", payload, &out); err != nil {
		return nil, nil, err
	}
	user, session := out.toDomain()
	return user, session, nil
}

func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*domain.AuthUser, *domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.RefreshSession")
	defer span.End()

	var out goTrueSession
	payload := map[string]string{"refresh_token": refreshToken}
	if err := c.authCall(ctx, "token?grant_type=refresh_token", payload, &out); err != nil {
		return nil, nil, err
	}
	user, session := out.toDomain()
	return user, session, nil
}

func (c *Client) RecoverPassword(ctx context.Context, email, redirectTo string) error {
	ctx, span := tracer.Start(ctx, "Supabase.RecoverPassword")
	defer span.End()

	path := "recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	return c.authCall(ctx, path, map[string]string{"email": email}, nil)
}

// authCall posts to GoTrue once. GoTrue rejections come back as domain
// errors; transport failures as ErrExternalService.
func (c *Client) authCall(ctx context.Context, path string, payload, out any) error {
	var authErr error
	err := c.executeOnce(ctx, "supabase/auth", func() error {
		body, err := c.doAuth(ctx, path, payload)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) {
				authErr = mapAuthError(se.Status, body)
				return resilience.Permanent(err)
			}
			return err
		}
		if out == nil || len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode auth response: %w", err)
		}
		return nil
	})
	if authErr != nil {
		c.logger.Debug("supabase: auth rejected", zap.String("path", path), zap.Error(authErr))
		return authErr
	}
	return err
}

// mapAuthError turns a GoTrue error body into a domain error using its
// error_code and HTTP status.
func mapAuthError(status int, body []byte) error {
	var ge goTrueError
	_ = json.Unmarshal(body, &ge)

	code := ge.ErrorCode
	if code == "" {
		code = ge.Error
	}

	switch code {
	case "user_already_exists", "email_exists", "phone_exists":
		return &domain.ErrConflict{Message: "E-mail já cadastrado"}
	case "over_email_send_rate_limit", "over_request_rate_limit", "over_sms_send_rate_limit":
		return &domain.ErrRateLimited{}
	case "invalid_credentials", "invalid_grant":
		return &domain.ErrUnauthorized{Message: "E-mail ou senha inválidos"}
	case "email_not_confirmed":
		return &domain.ErrUnauthorized{Message: "E-mail ainda não confirmado"}
	case "refresh_token_not_found", "refresh_token_already_used", "session_not_found", "session_expired":
		return &domain.ErrUnauthorized{Message: "Sessão expirada. Entre novamente"}
	case "weak_password":
		return &domain.ErrValidation{Field: "password", Message: "Senha fraca"}
	case "validation_failed", "email_address_invalid":
		return &domain.ErrValidation{Field: "email", Message: "E-mail inválido"}
	case "signup_disabled":
		return &domain.ErrForbidden{Action: "cadastro desabilitado"}
	}

	switch {
	case status == http.StatusTooManyRequests:
		return &domain.ErrRateLimited{}
	case status == http.StatusUnauthorized:
		return &domain.ErrUnauthorized{}
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		msg := ge.Msg
		if msg == "" {
			msg = ge.ErrorDescription
		}
		if msg == "" {
			msg = "requisição inválida"
		}
		return &domain.ErrValidation{Field: "auth", Message: msg}
	}
	return &domain.ErrExternalService{
		Service: "supabase/auth",
		Err:     fmt.Errorf("status %d: %s", status, string(body)),
	}
}
