package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var authTracer = otel.Tracer("service/auth")

// supabaseAudience is the aud claim of end-user access tokens.
const supabaseAudience = "authenticated"

// AuthService proxies sign-up, sign-in, refresh and password reset to
// Supabase GoTrue and validates the access tokens it issues.
type AuthService struct {
	provider    port.AuthProvider
	users       *UserService
	jwtSecret   []byte
	frontendURL string
	logger      *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(provider port.AuthProvider, users *UserService, jwtSecret, frontendURL string, logger *zap.Logger) *AuthService {
	return &AuthService{
		provider:    provider,
		users:       users,
		jwtSecret:   []byte(jwtSecret),
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
	}
}

// ============================================================
// SignUp: POST /v1/auth/signup
// ============================================================

func (s *AuthService) SignUp(ctx context.Context, req *domain.SignUpRequest) (*domain.SignUpResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.SignUp")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, session, err := s.provider.SignUp(ctx, email, req.Password, map[string]any{
		"name":         req.Name,
		"company_name": req.CompanyName,
		"phone":        req.Phone,
	})
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	if user == nil || user.ID == "" {
		return nil, &domain.ErrExternalService{Service: "supabase/auth", Err: errors.New("sign-up returned no user")}
	}

	profile, err := s.users.CreateProfile(ctx, &domain.UserProfile{
		ID:          user.ID,
		Name:        req.Name,
		Email:       email,
		Phone:       req.Phone,
		CompanyName: req.CompanyName,
		Role:        domain.RolePartner,
		Active:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID))

	resp := &domain.SignUpResponse{
		UserID:               user.ID,
		ConfirmationRequired: session == nil,
		Session:              session,
		Message:              "Cadastro realizado com sucesso",
	}
	if session == nil {
		resp.Message = "Cadastro realizado. Confirme seu e-mail para entrar"
	} else {
		session.User = profile
	}
	return resp, nil
}

// ============================================================
// SignIn: POST /v1/auth/signin
// ============================================================

func (s *AuthService) SignIn(ctx context.Context, req *domain.SignInRequest) (*domain.Session, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.SignIn")
	defer span.End()

	user, session, err := s.provider.SignIn(ctx, strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return s.attachProfile(ctx, user, session)
}

// ============================================================
// Refresh: POST /v1/auth/refresh
// ============================================================

func (s *AuthService) Refresh(ctx context.Context, req *domain.RefreshRequest) (*domain.Session, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Refresh")
	defer span.End()

	user, session, err := s.provider.RefreshSession(ctx, req.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	return s.attachProfile(ctx, user, session)
}

// ============================================================
// RequestPasswordReset: POST /v1/auth/password/reset
// ============================================================

// RequestPasswordReset asks GoTrue to e-mail a reset link. It answers the
// same way whether or not the address exists.
func (s *AuthService) RequestPasswordReset(ctx context.Context, req *domain.PasswordResetRequest) error {
	ctx, span := authTracer.Start(ctx, "AuthService.RequestPasswordReset")
	defer span.End()

	redirect := ""
	if s.frontendURL != "" {
		redirect = s.frontendURL + "/reset-password"
	}
	if err := s.provider.RecoverPassword(ctx, strings.ToLower(strings.TrimSpace(req.Email)), redirect); err != nil {
		return fmt.Errorf("recover password: %w", err)
	}
	return nil
}

// attachProfile rejects deactivated users and embeds the profile in the session.
func (s *AuthService) attachProfile(ctx context.Context, user *domain.AuthUser, session *domain.Session) (*domain.Session, error) {
	if user == nil || session == nil {
		return nil, &domain.ErrUnauthorized{Message: "Sessão inválida"}
	}
	profile, err := s.users.GetProfile(ctx, user.ID)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return nil, &domain.ErrForbidden{Action: "usuário sem perfil no console"}
		}
		return nil, err
	}
	if !profile.Active {
		s.logger.Warn("sign-in of deactivated user", zap.String("user_id", user.ID))
		return nil, &domain.ErrForbidden{Action: "usuário desativado"}
	}
	session.User = profile
	return session, nil
}

// ============================================================
// ValidateAccessToken: used by middleware
// ============================================================

// JWTClaims are the claims of a Supabase access token.
type JWTClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// ValidateAccessToken checks a Supabase-issued HS256 access token.
func (s *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithAudience(supabaseAudience), jwt.WithExpirationRequired())
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido ou expirado"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido"}
	}
	return claims, nil
}
