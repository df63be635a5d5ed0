package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/service"

	"go.uber.org/zap"
)

type contextKey string

const actorKey contextKey = "actor"

// JWTAuthMiddleware validates Bearer tokens, loads the console profile of
// the subject and injects it into the context.
func JWTAuthMiddleware(authSvc *service.AuthService, users *service.UserService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "Token de autenticação não fornecido")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "Formato de token inválido")
				return
			}

			claims, err := authSvc.ValidateAccessToken(parts[1])
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			profile, err := users.GetProfile(r.Context(), claims.Subject)
			if err != nil {
				var nf *domain.ErrNotFound
				if errors.As(err, &nf) {
					writeError(w, http.StatusForbidden, "Usuário sem perfil no console")
					return
				}
				handleServiceError(w, err, logger)
				return
			}
			if !profile.Active {
				logger.Warn("auth: deactivated user", zap.String("user_id", profile.ID))
				writeError(w, http.StatusForbidden, "Usuário desativado")
				return
			}

			ctx := context.WithValue(r.Context(), actorKey, profile)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests whose actor is not an ADMIN.
// It must run after JWTAuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ActorFromContext(r.Context()).IsAdmin() {
			writeError(w, http.StatusForbidden, "Acesso restrito a administradores")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ActorFromContext returns the authenticated profile, or nil.
func ActorFromContext(ctx context.Context) *domain.UserProfile {
	v, _ := ctx.Value(actorKey).(*domain.UserProfile)
	return v
}
