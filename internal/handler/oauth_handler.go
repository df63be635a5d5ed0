package handler

import (
	"net/http"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Conta Azul OAuth
// ============================================================

func oauthAuthorizeHandler(svc *service.OAuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/tenants/{tenantId}/oauth/contaazul/authorize")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantId")
		span.SetAttributes(attribute.String("tenant.id", tenantID))

		resp, err := svc.Authorize(ctx, ActorFromContext(ctx), tenantID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// oauthCallbackRedirectHandler is the redirect_uri registered at Conta Azul.
// It always answers with a redirect to the SPA result page.
func oauthCallbackRedirectHandler(svc *service.OAuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/oauth/contaazul/callback")
		defer span.End()

		// Browsers never send the fragment; the query is all there is.
		params := service.CallbackParamsFrom(r.URL.Query(), nil)
		result := svc.HandleCallback(ctx, params)
		span.SetAttributes(attribute.Bool("oauth.success", result.Success))

		http.Redirect(w, r, result.RedirectURL, http.StatusFound)
	}
}

// oauthCallbackURLHandler lets the SPA forward the full callback URL when
// the provider put the parameters in the hash fragment.
func oauthCallbackURLHandler(svc *service.OAuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/oauth/contaazul/callback")
		defer span.End()

		var req domain.CallbackURLRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		params, err := service.ParseCallbackURL(req.URL)
		if err != nil {
			logger.Debug("unparseable callback url", zap.Error(err))
			writeError(w, http.StatusBadRequest, "URL de retorno inválida")
			return
		}

		result := svc.HandleCallback(ctx, params)
		span.SetAttributes(attribute.Bool("oauth.success", result.Success))

		status := http.StatusOK
		if !result.Success {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, result)
	}
}
