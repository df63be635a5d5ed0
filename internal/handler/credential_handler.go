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
// Credenciais
// ============================================================

func listCredentialsHandler(svc *service.CredentialService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/tenants/{tenantId}/credentials")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantId")
		span.SetAttributes(attribute.String("tenant.id", tenantID))

		creds, err := svc.List(ctx, ActorFromContext(ctx), tenantID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"credentials": creds})
	}
}

func createCredentialHandler(svc *service.CredentialService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/tenants/{tenantId}/credentials")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantId")
		span.SetAttributes(attribute.String("tenant.id", tenantID))

		var req domain.CreateCredentialRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		cred, err := svc.CreateOlist(ctx, ActorFromContext(ctx), tenantID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, cred)
	}
}

func revokeCredentialHandler(svc *service.CredentialService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/tenants/{tenantId}/credentials/{credentialId}")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantId")
		credentialID := chi.URLParam(r, "credentialId")
		span.SetAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("credential.id", credentialID),
		)

		if err := svc.Revoke(ctx, ActorFromContext(ctx), tenantID, credentialID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func refreshCredentialHandler(svc *service.CredentialService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/tenants/{tenantId}/credentials/{credentialId}/refresh")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantId")
		credentialID := chi.URLParam(r, "credentialId")
		span.SetAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("credential.id", credentialID),
		)

		cred, err := svc.Refresh(ctx, ActorFromContext(ctx), tenantID, credentialID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cred)
	}
}
