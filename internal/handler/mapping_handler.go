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
// Regras de mapeamento
// ============================================================

func listRulesHandler(svc *service.MappingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/tenants/{tenantId}/mapping-rules")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantId")
		span.SetAttributes(attribute.String("tenant.id", tenantID))

		rules, err := svc.List(ctx, ActorFromContext(ctx), tenantID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
	}
}

func createRuleHandler(svc *service.MappingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/tenants/{tenantId}/mapping-rules")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantId")
		span.SetAttributes(attribute.String("tenant.id", tenantID))

		var req domain.MappingRuleRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		rule, err := svc.Create(ctx, ActorFromContext(ctx), tenantID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, rule)
	}
}

func updateRuleHandler(svc *service.MappingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/tenants/{tenantId}/mapping-rules/{ruleId}")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantId")
		ruleID := chi.URLParam(r, "ruleId")
		span.SetAttributes(attribute.String("tenant.id", tenantID), attribute.String("rule.id", ruleID))

		var req domain.MappingRuleRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		rule, err := svc.Update(ctx, ActorFromContext(ctx), tenantID, ruleID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rule)
	}
}

func deleteRuleHandler(svc *service.MappingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/tenants/{tenantId}/mapping-rules/{ruleId}")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantId")
		ruleID := chi.URLParam(r, "ruleId")
		span.SetAttributes(attribute.String("tenant.id", tenantID), attribute.String("rule.id", ruleID))

		if err := svc.Delete(ctx, ActorFromContext(ctx), tenantID, ruleID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func simulateHandler(svc *service.MappingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/tenants/{tenantId}/mapping-rules/simulate")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantId")
		span.SetAttributes(attribute.String("tenant.id", tenantID))

		var req domain.SimulationRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		result, err := svc.Simulate(ctx, ActorFromContext(ctx), tenantID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
