package handler

import (
	"net/http"
	"strings"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Tenants
// ============================================================

func listTenantsHandler(svc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/tenants")
		defer span.End()

		q := r.URL.Query()
		page, pageSize := parsePagination(r)
		filter := domain.TenantFilter{
			Status:   domain.TenantStatus(strings.ToUpper(q.Get("status"))),
			Search:   strings.TrimSpace(q.Get("search")),
			Page:     page,
			PageSize: pageSize,
		}
		// Admins may narrow the listing to one partner.
		filter.PartnerID = q.Get("partner_id")

		resp, err := svc.List(ctx, ActorFromContext(ctx), filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createTenantHandler(svc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/tenants")
		defer span.End()

		var req domain.CreateTenantRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		tenant, err := svc.Create(ctx, ActorFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, tenant)
	}
}

func getTenantHandler(svc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/tenants/{tenantId}")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantId")
		span.SetAttributes(attribute.String("tenant.id", tenantID))

		tenant, err := svc.Get(ctx, ActorFromContext(ctx), tenantID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tenant)
	}
}

func updateTenantHandler(svc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/tenants/{tenantId}")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantId")
		span.SetAttributes(attribute.String("tenant.id", tenantID))

		var req domain.UpdateTenantRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		tenant, err := svc.Update(ctx, ActorFromContext(ctx), tenantID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tenant)
	}
}

func deleteTenantHandler(svc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/tenants/{tenantId}")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantId")
		span.SetAttributes(attribute.String("tenant.id", tenantID))

		if err := svc.Delete(ctx, ActorFromContext(ctx), tenantID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func tenantDashboardHandler(svc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/tenants/{tenantId}/dashboard")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantId")
		span.SetAttributes(attribute.String("tenant.id", tenantID))

		dash, err := svc.Dashboard(ctx, ActorFromContext(ctx), tenantID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, dash)
	}
}
