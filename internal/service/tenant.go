package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tenantTracer = otel.Tracer("service/tenant")

// TenantService manages a partner's client companies.
type TenantService struct {
	tenants     port.TenantStore
	credentials port.CredentialStore
	rules       port.MappingRuleStore
	logger      *zap.Logger
	now         func() time.Time
}

// NewTenantService creates a new tenant service.
func NewTenantService(tenants port.TenantStore, credentials port.CredentialStore, rules port.MappingRuleStore, logger *zap.Logger) *TenantService {
	return &TenantService{
		tenants:     tenants,
		credentials: credentials,
		rules:       rules,
		logger:      logger,
		now:         time.Now,
	}
}

// List returns the tenants visible to the actor. Partners only see their own.
func (s *TenantService) List(ctx context.Context, actor *domain.UserProfile, filter domain.TenantFilter) (*domain.ListResponse[domain.Tenant], error) {
	ctx, span := tenantTracer.Start(ctx, "TenantService.List")
	defer span.End()

	if actor == nil || !actor.Active {
		return nil, &domain.ErrUnauthorized{Message: "Sessão inválida"}
	}
	if !actor.IsAdmin() {
		filter.PartnerID = actor.ID
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, &domain.ErrValidation{Field: "status", Message: "status inválido"}
	}
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)

	tenants, total, err := s.tenants.ListTenants(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return listResponse(tenants, total, filter.Page, filter.PageSize), nil
}

// Get returns one tenant.
func (s *TenantService) Get(ctx context.Context, actor *domain.UserProfile, tenantID string) (*domain.Tenant, error) {
	ctx, span := tenantTracer.Start(ctx, "TenantService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	return authorizeTenant(ctx, s.tenants, actor, tenantID)
}

// Create registers a new tenant. Admins may create it on behalf of a partner.
func (s *TenantService) Create(ctx context.Context, actor *domain.UserProfile, req *domain.CreateTenantRequest) (*domain.Tenant, error) {
	ctx, span := tenantTracer.Start(ctx, "TenantService.Create")
	defer span.End()

	if actor == nil || !actor.Active {
		return nil, &domain.ErrUnauthorized{Message: "Sessão inválida"}
	}

	cnpj, err := s.checkCNPJ(ctx, req.CNPJ, "")
	if err != nil {
		return nil, err
	}

	partnerID := actor.ID
	if req.PartnerID != "" && req.PartnerID != actor.ID {
		if !actor.IsAdmin() {
			return nil, &domain.ErrForbidden{Action: "criar tenant para outro parceiro"}
		}
		partnerID = req.PartnerID
	}

	plan := req.Plan
	if plan == "" {
		plan = domain.PlanBasic
	}

	tenant, err := s.tenants.CreateTenant(ctx, &domain.Tenant{
		PartnerID: partnerID,
		Name:      req.Name,
		CNPJ:      cnpj,
		Status:    domain.TenantActive,
		Plan:      plan,
	})
	if err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}

	s.logger.Info("tenant created",
		zap.String("tenant_id", tenant.ID),
		zap.String("partner_id", partnerID),
		zap.String("cnpj", domain.MaskCNPJ(cnpj)),
	)
	return tenant, nil
}

// Update changes the provided fields of a tenant.
func (s *TenantService) Update(ctx context.Context, actor *domain.UserProfile, tenantID string, req *domain.UpdateTenantRequest) (*domain.Tenant, error) {
	ctx, span := tenantTracer.Start(ctx, "TenantService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if _, err := authorizeTenant(ctx, s.tenants, actor, tenantID); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.CNPJ != nil {
		cnpj, err := s.checkCNPJ(ctx, *req.CNPJ, tenantID)
		if err != nil {
			return nil, err
		}
		updates["cnpj"] = cnpj
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, &domain.ErrValidation{Field: "status", Message: "status inválido"}
		}
		updates["status"] = *req.Status
	}
	if req.Plan != nil {
		if !req.Plan.Valid() {
			return nil, &domain.ErrValidation{Field: "plan", Message: "plano inválido"}
		}
		updates["plan"] = *req.Plan
	}
	if len(updates) == 0 {
		return nil, &domain.ErrValidation{Field: "body", Message: "Nenhum campo para atualizar"}
	}

	tenant, err := s.tenants.UpdateTenant(ctx, tenantID, updates)
	if err != nil {
		return nil, fmt.Errorf("update tenant: %w", err)
	}
	if tenant == nil {
		return nil, &domain.ErrNotFound{Resource: "tenant", ID: tenantID}
	}
	return tenant, nil
}

// Delete soft-deletes a tenant.
func (s *TenantService) Delete(ctx context.Context, actor *domain.UserProfile, tenantID string) error {
	ctx, span := tenantTracer.Start(ctx, "TenantService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if _, err := authorizeTenant(ctx, s.tenants, actor, tenantID); err != nil {
		return err
	}
	if err := s.tenants.SoftDeleteTenant(ctx, tenantID, s.now()); err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}

	s.logger.Info("tenant deleted", zap.String("tenant_id", tenantID), zap.String("by", actor.ID))
	return nil
}

// Dashboard gathers the tenant with its credentials and rule counts.
// Credentials and rules are fetched concurrently.
func (s *TenantService) Dashboard(ctx context.Context, actor *domain.UserProfile, tenantID string) (*domain.TenantDashboard, error) {
	ctx, span := tenantTracer.Start(ctx, "TenantService.Dashboard")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	tenant, err := authorizeTenant(ctx, s.tenants, actor, tenantID)
	if err != nil {
		return nil, err
	}

	var (
		creds []domain.TenantCredential
		rules []domain.MappingRule
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		creds, err = s.credentials.ListCredentials(gctx, tenantID)
		return err
	})
	g.Go(func() error {
		var err error
		rules, err = s.rules.ListRules(gctx, tenantID, false)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load dashboard: %w", err)
	}

	dash := &domain.TenantDashboard{
		Tenant:      tenant,
		Credentials: creds,
		TotalRules:  len(rules),
	}
	if dash.Credentials == nil {
		dash.Credentials = []domain.TenantCredential{}
	}
	for _, r := range rules {
		if r.Active {
			dash.ActiveRules++
		}
	}
	for i := range creds {
		if creds[i].Platform == domain.PlatformContaAzul && creds[i].Active {
			dash.ContaAzulExpires = creds[i].ExpiresAt
			break
		}
	}
	return dash, nil
}

// checkCNPJ validates and normalizes a CNPJ and rejects duplicates.
// exceptID is the tenant being updated, if any.
func (s *TenantService) checkCNPJ(ctx context.Context, raw, exceptID string) (string, error) {
	if !domain.ValidCNPJ(raw) {
		return "", &domain.ErrValidation{Field: "cnpj", Message: "CNPJ inválido"}
	}
	cnpj := domain.NormalizeCNPJ(raw)

	existing, err := s.tenants.GetTenantByCNPJ(ctx, cnpj)
	if err != nil {
		return "", fmt.Errorf("check cnpj: %w", err)
	}
	if existing != nil && existing.ID != exceptID {
		return "", &domain.ErrConflict{Message: "CNPJ já cadastrado"}
	}
	return cnpj, nil
}
