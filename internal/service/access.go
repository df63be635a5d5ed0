// Package service holds the console use cases. Every operation that touches
// a tenant resolves access through authorizeTenant first.
package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/port"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// authorizeTenant loads the tenant and checks the actor may manage it.
// Partners get ErrNotFound for tenants of other partners so ids do not leak.
func authorizeTenant(ctx context.Context, tenants port.TenantStore, actor *domain.UserProfile, tenantID string) (*domain.Tenant, error) {
	if actor == nil || !actor.Active {
		return nil, &domain.ErrUnauthorized{Message: "Sessão inválida"}
	}

	tenant, err := tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	if tenant == nil || !actor.CanManageTenant(tenant) {
		return nil, &domain.ErrNotFound{Resource: "tenant", ID: tenantID}
	}
	return tenant, nil
}

func requireAdmin(actor *domain.UserProfile, action string) error {
	if actor == nil || !actor.Active {
		return &domain.ErrUnauthorized{Message: "Sessão inválida"}
	}
	if !actor.IsAdmin() {
		return &domain.ErrForbidden{Action: action}
	}
	return nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func listResponse[T any](data []T, total, page, pageSize int) *domain.ListResponse[T] {
	if data == nil {
		data = []T{}
	}
	return &domain.ListResponse[T]{
		Data:     data,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		HasMore:  page*pageSize < total,
	}
}
