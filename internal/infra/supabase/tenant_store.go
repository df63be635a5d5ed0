package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// TenantStore implementation
// ============================================================

func (c *Client) ListTenants(ctx context.Context, f domain.TenantFilter) ([]domain.Tenant, int, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTenants")
	defer span.End()

	q := url.Values{}
	q.Set("deleted_at", "is.null")
	q.Set("order", "name.asc")
	if f.PartnerID != "" {
		q.Set("partner_id", "eq."+f.PartnerID)
	}
	if f.Status != "" {
		q.Set("status", "eq."+string(f.Status))
	}
	if s := postgrestLike(f.Search); s != "" {
		if digits := domain.NormalizeCNPJ(f.Search); digits != "" {
			q.Set("or", fmt.Sprintf("(name.ilike.*%s*,cnpj.like.*%s*)", s, digits))
		} else {
			q.Set("name", "ilike.*"+s+"*")
		}
	}
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		q.Set("limit", strconv.Itoa(f.PageSize))
		q.Set("offset", strconv.Itoa((page-1)*f.PageSize))
	}

	var (
		tenants []domain.Tenant
		total   int
	)
	err := c.execute(ctx, "supabase/tenants", func() error {
		body, n, err := c.doCount(ctx, tableTenants+"?"+q.Encode())
		if err != nil {
			return err
		}
		tenants = []domain.Tenant{}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &tenants); err != nil {
				return fmt.Errorf("decode tenants: %w", err)
			}
		}
		total = n
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	if total < len(tenants) {
		total = len(tenants)
	}
	return tenants, total, nil
}

func (c *Client) GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetTenant")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	return c.getTenantBy(ctx, "id", tenantID)
}

func (c *Client) GetTenantByCNPJ(ctx context.Context, cnpj string) (*domain.Tenant, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetTenantByCNPJ")
	defer span.End()

	return c.getTenantBy(ctx, "cnpj", cnpj)
}

func (c *Client) getTenantBy(ctx context.Context, column, value string) (*domain.Tenant, error) {
	q := url.Values{}
	q.Set(column, "eq."+value)
	q.Set("deleted_at", "is.null")
	q.Set("limit", "1")

	var tenant *domain.Tenant
	err := c.execute(ctx, "supabase/tenants", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, tableTenants+"?"+q.Encode())
		if err != nil {
			return err
		}
		tenant, err = decodeFirst[domain.Tenant](body)
		return err
	})
	return tenant, err
}

func (c *Client) CreateTenant(ctx context.Context, t *domain.Tenant) (*domain.Tenant, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateTenant")
	defer span.End()

	data := map[string]any{
		"partner_id":           t.PartnerID,
		"name":                 t.Name,
		"cnpj":                 t.CNPJ,
		"status":               t.Status,
		"plan":                 t.Plan,
		"conta_azul_connected": false,
		"olist_connected":      false,
	}

	var created *domain.Tenant
	err := c.executeOnce(ctx, "supabase/tenants", func() error {
		body, err := c.doPost(ctx, tableTenants, data)
		if err != nil {
			return err
		}
		created, err = decodeFirst[domain.Tenant](body)
		if err != nil {
			return fmt.Errorf("decode created tenant: %w", err)
		}
		if created == nil {
			return fmt.Errorf("supabase returned no tenant")
		}
		return nil
	})
	return created, err
}

func (c *Client) UpdateTenant(ctx context.Context, tenantID string, updates map[string]any) (*domain.Tenant, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateTenant")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	updates["updated_at"] = time.Now().UTC()
	path := fmt.Sprintf("%s?id=eq.%s&deleted_at=is.null", tableTenants, url.QueryEscape(tenantID))

	var tenant *domain.Tenant
	err := c.execute(ctx, "supabase/tenants", func() error {
		body, err := c.doPatch(ctx, path, updates)
		if err != nil {
			return err
		}
		tenant, err = decodeFirst[domain.Tenant](body)
		return err
	})
	return tenant, err
}

func (c *Client) SoftDeleteTenant(ctx context.Context, tenantID string, at time.Time) error {
	ctx, span := tracer.Start(ctx, "Supabase.SoftDeleteTenant")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	path := fmt.Sprintf("%s?id=eq.%s", tableTenants, url.QueryEscape(tenantID))
	return c.execute(ctx, "supabase/tenants", func() error {
		_, err := c.doPatch(ctx, path, map[string]any{
			"deleted_at": at.UTC(),
			"status":     domain.TenantInactive,
			"updated_at": at.UTC(),
		})
		return err
	})
}

func (c *Client) SetConnectionFlag(ctx context.Context, tenantID string, platform domain.Platform, connected bool) error {
	ctx, span := tracer.Start(ctx, "Supabase.SetConnectionFlag")
	defer span.End()

	column := "olist_connected"
	if platform == domain.PlatformContaAzul {
		column = "conta_azul_connected"
	}
	path := fmt.Sprintf("%s?id=eq.%s", tableTenants, url.QueryEscape(tenantID))
	return c.execute(ctx, "supabase/tenants", func() error {
		_, err := c.doPatch(ctx, path, map[string]any{
			column:       connected,
			"updated_at": time.Now().UTC(),
		})
		return err
	})
}

// postgrestLike strips characters that carry meaning inside PostgREST
// filter expressions.
func postgrestLike(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ',', '(', ')', '*', '%', '.', ':', '"', '\\':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
