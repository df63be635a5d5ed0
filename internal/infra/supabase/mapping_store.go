package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// MappingRuleStore implementation
// ============================================================

func (c *Client) ListRules(ctx context.Context, tenantID string, activeOnly bool) ([]domain.MappingRule, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListRules")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	q := url.Values{}
	q.Set("tenant_id", "eq."+tenantID)
	q.Set("order", "priority.desc,created_at.asc")
	if activeOnly {
		q.Set("active", "eq.true")
	}

	var rules []domain.MappingRule
	err := c.execute(ctx, "supabase/mapping_rules", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, tableRules+"?"+q.Encode())
		if err != nil {
			return err
		}
		rules = []domain.MappingRule{}
		if body == nil {
			return nil
		}
		if err := json.Unmarshal(body, &rules); err != nil {
			return fmt.Errorf("decode mapping_rules: %w", err)
		}
		return nil
	})
	return rules, err
}

func (c *Client) GetRule(ctx context.Context, ruleID string) (*domain.MappingRule, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetRule")
	defer span.End()

	path := fmt.Sprintf("%s?id=eq.%s&limit=1", tableRules, url.QueryEscape(ruleID))
	var rule *domain.MappingRule
	err := c.execute(ctx, "supabase/mapping_rules", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		rule, err = decodeFirst[domain.MappingRule](body)
		return err
	})
	return rule, err
}

func (c *Client) CreateRule(ctx context.Context, rule *domain.MappingRule) (*domain.MappingRule, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateRule")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", rule.TenantID))

	data := map[string]any{
		"tenant_id":       rule.TenantID,
		"condition_field": rule.ConditionField,
		"condition_value": rule.ConditionValue,
		"target_account":  rule.TargetAccount,
		"priority":        rule.Priority,
		"entry_type":      rule.EntryType,
		"default_account": rule.DefaultAccount,
		"active":          rule.Active,
		"description":     rule.Description,
	}

	var created *domain.MappingRule
	err := c.executeOnce(ctx, "supabase/mapping_rules", func() error {
		body, err := c.doPost(ctx, tableRules, data)
		if err != nil {
			return err
		}
		created, err = decodeFirst[domain.MappingRule](body)
		if err != nil {
			return fmt.Errorf("decode created rule: %w", err)
		}
		if created == nil {
			return fmt.Errorf("supabase returned no rule")
		}
		return nil
	})
	return created, err
}

func (c *Client) UpdateRule(ctx context.Context, ruleID string, updates map[string]any) (*domain.MappingRule, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateRule")
	defer span.End()

	updates["updated_at"] = time.Now().UTC()
	path := fmt.Sprintf("%s?id=eq.%s", tableRules, url.QueryEscape(ruleID))

	var rule *domain.MappingRule
	err := c.execute(ctx, "supabase/mapping_rules", func() error {
		body, err := c.doPatch(ctx, path, updates)
		if err != nil {
			return err
		}
		rule, err = decodeFirst[domain.MappingRule](body)
		return err
	})
	return rule, err
}

func (c *Client) DeleteRule(ctx context.Context, ruleID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteRule")
	defer span.End()

	path := fmt.Sprintf("%s?id=eq.%s", tableRules, url.QueryEscape(ruleID))
	return c.execute(ctx, "supabase/mapping_rules", func() error {
		return c.doDelete(ctx, path)
	})
}
