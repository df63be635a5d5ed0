package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/observability"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/mapping"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var mappingTracer = otel.Tracer("service/mapping")

// MappingService manages mapping rules and runs the simulator.
type MappingService struct {
	tenants port.TenantStore
	rules   port.MappingRuleStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewMappingService creates a new mapping service.
func NewMappingService(tenants port.TenantStore, rules port.MappingRuleStore, metrics *observability.Metrics, logger *zap.Logger) *MappingService {
	return &MappingService{tenants: tenants, rules: rules, metrics: metrics, logger: logger}
}

// List returns the tenant's rules, highest priority first.
func (s *MappingService) List(ctx context.Context, actor *domain.UserProfile, tenantID string) ([]domain.MappingRule, error) {
	ctx, span := mappingTracer.Start(ctx, "MappingService.List")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if _, err := authorizeTenant(ctx, s.tenants, actor, tenantID); err != nil {
		return nil, err
	}
	rules, err := s.rules.ListRules(ctx, tenantID, false)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	if rules == nil {
		rules = []domain.MappingRule{}
	}
	return rules, nil
}

// Create adds a rule. Rules are active unless stated otherwise.
func (s *MappingService) Create(ctx context.Context, actor *domain.UserProfile, tenantID string, req *domain.MappingRuleRequest) (*domain.MappingRule, error) {
	ctx, span := mappingTracer.Start(ctx, "MappingService.Create")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if err := validateRule(req); err != nil {
		return nil, err
	}
	if _, err := authorizeTenant(ctx, s.tenants, actor, tenantID); err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	rule, err := s.rules.CreateRule(ctx, &domain.MappingRule{
		TenantID:       tenantID,
		ConditionField: req.ConditionField,
		ConditionValue: req.ConditionValue,
		TargetAccount:  req.TargetAccount,
		Priority:       req.Priority,
		EntryType:      req.EntryType,
		DefaultAccount: req.DefaultAccount,
		Active:         active,
		Description:    req.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}

	s.logger.Info("mapping rule created",
		zap.String("tenant_id", tenantID),
		zap.String("rule_id", rule.ID),
		zap.String("field", string(rule.ConditionField)),
		zap.Int("priority", rule.Priority),
	)
	return rule, nil
}

// Update replaces a rule's editable fields.
func (s *MappingService) Update(ctx context.Context, actor *domain.UserProfile, tenantID, ruleID string, req *domain.MappingRuleRequest) (*domain.MappingRule, error) {
	ctx, span := mappingTracer.Start(ctx, "MappingService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID), attribute.String("rule.id", ruleID))

	if err := validateRule(req); err != nil {
		return nil, err
	}
	if _, err := s.tenantRule(ctx, actor, tenantID, ruleID); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"condition_field": req.ConditionField,
		"condition_value": req.ConditionValue,
		"target_account":  req.TargetAccount,
		"priority":        req.Priority,
		"entry_type":      req.EntryType,
		"default_account": req.DefaultAccount,
		"description":     req.Description,
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	rule, err := s.rules.UpdateRule(ctx, ruleID, updates)
	if err != nil {
		return nil, fmt.Errorf("update rule: %w", err)
	}
	if rule == nil {
		return nil, &domain.ErrNotFound{Resource: "mapping rule", ID: ruleID}
	}
	return rule, nil
}

// Delete removes a rule.
func (s *MappingService) Delete(ctx context.Context, actor *domain.UserProfile, tenantID, ruleID string) error {
	ctx, span := mappingTracer.Start(ctx, "MappingService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID), attribute.String("rule.id", ruleID))

	if _, err := s.tenantRule(ctx, actor, tenantID, ruleID); err != nil {
		return err
	}
	if err := s.rules.DeleteRule(ctx, ruleID); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}

// Simulate evaluates an order against the tenant's active rules, or against
// the ad-hoc rules of the request when given. Ad-hoc rules are all treated
// as active.
func (s *MappingService) Simulate(ctx context.Context, actor *domain.UserProfile, tenantID string, req *domain.SimulationRequest) (*domain.SimulationResult, error) {
	ctx, span := mappingTracer.Start(ctx, "MappingService.Simulate")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if _, err := authorizeTenant(ctx, s.tenants, actor, tenantID); err != nil {
		return nil, err
	}
	if len(req.Order.Items) == 0 {
		return nil, &domain.ErrValidation{Field: "order.items", Message: "pedido sem itens"}
	}

	var rules []domain.MappingRule
	if len(req.Rules) > 0 {
		if err := mapping.ValidateRules(req.Rules); err != nil {
			return nil, err
		}
		rules = make([]domain.MappingRule, len(req.Rules))
		copy(rules, req.Rules)
		for i := range rules {
			rules[i].Active = true
		}
	} else {
		var err error
		rules, err = s.rules.ListRules(ctx, tenantID, true)
		if err != nil {
			return nil, fmt.Errorf("list rules: %w", err)
		}
	}

	start := time.Now()
	result := mapping.Evaluate(req.Order, rules)
	s.metrics.RecordRequestDuration("simulate", time.Since(start))
	s.metrics.RecordSimulation(len(req.Order.Items)-len(result.UnmatchedItems), len(result.UnmatchedItems))

	span.SetAttributes(
		attribute.Int("simulation.entries", len(result.Entries)),
		attribute.Int("simulation.unmatched", len(result.UnmatchedItems)),
	)
	return result, nil
}

func (s *MappingService) tenantRule(ctx context.Context, actor *domain.UserProfile, tenantID, ruleID string) (*domain.MappingRule, error) {
	if _, err := authorizeTenant(ctx, s.tenants, actor, tenantID); err != nil {
		return nil, err
	}
	rule, err := s.rules.GetRule(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	if rule == nil || rule.TenantID != tenantID {
		return nil, &domain.ErrNotFound{Resource: "mapping rule", ID: ruleID}
	}
	return rule, nil
}

func validateRule(req *domain.MappingRuleRequest) error {
	return mapping.ValidateRule(domain.MappingRule{
		ConditionField: req.ConditionField,
		ConditionValue: req.ConditionValue,
		TargetAccount:  req.TargetAccount,
		EntryType:      req.EntryType,
	})
}
