package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Mapping rules
// ============================================================

// ConditionField is the order-item attribute a rule inspects.
type ConditionField string

const (
	FieldMarketplace ConditionField = "MARKETPLACE"
	FieldSKU         ConditionField = "SKU"
	FieldCategory    ConditionField = "CATEGORY"
	FieldProductName ConditionField = "PRODUCT_NAME"
)

// Valid reports whether f is a known condition field.
func (f ConditionField) Valid() bool {
	switch f {
	case FieldMarketplace, FieldSKU, FieldCategory, FieldProductName:
		return true
	}
	return false
}

// EntryType is the Conta Azul financial entry type a rule produces.
type EntryType string

const (
	EntryRevenue EntryType = "RECEITA"
	EntryExpense EntryType = "DESPESA"
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	return t == EntryRevenue || t == EntryExpense
}

// MappingRule assigns order items matching a condition to a target account.
// The validate tags are checked by mapping.ValidateRule.
type MappingRule struct {
	ID             string         `json:"id" yaml:"id"`
	TenantID       string         `json:"tenant_id" yaml:"tenant_id"`
	ConditionField ConditionField `json:"condition_field" yaml:"condition_field" validate:"required,oneof=MARKETPLACE SKU CATEGORY PRODUCT_NAME"`
	ConditionValue string         `json:"condition_value" yaml:"condition_value" validate:"required,notblank,max=200"`
	TargetAccount  string         `json:"target_account" yaml:"target_account" validate:"required,notblank,max=100"`
	Priority       int            `json:"priority" yaml:"priority" validate:"gte=0"`
	EntryType      EntryType      `json:"entry_type" yaml:"entry_type" validate:"required,oneof=RECEITA DESPESA"`
	DefaultAccount bool           `json:"default_account" yaml:"default_account"`
	Active         bool           `json:"active" yaml:"active"`
	Description    string         `json:"description,omitempty" yaml:"description"`
	CreatedAt      time.Time      `json:"created_at" yaml:"-"`
	UpdatedAt      time.Time      `json:"updated_at" yaml:"-"`
}

// MappingRuleRequest is the body for creating or replacing a rule.
type MappingRuleRequest struct {
	ConditionField ConditionField `json:"condition_field" validate:"required,oneof=MARKETPLACE SKU CATEGORY PRODUCT_NAME"`
	ConditionValue string         `json:"condition_value" validate:"required,max=200"`
	TargetAccount  string         `json:"target_account" validate:"required,max=100"`
	Priority       int            `json:"priority" validate:"gte=0,lte=10000"`
	EntryType      EntryType      `json:"entry_type" validate:"required,oneof=RECEITA DESPESA"`
	DefaultAccount bool           `json:"default_account"`
	Active         *bool          `json:"active,omitempty"`
	Description    string         `json:"description,omitempty" validate:"max=500"`
}

// ============================================================
// Orders & simulation
// ============================================================

// OrderItem is a single line of an Olist order.
type OrderItem struct {
	ID          string          `json:"id,omitempty" yaml:"id"`
	SKU         string          `json:"sku" yaml:"sku"`
	ProductName string          `json:"product_name" yaml:"product_name"`
	Category    string          `json:"category" yaml:"category"`
	Marketplace string          `json:"marketplace,omitempty" yaml:"marketplace"`
	Quantity    decimal.Decimal `json:"quantity" yaml:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" yaml:"unit_price"`
}

// Total returns quantity × unit price.
func (i OrderItem) Total() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

// Order is the input of the mapping simulator.
type Order struct {
	ID          string      `json:"id,omitempty" yaml:"id"`
	Marketplace string      `json:"marketplace,omitempty" yaml:"marketplace"`
	Items       []OrderItem `json:"items" yaml:"items" validate:"required,min=1"`
}

// FinancialEntry is the synthetic accounting entry produced by one rule.
type FinancialEntry struct {
	RuleID        string          `json:"rule_id"`
	EntryType     EntryType       `json:"entry_type"`
	TargetAccount string          `json:"target_account"`
	Priority      int             `json:"priority"`
	Value         decimal.Decimal `json:"value"`
	Items         []OrderItem     `json:"items"`
}

// SimulationResult is the output of the mapping simulator.
type SimulationResult struct {
	OrderID        string           `json:"order_id,omitempty"`
	Entries        []FinancialEntry `json:"entries"`
	UnmatchedItems []OrderItem      `json:"unmatched_items"`
	TotalMatched   decimal.Decimal  `json:"total_matched"`
}

// SimulationRequest is the body for POST /v1/tenants/{tenantId}/mapping-rules/simulate.
// When Rules is empty the tenant's stored rules are used.
type SimulationRequest struct {
	Order Order         `json:"order" validate:"required"`
	Rules []MappingRule `json:"rules,omitempty"`
}
