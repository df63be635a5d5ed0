// Package mapping classifies order items into Conta Azul financial entries
// using a tenant's mapping rules.
package mapping

import (
	"sort"
	"strings"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// Evaluate assigns every order item to at most one rule and aggregates the
// matches into one financial entry per rule.
//
// Active rules are scanned by descending priority (ties keep input order) and
// the first rule whose condition value is a case-insensitive substring of the
// item attribute wins. Items matched by no rule are returned in
// UnmatchedItems and never produce an entry; the default-account flag is not
// consulted.
func Evaluate(order domain.Order, rules []domain.MappingRule) *domain.SimulationResult {
	ordered := SortByPriority(rules)

	result := &domain.SimulationResult{
		OrderID:        order.ID,
		Entries:        []domain.FinancialEntry{},
		UnmatchedItems: []domain.OrderItem{},
		TotalMatched:   decimal.Zero,
	}

	// entryIdx maps an index in ordered to its position in result.Entries.
	entryIdx := make(map[int]int)
	matched := make([]int, len(order.Items))
	for i := range matched {
		matched[i] = -1
	}

	for i, item := range order.Items {
		for r, rule := range ordered {
			if !Matches(rule, item, order.Marketplace) {
				continue
			}
			matched[i] = r
			break
		}
	}

	// Entries follow rule evaluation order, not item order.
	for r, rule := range ordered {
		for i, item := range order.Items {
			if matched[i] != r {
				continue
			}
			pos, ok := entryIdx[r]
			if !ok {
				result.Entries = append(result.Entries, domain.FinancialEntry{
					RuleID:        rule.ID,
					EntryType:     rule.EntryType,
					TargetAccount: rule.TargetAccount,
					Priority:      rule.Priority,
					Value:         decimal.Zero,
					Items:         []domain.OrderItem{},
				})
				pos = len(result.Entries) - 1
				entryIdx[r] = pos
			}
			e := &result.Entries[pos]
			e.Items = append(e.Items, item)
			e.Value = e.Value.Add(item.Total())
			result.TotalMatched = result.TotalMatched.Add(item.Total())
		}
	}

	for i, item := range order.Items {
		if matched[i] < 0 {
			result.UnmatchedItems = append(result.UnmatchedItems, item)
		}
	}

	return result
}

// SortByPriority returns the active rules ordered by descending priority.
// The input slice is not modified.
func SortByPriority(rules []domain.MappingRule) []domain.MappingRule {
	out := make([]domain.MappingRule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// Matches reports whether rule applies to item. orderMarketplace is used when
// the item carries no marketplace of its own.
func Matches(rule domain.MappingRule, item domain.OrderItem, orderMarketplace string) bool {
	attr, ok := attribute(rule.ConditionField, item, orderMarketplace)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(attr), strings.ToLower(rule.ConditionValue))
}

func attribute(field domain.ConditionField, item domain.OrderItem, orderMarketplace string) (string, bool) {
	switch field {
	case domain.FieldMarketplace:
		if item.Marketplace != "" {
			return item.Marketplace, true
		}
		return orderMarketplace, true
	case domain.FieldSKU:
		return item.SKU, true
	case domain.FieldCategory:
		return item.Category, true
	case domain.FieldProductName:
		return item.ProductName, true
	}
	return "", false
}
