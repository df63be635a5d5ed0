package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/mapping"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// rulesFile is the YAML layout accepted by --rules.
type rulesFile struct {
	Rules []domain.MappingRule `yaml:"rules"`
}

func newSimulateCmd() *cobra.Command {
	var rulesPath, orderPath string
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Executa o simulador de regras sobre fixtures YAML, sem rede",
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := loadRules(rulesPath)
			if err != nil {
				return err
			}
			order, err := loadOrder(orderPath)
			if err != nil {
				return err
			}

			result := mapping.Evaluate(*order, rules)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&rulesPath, "rules", "", "arquivo YAML com as regras (chave rules)")
	cmd.Flags().StringVar(&orderPath, "order", "", "arquivo YAML com o pedido")
	_ = cmd.MarkFlagRequired("rules")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}

// loadRules reads a rules fixture. Every rule is treated as active, the
// same as ad-hoc rules sent to the simulate endpoint.
func loadRules(path string) ([]domain.MappingRule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	if err := mapping.ValidateRules(f.Rules); err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	for i := range f.Rules {
		r := &f.Rules[i]
		if r.ID == "" {
			r.ID = fmt.Sprintf("rule-%d", i+1)
		}
		r.Active = true
	}
	return f.Rules, nil
}

func loadOrder(path string) (*domain.Order, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read order: %w", err)
	}
	var order domain.Order
	if err := yaml.Unmarshal(b, &order); err != nil {
		return nil, fmt.Errorf("parse order %s: %w", path, err)
	}
	if len(order.Items) == 0 {
		return nil, fmt.Errorf("order %s has no items", path)
	}
	return &order, nil
}
