package mapping

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// An all-blank condition value is a substring of every attribute.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

var ruleMessages = map[string]string{
	"condition_field": "campo de condição inválido",
	"condition_value": "valor da condição obrigatório",
	"target_account":  "conta de destino obrigatória",
	"entry_type":      "tipo de lançamento inválido",
	"priority":        "prioridade inválida",
}

// ValidateRule checks the fields Evaluate relies on and returns the first
// failure as a *domain.ErrValidation.
func ValidateRule(rule domain.MappingRule) error {
	err := validate.Struct(rule)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return &domain.ErrValidation{Field: "rule", Message: err.Error()}
	}
	field := ves[0].Field()
	msg, ok := ruleMessages[field]
	if !ok {
		msg = "valor inválido"
	}
	return &domain.ErrValidation{Field: field, Message: msg}
}

// ValidateRules runs ValidateRule on each rule and reports the first
// failure with an indexed field, e.g. rules[2].entry_type.
func ValidateRules(rules []domain.MappingRule) error {
	for i, r := range rules {
		err := ValidateRule(r)
		var ve *domain.ErrValidation
		if errors.As(err, &ve) {
			return &domain.ErrValidation{Field: fmt.Sprintf("rules[%d].%s", i, ve.Field), Message: ve.Message}
		}
	}
	return nil
}
