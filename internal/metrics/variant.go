package metrics

import (
	"regexp"

	"github.com/MenopausaC/quiz-funnel-service/internal/domain"
)

// DefaultVariant groups records that carry no variant information.
const DefaultVariant = "default"

var variantCode = regexp.MustCompile(`testbx[0-9]+`)

// variantNames maps funnel variant codes to their dashboard display names.
var variantNames = map[string]string{
	"testbx4": "Base Completa",
	"testbx5": "Com Agendamento",
	"testbx6": "Com Depoimentos",
	"testbx7": "Texto Alterado",
	"testbx8": "Botões Continuar",
	"testbx9": "Efeitos Visuais",
	"default": "Padrão",
}

// VariantOf extracts the grouping variant from a lead, checking the
// populated fields in fixed priority order.
func VariantOf(lead domain.Lead) string {
	raw := lead.Variante
	if raw == "" {
		raw = lead.VersaoQuestionario
	}
	if raw == "" {
		raw = lead.Origem
	}
	if raw == "" {
		return DefaultVariant
	}
	// Legacy rows embed the code inside longer origin strings.
	if code := variantCode.FindString(raw); code != "" {
		return code
	}
	return raw
}

// DisplayName resolves a variant code to its dashboard label.
func DisplayName(variant string) string {
	if name, ok := variantNames[variant]; ok {
		return name
	}
	return variant
}
