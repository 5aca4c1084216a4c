package scoring

import "github.com/MenopausaC/quiz-funnel-service/internal/domain"

// symptomRule flags a symptom when the answer to a question reaches the
// question's own point threshold, independent of the aggregate score.
type symptomRule struct {
	pergunta   string
	minPontos  int
	nome       string
	urgencia   domain.Urgency
	explicacao string
}

var symptomRules = []symptomRule{
	{"ganho_peso", 8, "Ganho de Peso Descontrolado", domain.UrgencyAlta,
		"O ganho de peso na menopausa pode ser controlado com a alimentação certa."},
	{"compulsao_alimentar", 7, "Compulsão por Doces", domain.UrgencyAlta,
		"A vontade excessiva de doces pode ser equilibrada com nutrição adequada."},
	{"energia_disposicao", 6, "Baixa Energia e Disposição", domain.UrgencyMedia,
		"A alimentação correta pode restaurar sua energia naturalmente."},
	{"frequencia_fogachos", 8, "Calores e Suores Frequentes", domain.UrgencyAlta,
		"Alguns alimentos podem intensificar os calores, outros podem aliviá-los."},
	{"qualidade_sono", 7, "Problemas para Dormir", domain.UrgencyAlta,
		"A nutrição adequada pode melhorar significativamente a qualidade do sono."},
	{"digestao", 6, "Problemas Digestivos", domain.UrgencyMedia,
		"Uma alimentação balanceada pode resolver problemas digestivos."},
}

// Symptoms collects the symptom flags whose answers crossed their thresholds.
func Symptoms(answers map[string]domain.Answer) []domain.Sintoma {
	var out []domain.Sintoma
	for _, rule := range symptomRules {
		if a, ok := answers[rule.pergunta]; ok && a.Pontos >= rule.minPontos {
			out = append(out, domain.Sintoma{
				Nome:       rule.nome,
				Urgencia:   rule.urgencia,
				Explicacao: rule.explicacao,
			})
		}
	}
	return out
}
