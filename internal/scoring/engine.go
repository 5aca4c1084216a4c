// Package scoring qualifies quiz submissions. The canonical scheme maps the
// five-question answer sum to a FRIO..MUITO_QUENTE tier; the legacy
// twelve-question letter grade is kept as a compatibility shim so every
// qualification carries both labels.
package scoring

import (
	"time"

	"github.com/MenopausaC/quiz-funnel-service/internal/domain"
)

// Canonical tier thresholds. Bands are closed on the upper bound:
// score <= TierWarm is FRIO.
const (
	TierWarm    = 40
	TierHot     = 60
	TierVeryHot = 80
)

// Legacy grade thresholds (score <= GradeA is B).
const (
	GradeA   = 25
	GradeAA  = 45
	GradeAAA = 65
)

// Behavioral thresholds.
const (
	HighDeliberation = 15 * time.Second
	LowDeliberation  = 5 * time.Second
	BackNavLimit     = 2
)

// Qualification reasons, verbatim from the funnel copy.
const (
	MotivoPontuacaoBaixa     = "Baixa pontuação no questionário"
	MotivoPontuacaoMedia     = "Pontuação média no questionário"
	MotivoPontuacaoAlta      = "Pontuação alta no questionário"
	MotivoPontuacaoMuitoAlta = "Pontuação muito alta no questionário"
	MotivoAltaConsideracao   = "Alto tempo de consideração nas respostas"
	MotivoBaixaConsideracao  = "Baixo tempo de consideração nas respostas"
	MotivoRevisitouPerguntas = "Revisitou perguntas múltiplas vezes"
)

// Score sums the recorded answer points. Negative or missing point values
// count as zero so a score can never be negative.
func Score(answers map[string]domain.Answer) int {
	total := 0
	for _, a := range answers {
		if a.Pontos > 0 {
			total += a.Pontos
		}
	}
	return total
}

// TierFor maps a score to its canonical tier.
func TierFor(score int) domain.Tier {
	switch {
	case score <= TierWarm:
		return domain.TierFrio
	case score <= TierHot:
		return domain.TierMorno
	case score <= TierVeryHot:
		return domain.TierQuente
	default:
		return domain.TierMuitoQuente
	}
}

// GradeFor maps a score to the legacy letter grade.
func GradeFor(score int) domain.Grade {
	switch {
	case score <= GradeA:
		return domain.GradeB
	case score <= GradeAA:
		return domain.GradeA
	case score <= GradeAAA:
		return domain.GradeAA
	default:
		return domain.GradeAAA
	}
}

func priorityFor(tier domain.Tier) (int, string) {
	switch tier {
	case domain.TierFrio:
		return 1, MotivoPontuacaoBaixa
	case domain.TierMorno:
		return 2, MotivoPontuacaoMedia
	case domain.TierQuente:
		return 4, MotivoPontuacaoAlta
	default:
		return 5, MotivoPontuacaoMuitoAlta
	}
}

// UrgencyFor assigns the display urgency from score and age.
func UrgencyFor(score, idade int) domain.Urgency {
	switch {
	case idade > 0 && idade < 45 && score > 40:
		return domain.UrgencyAlta
	case score > 50:
		return domain.UrgencyAlta
	case score > 30:
		return domain.UrgencyMedia
	default:
		return domain.UrgencyBaixa
	}
}

// Qualify computes the full qualification for a completed quiz.
// Zero answers short-circuit to the lowest tier with no reasons.
func Qualify(answers map[string]domain.Answer, elapsed time.Duration, backNavigations, idade int) domain.Qualification {
	if len(answers) == 0 {
		return domain.Qualification{
			Score:         0,
			Categoria:     domain.TierFrio,
			Classificacao: domain.GradeB,
			Prioridade:    1,
			Motivos:       []string{},
			Urgencia:      domain.UrgencyBaixa,
			Comportamento: domain.Comportamento{Engajamento: domain.EngagementMedio},
		}
	}

	score := Score(answers)
	tier := TierFor(score)
	prioridade, motivo := priorityFor(tier)
	motivos := []string{motivo}
	engajamento := domain.EngagementMedio

	tempoMedio := elapsed / time.Duration(len(answers))
	if tempoMedio > HighDeliberation {
		motivos = append(motivos, MotivoAltaConsideracao)
		engajamento = domain.EngagementAlto
		if prioridade < 5 {
			prioridade++
		}
	} else if tempoMedio < LowDeliberation {
		motivos = append(motivos, MotivoBaixaConsideracao)
		engajamento = domain.EngagementBaixo
		if prioridade > 1 {
			prioridade--
		}
	}

	if backNavigations > BackNavLimit {
		motivos = append(motivos, MotivoRevisitouPerguntas)
		engajamento = domain.EngagementAlto
		if prioridade < 5 {
			prioridade++
		}
	}

	categoria, expectativa := resultCopy(score)

	return domain.Qualification{
		Score:             score,
		Categoria:         tier,
		Classificacao:     GradeFor(score),
		Prioridade:        prioridade,
		Motivos:           motivos,
		Urgencia:          UrgencyFor(score, idade),
		Sintomas:          Symptoms(answers),
		CategoriaSintomas: categoria,
		Expectativa:       expectativa,
		Comportamento: domain.Comportamento{
			TempoMedioRespostaMs: tempoMedio.Milliseconds(),
			TempoTotalMs:         elapsed.Milliseconds(),
			VoltasPerguntas:      backNavigations,
			Engajamento:          engajamento,
		},
	}
}

func resultCopy(score int) (categoria, expectativa string) {
	switch {
	case score <= GradeA:
		return "Sintomas Leves", "95% das mulheres melhoram com acompanhamento nutricional"
	case score <= GradeAA:
		return "Sintomas Moderados", "96% das mulheres melhoram com nutrição adequada"
	case score <= GradeAAA:
		return "Sintomas Intensos", "97% das mulheres melhoram com nutrição especializada"
	default:
		return "Sintomas Muito Intensos", "98% das mulheres melhoram com protocolo nutricional especializado"
	}
}
