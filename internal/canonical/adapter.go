// Package canonical reshapes the assorted legacy payload spellings into one
// canonical schema. Several producers wrote the same concept under different
// field names (categoria_sintomas vs categoria, pontuacao_total vs
// pontuacaoTotal); each adapter here is total and pure: any input map yields
// a fully-populated Canonical with documented defaults, never an error.
package canonical

import (
	"encoding/json"
	"strconv"
	"time"
)

// Canonical is the normalized submission shape consumed by the automation
// platform.
type Canonical struct {
	DadosContato DadosContato   `json:"dadosContatoCollection"`
	Analise      Analise        `json:"analiseCollection"`
	Qualificacao Qualificacao   `json:"qualificacaoLeadCollection"`
	Respostas    map[string]any `json:"respostasCollection"`
	Variante     string         `json:"variante"`
	TempoTotal   int64          `json:"tempoTotal"`
	Timestamp    string         `json:"timestamp"`
	Origem       string         `json:"origem"`
	Dispositivo  string         `json:"dispositivo"`
	Navegador    string         `json:"navegador"`
	Sistema      string         `json:"sistema"`
}

type DadosContato struct {
	Nome     string `json:"nome"`
	Email    string `json:"email"`
	Telefone string `json:"telefone"`
	Idade    int    `json:"idade"`
}

type Analise struct {
	Categoria      string `json:"categoria"`
	PontuacaoTotal int    `json:"pontuacaoTotal"`
	Urgencia       string `json:"urgencia"`
	Expectativa    string `json:"expectativa"`
	Sintomas       any    `json:"sintomas"`
}

type Qualificacao struct {
	Score         int           `json:"score"`
	Categoria     string        `json:"categoria"`
	Prioridade    int           `json:"prioridade"`
	Motivos       []string      `json:"motivos"`
	Comportamento Comportamento `json:"comportamento"`
}

type Comportamento struct {
	TempoMedioResposta     int64  `json:"tempoMedioResposta"`
	TempoTotalQuestionario int64  `json:"tempoTotalQuestionario"`
	VoltasPerguntas        int    `json:"voltasPerguntas"`
	Engajamento            string `json:"engajamento"`
}

// FromLegacy normalizes a flat legacy record. Field lookup follows the fixed
// alternate-name order of the original payloads; absent values take the
// documented placeholder defaults.
func FromLegacy(raw map[string]any) Canonical {
	if raw == nil {
		raw = map[string]any{}
	}

	sintomas := firstAny(raw, "sintomas_identificados", "sintomas")
	if sintomas == nil {
		sintomas = map[string]any{}
	}

	respostas := firstMap(raw, "respostas_detalhadas", "respostas")
	if respostas == nil {
		respostas = map[string]any{}
	}

	timestamp := stringOr(raw, "", "timestamp")
	if timestamp == "" {
		timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	return Canonical{
		DadosContato: DadosContato{
			Nome:     stringOr(raw, "Desconhecido", "nome"),
			Email:    stringOr(raw, "no-email@example.com", "email"),
			Telefone: stringOr(raw, "00000000000", "telefone"),
			Idade:    intOr(raw, 0, "idade"),
		},
		Analise: Analise{
			Categoria:      stringOr(raw, "", "categoria_sintomas", "categoria"),
			PontuacaoTotal: intOr(raw, 0, "pontuacao_total", "pontuacaoTotal"),
			Urgencia:       stringOr(raw, "", "urgencia"),
			Expectativa:    stringOr(raw, "", "expectativa_melhora", "expectativa"),
			Sintomas:       sintomas,
		},
		Qualificacao: Qualificacao{
			Score:      intOr(raw, 0, "score_qualificacao", "score"),
			Categoria:  stringOr(raw, "", "categoria_lead"),
			Prioridade: intOr(raw, 0, "prioridade"),
			Motivos:    motivos(raw["motivos_qualificacao"]),
			Comportamento: Comportamento{
				TempoMedioResposta:     int64(intOr(raw, 0, "tempo_medio_resposta")),
				TempoTotalQuestionario: int64(intOr(raw, 0, "tempo_total_questionario", "tempoTotal")),
				VoltasPerguntas:        intOr(raw, 0, "voltas_perguntas"),
				Engajamento:            stringOr(raw, "MEDIO", "engajamento"),
			},
		},
		Respostas:   respostas,
		Variante:    stringOr(raw, "", "versao_questionario", "variante"),
		TempoTotal:  int64(intOr(raw, 0, "tempo_total_questionario", "tempoTotal")),
		Timestamp:   timestamp,
		Origem:      stringOr(raw, "", "origem"),
		Dispositivo: stringOr(raw, "", "dispositivo"),
		Navegador:   stringOr(raw, "", "navegador"),
		Sistema:     stringOr(raw, "", "sistema_operacional", "sistema"),
	}
}

// motivos accepts either a JSON-encoded string or a plain array; anything
// else yields an empty list.
func motivos(v any) []string {
	switch val := v.(type) {
	case nil:
		return []string{}
	case string:
		var out []string
		if err := json.Unmarshal([]byte(val), &out); err != nil {
			return []string{}
		}
		return out
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return val
	default:
		return []string{}
	}
}

func stringOr(raw map[string]any, fallback string, keys ...string) string {
	for _, key := range keys {
		if s, ok := raw[key].(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func intOr(raw map[string]any, fallback int, keys ...string) int {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case float64:
			return int(v)
		case int:
			return v
		case int64:
			return int(v)
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return int(n)
			}
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return fallback
}

func firstMap(raw map[string]any, keys ...string) map[string]any {
	for _, key := range keys {
		if m, ok := raw[key].(map[string]any); ok {
			return m
		}
	}
	return nil
}

func firstAny(raw map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := raw[key]; ok && v != nil {
			return v
		}
	}
	return nil
}
