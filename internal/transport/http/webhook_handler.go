package http

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MenopausaC/quiz-funnel-service/internal/app"
	"github.com/MenopausaC/quiz-funnel-service/internal/devinfo"
	"github.com/MenopausaC/quiz-funnel-service/internal/domain"
	"github.com/MenopausaC/quiz-funnel-service/internal/relay"
	"github.com/MenopausaC/quiz-funnel-service/internal/scoring"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// API carries the handlers' shared dependencies.
type API struct {
	service     *app.FunnelService
	relay       *relay.Client
	hublaSecret string
	remote      bool
}

func NewAPI(service *app.FunnelService, relayClient *relay.Client, hublaSecret string, remoteConfigured bool) *API {
	return &API{
		service:     service,
		relay:       relayClient,
		hublaSecret: hublaSecret,
		remote:      remoteConfigured,
	}
}

// HandleWebhook receives completed quiz submissions. GET answers a health
// probe describing the backing configuration.
func (a *API) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"status":            "ok",
			"message":           "Webhook está funcionando",
			"remote_configured": a.remote,
			"timestamp":         nowISO(),
		})
	case http.MethodPost:
		a.handleWebhookPost(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{
			"success": false,
			"message": "Método não permitido",
		})
	}
}

func (a *API) handleWebhookPost(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success":   false,
			"message":   "Dados JSON inválidos",
			"timestamp": nowISO(),
		})
		return
	}

	if errs := validateSubmission(payload); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success":   false,
			"message":   "Dados inválidos",
			"errors":    errs,
			"timestamp": nowISO(),
		})
		return
	}

	lead := leadFromSubmission(payload, r)
	lead, out := a.service.IngestLead(r.Context(), lead)

	if out.Err != nil {
		// The lead survived in the local stores; report the degradation
		// instead of failing the submission.
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"message":   "Dados processados com sucesso (banco remoto indisponível)",
			"backend":   out.Backend,
			"leadId":    lead.ID,
			"timestamp": nowISO(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Lead processado e salvo com sucesso",
		"backend":   out.Backend,
		"leadId":    lead.ID,
		"timestamp": nowISO(),
		"saved_data": map[string]any{
			"id":                  lead.ID,
			"nome":                lead.Nome,
			"email":               lead.Email,
			"categoria_lead":      lead.Qualificacao.Categoria,
			"classificacao_final": lead.Qualificacao.Classificacao,
			"pontuacao_total":     lead.Qualificacao.Score,
			"urgencia":            lead.Qualificacao.Urgencia,
			"origem":              lead.Origem,
			"criado_em":           lead.CriadoEm,
		},
	})
}

func validateSubmission(payload map[string]any) []string {
	var errs []string
	contato, ok := payload["dadosContato"].(map[string]any)
	if !ok {
		return []string{"dadosContato é obrigatório"}
	}
	nome, _ := contato["nome"].(string)
	if strings.TrimSpace(nome) == "" {
		errs = append(errs, "Nome é obrigatório")
	}
	email, _ := contato["email"].(string)
	if strings.TrimSpace(email) == "" {
		errs = append(errs, "Email é obrigatório")
	} else if !emailPattern.MatchString(email) {
		errs = append(errs, "Email inválido")
	}
	return errs
}

// leadFromSubmission normalizes the submission into a Lead. The client's
// qualification block is trusted when present; otherwise the answers are
// re-scored server side.
func leadFromSubmission(payload map[string]any, r *http.Request) domain.Lead {
	contato, _ := payload["dadosContato"].(map[string]any)

	lead := domain.Lead{
		Nome:               strings.TrimSpace(stringAt(contato, "nome")),
		Email:              strings.ToLower(strings.TrimSpace(stringAt(contato, "email"))),
		Telefone:           strings.TrimSpace(stringAt(contato, "telefone")),
		Idade:              intAt(contato, "idade"),
		Variante:           stringAt(payload, "variante"),
		VersaoQuestionario: stringAt(payload, "versaoQuestionario"),
		Origem:             stringAt(payload, "origem"),
		TempoTotalMs:       int64(intAt(payload, "tempoTotal")),
		Respostas:          answersFrom(payload["respostas"]),
	}
	if lead.Origem == "" {
		lead.Origem = "webhook"
	}

	if qual, ok := payload["qualificacaoLead"].(map[string]any); ok {
		lead.Qualificacao = qualificationFrom(qual)
	} else {
		elapsed := time.Duration(lead.TempoTotalMs) * time.Millisecond
		lead.Qualificacao = scoring.Qualify(lead.Respostas, elapsed, 0, lead.Idade)
	}

	dev := devinfo.Detect(r.UserAgent())
	lead.Dispositivo = &dev
	return lead
}

func answersFrom(raw any) map[string]domain.Answer {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	var answers map[string]domain.Answer
	if err := json.Unmarshal(data, &answers); err != nil {
		return nil
	}
	return answers
}

func qualificationFrom(raw map[string]any) domain.Qualification {
	data, err := json.Marshal(raw)
	if err != nil {
		return domain.Qualification{}
	}
	var qual domain.Qualification
	if err := json.Unmarshal(data, &qual); err != nil {
		return domain.Qualification{}
	}
	if qual.Categoria == "" {
		qual.Categoria = scoring.TierFor(qual.Score)
	}
	if qual.Classificacao == "" {
		qual.Classificacao = scoring.GradeFor(qual.Score)
	}
	return qual
}

func stringAt(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// intAt parses numbers arriving as float64, string or json.Number; bad
// values fall back to 0 rather than erroring.
func intAt(m map[string]any, key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return 0
}
