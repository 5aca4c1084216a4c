package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MenopausaC/quiz-funnel-service/internal/canonical"
	"github.com/MenopausaC/quiz-funnel-service/internal/devinfo"
	"github.com/MenopausaC/quiz-funnel-service/internal/domain"
)

// HandleVendas records sales. POST registers an explicitly reported sale;
// PUT runs the auto-detection path that marks the matching lead converted.
func (a *API) HandleVendas(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Dados JSON inválidos",
		})
		return
	}

	nome := strings.TrimSpace(stringAt(payload, "nome"))
	email := strings.TrimSpace(stringAt(payload, "email"))
	telefone := strings.TrimSpace(stringAt(payload, "telefone"))
	if nome == "" && email == "" && telefone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Dados insuficientes - é necessário pelo menos nome, email ou telefone",
			"error":   "missing_identification_data",
		})
		return
	}

	venda := domain.Venda{
		Nome:     fallback(nome, "Não informado"),
		Email:    fallback(strings.ToLower(email), "Não informado"),
		Telefone: fallback(telefone, "Não informado"),
		Valor:    floatAt(payload, "valor"),
		Produto:  fallback(stringAt(payload, "produto"), "Consulta Nutricional"),
		Variante: fallback(stringAt(payload, "variante"), "desconhecida"),
		Extra:    payload,
	}

	switch r.Method {
	case http.MethodPost:
		venda.Origem = "webhook-vendas"
		recorded, out := a.service.RecordVenda(r.Context(), venda)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":          true,
			"message":          "Venda registrada com sucesso",
			"vendaId":          recorded.ID,
			"backend":          out.Backend,
			"timestamp":        nowISO(),
			"dadosProcessados": recorded,
		})
	case http.MethodPut:
		if venda.Valor == 0 {
			venda.Valor = 197
		}
		recorded, matched, out := a.service.DetectVenda(r.Context(), venda)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":        true,
			"message":        "Venda detectada e registrada",
			"leadEncontrado": matched,
			"backend":        out.Backend,
			"venda":          recorded,
		})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{
			"success": false,
			"message": "Método não permitido",
		})
	}
}

// HandleFormatData reshapes a flat legacy record into the canonical
// collections shape consumed by the automation platform.
func (a *API) HandleFormatData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{
			"success": false,
			"message": "Método não permitido",
		})
		return
	}
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Dados JSON inválidos",
		})
		return
	}
	// The automation platform consumes the canonical object as the whole
	// body, no envelope.
	writeJSON(w, http.StatusOK, canonical.FromLegacy(payload))
}

// HandleRegisterView records a landing-page view, enriched with device
// info and relayed to the automation webhook when one is configured.
func (a *API) HandleRegisterView(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{
			"success": false,
			"message": "Método não permitido",
		})
		return
	}
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Dados JSON inválidos para view",
			"error":   "invalid_json",
		})
		return
	}

	userAgent := stringAt(payload, "userAgent")
	if userAgent == "" {
		userAgent = r.UserAgent()
	}
	view := domain.View{
		Variante:  stringAt(payload, "variante"),
		UserAgent: userAgent,
		URL:       stringAt(payload, "url"),
	}

	view, out := a.service.RegisterView(r.Context(), view)
	dev := devinfo.Detect(userAgent)

	forwarded := make(map[string]any, len(payload)+7)
	for k, v := range payload {
		forwarded[k] = v
	}
	forwarded["view_id"] = view.ID
	forwarded["user_agent"] = userAgent
	forwarded["dispositivo"] = dev.Dispositivo
	forwarded["sistema_operacional"] = dev.SistemaOperacional
	forwarded["navegador"] = dev.Navegador
	forwarded["ip_address"] = clientIP(r)
	forwarded["referrer"] = r.Referer()
	if stringAt(payload, "timestamp") == "" {
		forwarded["timestamp"] = nowISO()
	}

	if !a.relay.Enabled() {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":        true,
			"message":        "Dados de view processados (webhook Make não configurado)",
			"viewId":         view.ID,
			"backend":        out.Backend,
			"processTime":    processTime(start),
			"processed_data": forwarded,
			"timestamp":      nowISO(),
		})
		return
	}

	if err := a.relay.Send(r.Context(), forwarded); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Erro ao encaminhar view para Make.com",
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"message":        "View processada e encaminhada com sucesso para Make.com",
		"viewId":         view.ID,
		"backend":        out.Backend,
		"processTime":    processTime(start),
		"forwarded_data": forwarded,
		"timestamp":      nowISO(),
	})
}

// HandleClearTestData wipes every store; local always, remote when
// configured.
func (a *API) HandleClearTestData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{
			"success": false,
			"message": "Método não permitido",
		})
		return
	}
	if err := a.service.ClearTestData(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Erro ao limpar dados de teste",
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Dados de teste removidos",
		"timestamp": nowISO(),
	})
}

// HandleMetrics returns the dashboard summary on demand.
func (a *API) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	summary, err := a.service.Metrics(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Erro ao calcular métricas",
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func fallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func floatAt(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return 0
}
