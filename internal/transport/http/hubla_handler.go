package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MenopausaC/quiz-funnel-service/internal/app"
)

type hublaPayload struct {
	Event   string `json:"event"`
	Payment struct {
		ID         string  `json:"id"`
		Status     string  `json:"status"`
		Amount     float64 `json:"amount"`
		Currency   string  `json:"currency"`
		CreatedAt  string  `json:"created_at"`
		ApprovedAt string  `json:"approved_at"`
	} `json:"payment"`
	Customer struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Document string `json:"document"`
	} `json:"customer"`
	Product struct {
		ID    string  `json:"id"`
		Name  string  `json:"name"`
		Price float64 `json:"price"`
	} `json:"product"`
	Metadata map[string]any `json:"metadata"`
}

// HandleHubla receives payment-processor notifications. Only approved
// payments are correlated; other event types are acknowledged untouched.
func (a *API) HandleHubla(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"message":   "Webhook Hubla está funcionando",
			"timestamp": nowISO(),
		})
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{
			"success": false,
			"message": "Método não permitido",
		})
		return
	}

	if a.hublaSecret != "" && r.Header.Get("Authorization") != "Bearer "+a.hublaSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"message": "Token inválido",
		})
		return
	}

	var payload hublaPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "JSON inválido",
		})
		return
	}

	if payload.Event != "payment.approved" {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"message":   "Evento " + payload.Event + " recebido",
			"timestamp": nowISO(),
		})
		return
	}

	paidAt := parseHublaTime(payload.Payment.ApprovedAt)
	if paidAt.IsZero() {
		paidAt = parseHublaTime(payload.Payment.CreatedAt)
	}

	conv, found, out := a.service.ProcessPayment(r.Context(), app.PaymentEvent{
		EventType:     payload.Event,
		PaymentID:     payload.Payment.ID,
		Status:        payload.Payment.Status,
		Amount:        payload.Payment.Amount,
		Currency:      payload.Payment.Currency,
		CustomerName:  payload.Customer.Name,
		CustomerEmail: payload.Customer.Email,
		CustomerPhone: payload.Customer.Phone,
		ProductID:     payload.Product.ID,
		ProductName:   payload.Product.Name,
		PaidAt:        paidAt,
		Raw:           payload.Metadata,
	})

	if !found {
		// Orphan purchase: recorded for later reconciliation, not an error.
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Pagamento processado - lead não encontrado",
			"data": map[string]any{
				"paymentId":     payload.Payment.ID,
				"customerEmail": payload.Customer.Email,
				"conversaoId":   conv.ID,
				"backend":       out.Backend,
				"processTime":   processTime(start),
			},
			"timestamp": nowISO(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Conversão registrada com sucesso",
		"data": map[string]any{
			"leadId":      conv.LeadID,
			"conversaoId": conv.ID,
			"variante":    conv.LeadVariante,
			"valor":       payload.Payment.Amount,
			"backend":     out.Backend,
			"processTime": processTime(start),
		},
		"timestamp": nowISO(),
	})
}

func parseHublaTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
