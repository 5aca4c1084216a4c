package http

import "net/http"

// NewMux wires every endpoint onto a ServeMux.
func NewMux(api *API, ws *MetricsWSHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/webhook", api.HandleWebhook)
	mux.HandleFunc("/api/webhook-hubla", api.HandleHubla)
	mux.HandleFunc("/api/vendas", api.HandleVendas)
	mux.HandleFunc("/api/format-data", api.HandleFormatData)
	mux.HandleFunc("/api/register-view", api.HandleRegisterView)
	mux.HandleFunc("/api/metrics", api.HandleMetrics)
	mux.HandleFunc("/api/admin/clear-test-data", api.HandleClearTestData)
	mux.HandleFunc("/ws/metrics", ws.ServeWS)
	return mux
}
