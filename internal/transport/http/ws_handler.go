package http

import (
	"log"
	"net/http"
	"time"

	"github.com/MenopausaC/quiz-funnel-service/internal/app"
	"github.com/gorilla/websocket"
)

// MetricsWSHandler streams dashboard summaries over a websocket: one
// snapshot on connect, a push whenever a view, lead or sale lands, and a
// periodic refresh so remote-side changes surface without local writes.
type MetricsWSHandler struct {
	service  *app.FunnelService
	refresh  time.Duration
	upgrader websocket.Upgrader
}

func NewMetricsWSHandler(service *app.FunnelService, refresh time.Duration) *MetricsWSHandler {
	if refresh <= 0 {
		refresh = 30 * time.Second
	}
	return &MetricsWSHandler{
		service: service,
		refresh: refresh,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *MetricsWSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.SubscribeMetrics(r.Context())
	if err != nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": err.Error()})
		return
	}
	defer cancel()

	done := make(chan struct{})

	// Reader only watches for the client closing the socket.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.refresh)
	defer ticker.Stop()

	for {
		select {
		case summary, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(map[string]any{"type": "metrics", "payload": summary}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-ticker.C:
			summary, err := h.service.Metrics(r.Context())
			if err != nil {
				log.Printf("ws metrics refresh failed: %v", err)
				continue
			}
			if err := conn.WriteJSON(map[string]any{"type": "metrics", "payload": summary}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}
