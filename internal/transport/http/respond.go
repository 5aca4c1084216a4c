// Package http exposes the webhook endpoints and the websocket metrics
// stream. Every handler answers structured JSON; storage trouble is
// reported in the body, never as a bare 5xx with no shape.
package http

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// processTime renders the handler latency the way the dashboard expects,
// as a "12ms" string.
func processTime(start time.Time) string {
	return fmt.Sprintf("%dms", time.Since(start).Milliseconds())
}

// clientIP resolves the caller address behind the usual proxy headers.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("Cf-Connecting-Ip"); ip != "" {
		return ip
	}
	return "unknown"
}
