package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendPostsJSON(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.Send(context.Background(), map[string]string{"variante": "testbx4"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if received["variante"] != "testbx4" {
		t.Fatalf("payload not delivered: %v", received)
	}
}

func TestSendNonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.Send(context.Background(), map[string]string{}); err == nil {
		t.Fatalf("expected error on 502")
	}
}

func TestDisabledClientIsNoOp(t *testing.T) {
	c := New("")
	if c.Enabled() {
		t.Fatalf("empty URL must be disabled")
	}
	if err := c.Send(context.Background(), map[string]string{"x": "y"}); err != nil {
		t.Fatalf("disabled send must succeed: %v", err)
	}
}
