// Package relay forwards funnel records to an external automation webhook
// (a Make.com scenario in production). Delivery failures come back to the
// caller as plain errors; the caller decides whether they are fatal.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client posts JSON payloads to a single webhook URL.
type Client struct {
	url    string
	client *http.Client
}

// New returns a relay client. An empty URL yields a disabled client whose
// sends succeed without doing anything.
func New(url string) *Client {
	return &Client{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) Enabled() bool { return c != nil && c.url != "" }

// Send posts the payload and drains the response. Non-2xx statuses are
// errors.
func (c *Client) Send(ctx context.Context, payload any) error {
	if !c.Enabled() {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("relay: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("relay: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay: post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("relay: webhook returned %d", resp.StatusCode)
	}
	return nil
}
