package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/supporttools/probe-doctor/pkg/types"
)

// maxResponseBody bounds how much of an error response is read back for
// diagnostics.
const maxResponseBody = 4 * 1024

// Client posts events to a single webhook endpoint.
type Client struct {
	webhook    types.WebhookConfig
	sensorName string
	httpClient *http.Client
}

// NewClient creates a webhook client. The sensor name is attached to
// every payload so the receiver can tell probes apart.
func NewClient(webhook types.WebhookConfig, sensorName string) *Client {
	return &Client{
		webhook:    webhook,
		sensorName: sensorName,
		httpClient: &http.Client{},
	}
}

// payload is the JSON body posted to the webhook.
type payload struct {
	Sensor string       `json:"sensor"`
	SentAt time.Time    `json:"sent_at"`
	Event  *types.Event `json:"event"`
}

// Send posts one event. Non-2xx responses are errors; the response body
// is included (truncated) for diagnostics.
func (c *Client) Send(ctx context.Context, event *types.Event) error {
	body, err := json.Marshal(payload{
		Sensor: c.sensorName,
		SentAt: time.Now().UTC(),
		Event:  event,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	timeout := c.webhook.Timeout
	if timeout == 0 {
		timeout = types.DefaultWebhookTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhook.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "probe-doctor")
	if c.webhook.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.webhook.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: request failed: %w", c.webhook.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		return fmt.Errorf("webhook %s: unexpected status %d: %s",
			c.webhook.Name, resp.StatusCode, string(snippet))
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
