package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// Notifier delivers a push MFA prompt to the subject's enrolled device.
// The gateway later reports the user's decision back via webhook.
type Notifier interface {
	Notify(ctx context.Context, deviceID, transactionID, displayNumber string) error
}

// WebhookClient sends push prompts to an external push gateway over HTTP.
type WebhookClient struct {
	GatewayURL string
	HTTPClient *http.Client
}

// NewWebhookClient returns a client posting prompts to gatewayURL.
func NewWebhookClient(gatewayURL string) *WebhookClient {
	return &WebhookClient{
		GatewayURL: gatewayURL,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Notify posts the prompt to the gateway. The display number is shown on the
// device so the user can match it with the login screen.
func (c *WebhookClient) Notify(ctx context.Context, deviceID, transactionID, displayNumber string) error {
	if c.GatewayURL == "" {
		return fmt.Errorf("push: gateway URL not configured")
	}
	body := map[string]string{
		"device_id":      deviceID,
		"transaction_id": transactionID,
		"display_number": displayNumber,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.GatewayURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("push: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
