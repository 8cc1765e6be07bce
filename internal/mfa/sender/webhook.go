// Package sender delivers one-time codes to subjects through an external
// delivery endpoint. The service never stores or logs the plaintext code;
// delivery is the endpoint's problem.
package sender

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

// WebhookSender POSTs codes to a configured delivery endpoint (e.g. an SMS or
// email gateway fronting the real provider).
type WebhookSender struct {
	APIKey     string
	URL        string
	HTTPClient *http.Client
}

// NewWebhookSender returns a sender posting to url with the given API key.
func NewWebhookSender(apiKey, url string) *WebhookSender {
	return &WebhookSender{
		APIKey:     apiKey,
		URL:        url,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Send delivers the plaintext code for the subject. Does not log the code.
func (s *WebhookSender) Send(ctx context.Context, tenantID, subjectID, code string) error {
	if s.URL == "" {
		return fmt.Errorf("sender: delivery URL not configured")
	}
	body := map[string]interface{}{
		"tenant_id":  tenantID,
		"subject_id": subjectID,
		"code":       code,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", s.APIKey)
	}
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sender: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
