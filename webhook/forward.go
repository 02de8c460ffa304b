package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const forwardTimeout = 10 * time.Second

// Forwarder posts transformed alerts to a Mattermost incoming webhook.
type Forwarder struct {
	url   string
	httpc *http.Client
}

// NewForwarder returns nil when no incoming webhook URL is configured.
func NewForwarder(url string) *Forwarder {
	if url == "" {
		return nil
	}
	return &Forwarder{
		url: url,
		httpc: &http.Client{
			Timeout: forwardTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (f *Forwarder) Forward(ctx context.Context, text string) error {
	if f == nil {
		return fmt.Errorf("webhook: no alerts webhook configured")
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("webhook: encode alert: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("webhook: build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: forward alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook: forward alert: status %d: %s", resp.StatusCode, body)
	}
	return nil
}
