// Package notify delivers best-effort webhook notifications for terminal job
// transitions. Delivery failures are logged and swallowed; they never change
// job state.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"sketchy/internal/domain"
	"sketchy/internal/infra"
)

const (
	EventCompleted = "comic.completed"
	EventFailed    = "comic.failed"
	EventTest      = "test"
)

// Payload is the fixed JSON envelope POSTed to the caller's webhook URL.
type Payload struct {
	Event            string           `json:"event"`
	JobID            string           `json:"job_id"`
	Status           domain.JobStatus `json:"status"`
	CombinedImageURL string           `json:"combined_image_url,omitempty"`
	PanelsCount      int              `json:"panels_count"`
	Title            string           `json:"title,omitempty"`
	Error            string           `json:"error,omitempty"`
}

// Notifier POSTs payloads with a bounded timeout and attempt budget.
type Notifier struct {
	client      *http.Client
	maxAttempts int
	logger      infra.Logger
}

// NewNotifier builds a notifier. maxAttempts bounds deliveries per Send;
// values below 1 mean a single attempt.
func NewNotifier(timeout time.Duration, maxAttempts int, logger infra.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Notifier{
		client:      &http.Client{Timeout: timeout},
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Send delivers the payload, retrying transport failures and non-2xx
// responses with linear backoff until the attempt budget is spent. The last
// error is returned so callers that care (the webhook test endpoint) can
// report it; the worker ignores it.
func (n *Notifier) Send(ctx context.Context, url string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}
	var lastErr error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		lastErr = n.post(ctx, url, body)
		if lastErr == nil {
			n.logger.Info().
				Str("job_id", payload.JobID).
				Str("event", payload.Event).
				Int("attempt", attempt).
				Msg("notify: webhook delivered")
			return nil
		}
		n.logger.Warn().
			Err(lastErr).
			Str("job_id", payload.JobID).
			Str("event", payload.Event).
			Int("attempt", attempt).
			Msg("notify: webhook delivery failed")
		if attempt == n.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return fmt.Errorf("notify: webhook to %s failed after %d attempts: %w", url, n.maxAttempts, lastErr)
}

// SendOnce delivers the payload with a single attempt and no backoff. The
// webhook test endpoint uses it so a failing receiver answers immediately.
func (n *Notifier) SendOnce(ctx context.Context, url string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}
	if err := n.post(ctx, url, body); err != nil {
		return fmt.Errorf("notify: webhook to %s failed: %w", url, err)
	}
	return nil
}

func (n *Notifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
