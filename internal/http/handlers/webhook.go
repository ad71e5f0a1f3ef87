package handlers

import (
	"encoding/json"
	"net/http"

	"sketchy/internal/domain"
	"sketchy/internal/notify"
)

type webhookTestRequest struct {
	WebhookURL string `json:"webhook_url"`
}

// WebhookTest fires a test event at the given URL so callers can verify
// their receiver before submitting real jobs.
func (a *App) WebhookTest(w http.ResponseWriter, r *http.Request) {
	var req webhookTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WebhookURL == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "webhook_url is required")
		return
	}
	err := a.Notifier.SendOnce(r.Context(), req.WebhookURL, notify.Payload{
		Event:  notify.EventTest,
		JobID:  "test",
		Status: domain.StatusCompleted,
	})
	if err != nil {
		a.error(w, http.StatusBadGateway, "webhook_failed", err.Error())
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "delivered"})
}
