// Package handlers implements the public HTTP API. Handlers validate and
// enqueue; all generation work happens in the worker process.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"sketchy/internal/domain"
	"sketchy/internal/infra"
	"sketchy/internal/middleware"
	"sketchy/internal/notify"
	"sketchy/internal/ratelimit"
	"sketchy/internal/storage"
)

// WebhookSender is the notifier surface the webhook test endpoint needs.
// SendOnce makes exactly one delivery attempt.
type WebhookSender interface {
	SendOnce(ctx context.Context, url string, payload notify.Payload) error
}

type App struct {
	Cfg      *infra.Config
	Jobs     domain.JobRepository
	Blobs    storage.Store
	Limiter  *ratelimit.Limiter
	Notifier WebhookSender
	Logger   infra.Logger
}

func NewApp(cfg *infra.Config, jobs domain.JobRepository, blobs storage.Store, limiter *ratelimit.Limiter, notifier WebhookSender, logger infra.Logger) *App {
	return &App{
		Cfg:      cfg,
		Jobs:     jobs,
		Blobs:    blobs,
		Limiter:  limiter,
		Notifier: notifier,
		Logger:   logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, msg string) {
	a.json(w, code, map[string]string{"error": errCode, "message": msg})
}

func (a *App) caller(r *http.Request) middleware.AuthInfo {
	info, _ := middleware.AuthFromContext(r.Context())
	return info
}
