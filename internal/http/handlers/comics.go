package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sketchy/internal/domain"
)

type jobResponse struct {
	JobID           string              `json:"job_id"`
	Status          domain.JobStatus    `json:"status"`
	Progress        string              `json:"progress,omitempty"`
	PanelsCompleted int                 `json:"panels_completed"`
	PanelsRequested int                 `json:"panels_requested"`
	Result          *domain.ComicResult `json:"result,omitempty"`
	Error           string              `json:"error,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func toJobResponse(job *domain.Job) jobResponse {
	return jobResponse{
		JobID:           job.ID,
		Status:          job.Status,
		Progress:        job.Progress,
		PanelsCompleted: job.PanelsCompleted,
		PanelsRequested: job.Request.Panels,
		Result:          job.Result,
		Error:           job.Error,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
}

// CreateComic validates the request, applies the caller's quota, and enqueues
// a pending job. The response carries the job ID to poll.
func (a *App) CreateComic(w http.ResponseWriter, r *http.Request) {
	var req domain.ComicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return
	}
	if err := req.Normalize(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request",
			fmt.Sprintf("need article_url or article_text, panels %d-%d, tone one of gentle/sharp/savage/absurd", domain.MinPanels, domain.MaxPanels))
		return
	}

	caller := a.caller(r)
	usage, err := a.Limiter.Check(r.Context(), caller.APIKey, caller.Tier, time.Now().UTC())
	if err != nil {
		a.Logger.Error().Err(err).Msg("rate limit check failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to check quota")
		return
	}
	if !usage.Allowed() {
		a.json(w, http.StatusTooManyRequests, map[string]any{
			"error":    "quota_exceeded",
			"message":  fmt.Sprintf("hourly quota of %d requests exhausted", usage.Limit),
			"tier":     usage.Tier,
			"reset_at": usage.ResetAt,
		})
		return
	}

	job, err := a.Jobs.Enqueue(r.Context(), caller.APIKey, req)
	if err != nil {
		a.Logger.Error().Err(err).Msg("enqueue failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}
	a.Logger.Info().Str("job_id", job.ID).Int("panels", req.Panels).Msg("job enqueued")
	a.json(w, http.StatusCreated, toJobResponse(job))
}

// GetComic returns the current state of a job, including partial progress
// while the worker is mid-pipeline.
func (a *App) GetComic(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadJob(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, toJobResponse(job))
}

// GetPanel serves one rendered panel image of a completed or in-flight job.
func (a *App) GetPanel(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadJob(w, r)
	if !ok {
		return
	}
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 1 || n > domain.MaxPanels {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid panel number")
		return
	}
	a.serveBlob(w, r, fmt.Sprintf("%s/panels/panel_%02d.png", job.ID, n))
}

// GetCombined serves the assembled comic strip.
func (a *App) GetCombined(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadJob(w, r)
	if !ok {
		return
	}
	a.serveBlob(w, r, job.ID+"/combined.png")
}

func (a *App) loadJob(w http.ResponseWriter, r *http.Request) (*domain.Job, bool) {
	jobID := chi.URLParam(r, "id")
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return nil, false
	}
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("job lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return nil, false
	}
	return job, true
}

func (a *App) serveBlob(w http.ResponseWriter, r *http.Request, key string) {
	data, err := a.Blobs.Get(r.Context(), key)
	if errors.Is(err, fs.ErrNotExist) {
		a.error(w, http.StatusNotFound, "not_found", "image not available")
		return
	}
	if err != nil {
		a.Logger.Error().Err(err).Str("key", key).Msg("blob read failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read image")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}
