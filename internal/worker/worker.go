// Package worker drives claimed jobs through the generation pipeline. All
// collaborator failures are caught at the Process boundary and recorded as a
// terminal failed status; nothing a collaborator does can crash the loop.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"sketchy/internal/assembler"
	"sketchy/internal/domain"
	"sketchy/internal/infra"
	"sketchy/internal/notify"
	"sketchy/internal/scriptwriter"
	"sketchy/internal/storage"
)

// Renderer turns one scene prompt into PNG bytes.
type Renderer interface {
	Render(ctx context.Context, prompt string) ([]byte, error)
}

// ArticleFetcher resolves an article URL into plain text.
type ArticleFetcher interface {
	Extract(ctx context.Context, url string) (string, error)
}

// WebhookSender delivers terminal-state notifications. Errors are logged by
// the sender; the worker never acts on them.
type WebhookSender interface {
	Send(ctx context.Context, url string, payload notify.Payload) error
}

// Deps collects every collaborator a Worker needs. All fields are required
// except Fetcher, which may be nil when jobs always carry inline text.
type Deps struct {
	Jobs     domain.JobRepository
	Blobs    storage.Store
	Writer   scriptwriter.Writer
	Renderer Renderer
	Fetcher  ArticleFetcher
	Notifier WebhookSender
	Logger   infra.Logger

	PollInterval time.Duration
	Concurrency  int
}

// Worker polls for pending jobs and processes each claimed job to a terminal
// state. Stages within one job run sequentially; concurrency comes from
// running multiple claim loops, which the store's conditional claim keeps
// safe.
type Worker struct {
	deps Deps
}

func New(deps Deps) *Worker {
	if deps.PollInterval <= 0 {
		deps.PollInterval = 5 * time.Second
	}
	if deps.Concurrency < 1 {
		deps.Concurrency = 1
	}
	return &Worker{deps: deps}
}

// Run blocks until ctx is cancelled, running Concurrency claim loops.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.deps.Concurrency; i++ {
		g.Go(func() error {
			return w.loop(ctx)
		})
	}
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context) error {
	for {
		job, err := w.deps.Jobs.ClaimNext(ctx)
		switch {
		case errors.Is(err, domain.ErrNoJob):
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.deps.PollInterval):
			}
			continue
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.deps.Logger.Error().Err(err).Msg("worker: claim failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.deps.PollInterval):
			}
			continue
		}
		w.Process(ctx, job)
	}
}

// Process runs one claimed job to a terminal state. It is the fault boundary:
// any pipeline error marks the job failed with the error text preserved and
// fires the failure webhook.
func (w *Worker) Process(ctx context.Context, job *domain.Job) {
	log := w.deps.Logger.With().Str("job_id", job.ID).Logger()
	log.Info().Int("panels", job.Request.Panels).Msg("worker: processing job")

	if err := w.runPipeline(ctx, job, log); err != nil {
		msg := err.Error()
		if uerr := w.deps.Jobs.UpdateStatus(ctx, job.ID, domain.StatusFailed, domain.StatusUpdate{
			Error: &msg,
		}); uerr != nil {
			log.Error().Err(uerr).Msg("worker: recording failure failed")
		}
		log.Error().Err(err).Msg("worker: job failed")
		w.notifyTerminal(ctx, job, notify.Payload{
			Event:  notify.EventFailed,
			JobID:  job.ID,
			Status: domain.StatusFailed,
			Error:  msg,
		})
		return
	}
	log.Info().Msg("worker: job completed")
}

func (w *Worker) runPipeline(ctx context.Context, job *domain.Job, log infra.Logger) error {
	req := job.Request

	progress := "Writing satirical script..."
	if err := w.deps.Jobs.UpdateStatus(ctx, job.ID, domain.StatusWritingScript, domain.StatusUpdate{
		Progress: &progress,
	}); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}

	articleText := req.ArticleText
	if articleText == "" {
		if w.deps.Fetcher == nil {
			return errors.New("article fetch not configured and no article text supplied")
		}
		text, err := w.deps.Fetcher.Extract(ctx, req.ArticleURL)
		if err != nil {
			return fmt.Errorf("fetch article: %w", err)
		}
		articleText = text
	}

	script, err := w.deps.Writer.WriteScript(ctx, scriptwriter.Request{
		ArticleText: articleText,
		ArticleURL:  req.ArticleURL,
		Title:       req.Title,
		Panels:      req.Panels,
		Tone:        req.Tone,
		Style:       req.Style,
		Language:    req.Language,
		Category:    req.Category,
	})
	if err != nil {
		return fmt.Errorf("write script: %w", err)
	}

	if script.PromptOnly {
		// Dry run: record the prompts and finish without rendering or
		// notifying anyone.
		return w.deps.Jobs.UpdateStatus(ctx, job.ID, domain.StatusCompleted, domain.StatusUpdate{
			Result: &domain.ComicResult{
				Title:        script.Title,
				PromptOnly:   true,
				SystemPrompt: script.SystemPrompt,
				UserPrompt:   script.UserPrompt,
			},
		})
	}
	if len(script.Panels) == 0 {
		return errors.New("script has no panels")
	}

	scriptJSON, err := json.Marshal(script)
	if err != nil {
		return fmt.Errorf("encode script: %w", err)
	}
	if _, err := w.deps.Blobs.Put(ctx, job.ID+"/script.json", scriptJSON); err != nil {
		return fmt.Errorf("persist script: %w", err)
	}

	// Render only the requested panel count; writers may return more. The
	// full script stays in script.json.
	scenes := script.Panels
	if len(scenes) > req.Panels {
		scenes = scenes[:req.Panels]
	}
	total := req.Panels
	panels := make([]assembler.Panel, 0, len(scenes))
	infos := make([]domain.PanelInfo, 0, len(scenes))
	for i, sp := range scenes {
		progress := fmt.Sprintf("Generating panel %d/%d...", i+1, total)
		done := i
		if err := w.deps.Jobs.UpdateStatus(ctx, job.ID, domain.StatusGeneratingImages, domain.StatusUpdate{
			Progress:        &progress,
			PanelsCompleted: &done,
		}); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}

		img, err := w.deps.Renderer.Render(ctx, sp.ScenePrompt)
		if err != nil {
			return fmt.Errorf("render panel %d: %w", i+1, err)
		}
		key := fmt.Sprintf("%s/panels/panel_%02d.png", job.ID, i+1)
		if _, err := w.deps.Blobs.Put(ctx, key, img); err != nil {
			return fmt.Errorf("persist panel %d: %w", i+1, err)
		}

		panels = append(panels, assembler.Panel{Image: img, Dialogue: sp.Dialogue})
		infos = append(infos, domain.PanelInfo{
			Index:     i + 1,
			Character: sp.Character,
			Dialogue:  sp.Dialogue,
			ImageURL:  w.deps.Blobs.URL(key),
		})
		log.Debug().Int("panel", i+1).Msg("worker: panel rendered")
	}

	progress = "Assembling comic..."
	if err := w.deps.Jobs.UpdateStatus(ctx, job.ID, domain.StatusAssembling, domain.StatusUpdate{
		Progress:        &progress,
		PanelsCompleted: &total,
	}); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}

	combined, err := assembler.Assemble(panels, script.Title, total)
	if err != nil {
		return fmt.Errorf("assemble comic: %w", err)
	}
	combinedKey := job.ID + "/combined.png"
	if _, err := w.deps.Blobs.Put(ctx, combinedKey, combined); err != nil {
		return fmt.Errorf("persist combined image: %w", err)
	}

	result := &domain.ComicResult{
		Title:            script.Title,
		CombinedImageURL: w.deps.Blobs.URL(combinedKey),
		Panels:           infos,
	}
	if err := w.deps.Jobs.UpdateStatus(ctx, job.ID, domain.StatusCompleted, domain.StatusUpdate{
		Result: result,
	}); err != nil {
		return fmt.Errorf("record completion: %w", err)
	}

	w.notifyTerminal(ctx, job, notify.Payload{
		Event:            notify.EventCompleted,
		JobID:            job.ID,
		Status:           domain.StatusCompleted,
		CombinedImageURL: result.CombinedImageURL,
		PanelsCount:      total,
		Title:            script.Title,
	})
	return nil
}

func (w *Worker) notifyTerminal(ctx context.Context, job *domain.Job, payload notify.Payload) {
	if job.Request.WebhookURL == "" || w.deps.Notifier == nil {
		return
	}
	// The terminal status is already recorded; delivery failure is the
	// notifier's problem to log.
	_ = w.deps.Notifier.Send(ctx, job.Request.WebhookURL, payload)
}
