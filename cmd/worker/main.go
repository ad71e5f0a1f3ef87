package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"sketchy/internal/adapter/repo"
	"sketchy/internal/article"
	"sketchy/internal/comfy"
	"sketchy/internal/infra"
	"sketchy/internal/notify"
	"sketchy/internal/scriptwriter"
	"sketchy/internal/storage"
	"sketchy/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobs, err := repo.Open(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: job store init failed")
	}
	defer jobs.Close()

	blobs, err := storage.Open(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: storage init failed")
	}

	writer, err := scriptwriter.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: script writer init failed")
	}

	renderer := comfy.NewClient(comfy.Options{
		BaseURL:    cfg.ComfyUIURL,
		Checkpoint: cfg.ComfyUICheckpoint,
		Steps:      cfg.ComfyUISteps,
	})
	notifier := notify.NewNotifier(cfg.WebhookTimeout, cfg.WebhookMaxRetries, logger)

	w := worker.New(worker.Deps{
		Jobs:         jobs,
		Blobs:        blobs,
		Writer:       writer,
		Renderer:     renderer,
		Fetcher:      article.NewFetcher(nil),
		Notifier:     notifier,
		Logger:       logger,
		PollInterval: cfg.WorkerPollInterval,
		Concurrency:  cfg.WorkerConcurrency,
	})

	logger.Info().
		Str("queue", cfg.QueueBackend).
		Str("script_writer", cfg.ScriptWriter).
		Int("concurrency", cfg.WorkerConcurrency).
		Msg("worker started")

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker stopped")
}
