package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"sketchy/internal/adapter/repo"
	"sketchy/internal/http/handlers"
	"sketchy/internal/http/httpapi"
	"sketchy/internal/infra"
	"sketchy/internal/notify"
	"sketchy/internal/ratelimit"
	"sketchy/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	jobs, err := repo.Open(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: job store init failed")
	}
	defer jobs.Close()

	blobs, err := storage.Open(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: storage init failed")
	}

	limiter := ratelimit.NewLimiter(jobs, ratelimit.Quotas{
		Free:       cfg.RateLimitFree,
		Pro:        cfg.RateLimitPro,
		Enterprise: cfg.RateLimitEnterprise,
	})
	notifier := notify.NewNotifier(cfg.WebhookTimeout, cfg.WebhookMaxRetries, logger)

	app := handlers.NewApp(cfg, jobs, blobs, limiter, notifier, logger)
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app))

	go func() {
		logger.Info().Str("port", cfg.Port).Str("queue", cfg.QueueBackend).Msg("api listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
