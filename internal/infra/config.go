package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv  string
	Port    string
	BaseURL string

	// Comma-separated "key:tier" pairs. Empty enables dev mode (all requests
	// accepted as tier pro).
	APIKeys string

	QueueBackend string // sqlite | postgres | redis
	SQLitePath   string
	DatabaseURL  string
	RedisURL     string

	StorageBackend string // local
	StoragePath    string

	ComfyUIURL        string
	ComfyUICheckpoint string
	ComfyUISteps      int

	ScriptWriter  string // stub | prompt_only | openai
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	WorkerPollInterval time.Duration
	WorkerConcurrency  int

	WebhookTimeout    time.Duration
	WebhookMaxRetries int

	RateLimitFree       int
	RateLimitPro        int
	RateLimitEnterprise int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:  getEnv("APP_ENV", "development"),
		Port:    getEnv("PORT", "8080"),
		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		APIKeys: os.Getenv("API_KEYS"),

		QueueBackend: getEnv("QUEUE_BACKEND", "sqlite"),
		SQLitePath:   getEnv("SQLITE_PATH", "./data/jobs.db"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),

		StorageBackend: getEnv("STORAGE_BACKEND", "local"),
		StoragePath:    getEnv("STORAGE_PATH", "./data/output"),

		ComfyUIURL:        getEnv("COMFYUI_URL", "http://localhost:8188"),
		ComfyUICheckpoint: getEnv("COMFYUI_CHECKPOINT", "flux1-dev-fp8.safetensors"),
		ComfyUISteps:      getEnvInt("COMFYUI_STEPS", 20),

		ScriptWriter:  getEnv("SCRIPT_WRITER", "stub"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),

		WorkerPollInterval: time.Second * time.Duration(getEnvInt("WORKER_POLL_INTERVAL_SECONDS", 5)),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 1),

		WebhookTimeout:    time.Second * time.Duration(getEnvInt("WEBHOOK_TIMEOUT_SECONDS", 10)),
		WebhookMaxRetries: getEnvInt("WEBHOOK_MAX_RETRIES", 3),

		RateLimitFree:       getEnvInt("RATE_LIMIT_FREE", 5),
		RateLimitPro:        getEnvInt("RATE_LIMIT_PRO", 50),
		RateLimitEnterprise: getEnvInt("RATE_LIMIT_ENTERPRISE", 500),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	switch cfg.QueueBackend {
	case "sqlite", "redis":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres queue backend")
		}
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}

	if cfg.WorkerConcurrency < 1 {
		cfg.WorkerConcurrency = 1
	}

	return cfg, nil
}

// ParseAPIKeys splits the API_KEYS setting into a key -> tier map. Entries
// without an explicit tier default to free.
func (c *Config) ParseAPIKeys() map[string]string {
	keys := make(map[string]string)
	for _, entry := range strings.Split(c.APIKeys, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if idx := strings.LastIndex(entry, ":"); idx >= 0 {
			keys[entry[:idx]] = entry[idx+1:]
		} else {
			keys[entry] = "free"
		}
	}
	return keys
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
