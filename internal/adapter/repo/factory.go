package repo

import (
	"context"
	"fmt"

	"sketchy/internal/domain"
	"sketchy/internal/infra"
)

// Open constructs the job repository selected by cfg.QueueBackend. The choice
// is made once at startup; callers only ever see domain.JobRepository.
func Open(ctx context.Context, cfg *infra.Config) (domain.JobRepository, error) {
	switch cfg.QueueBackend {
	case "", "sqlite":
		return NewJobRepositorySQLite(cfg.SQLitePath)
	case "postgres":
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		repo, err := NewJobRepositoryPG(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return repo, nil
	case "redis":
		return NewJobRepositoryRedis(ctx, cfg.RedisURL)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}
}
