package storage

import (
	"fmt"

	"sketchy/internal/infra"
)

// Open constructs the blob store selected by cfg.StorageBackend.
func Open(cfg *infra.Config) (Store, error) {
	switch cfg.StorageBackend {
	case "", "local":
		return NewFileStore(cfg.StoragePath, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
