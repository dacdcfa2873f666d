package app

import (
	"context"
	"fmt"

	"github.com/misbah-png/My-Journal/internal/config"
	"github.com/misbah-png/My-Journal/internal/store"
)

// BuildBackend constructs the storage backend selected by the configuration.
// The caller owns the backend and must Close it.
func BuildBackend(ctx context.Context, cfg config.Config) (store.Backend, error) {
	switch cfg.Store {
	case "memory":
		return store.NewMemoryStore(), nil
	case "file":
		return store.NewFileStore(cfg.StorePath)
	case "postgres":
		return store.NewPostgresStore(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("invalid store: %s", cfg.Store)
	}
}
