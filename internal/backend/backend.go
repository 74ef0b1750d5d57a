// Package backend selects and wires the persistence layer from
// configuration.
package backend

import (
	"fmt"
	"log/slog"

	"moneta/internal/config"
	"moneta/internal/ledger"
	"moneta/internal/memory"
	"moneta/internal/storage"
)

// CleanupFunc releases backend resources. It may be nil.
type CleanupFunc func() error

// Open creates the configured ledger store. The returned cleanup, when
// non-nil, must be called on shutdown.
func Open(cfg *config.Config) (ledger.Store, CleanupFunc, error) {
	switch cfg.DataBackend {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		slog.Info("Initialized sqlite backend", "db_path", cfg.SQLiteDBPath)
		return repo, repo.Close, nil

	case "memory":
		slog.Info("Initialized memory backend")
		return memory.New(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported data backend: %s", cfg.DataBackend)
	}
}
