// Package cli holds the initialization shared by the binaries:
// environment loading, logging, configuration, backend wiring, and
// signal handling.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"moneta/internal/backend"
	"moneta/internal/config"
	"moneta/internal/ledger"
	applog "moneta/internal/log"
)

// Bootstrap loads .env, installs the default logger, and returns the
// validated configuration. It exits the process when the configuration
// is unusable.
func Bootstrap() *config.Config {
	// Optional in production and containers.
	_ = godotenv.Load()

	applog.Setup(os.Getenv("LOG_LEVEL"))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore wires the configured backend. It exits on failure; the
// returned cleanup may be nil.
func OpenStore(cfg *config.Config) (ledger.Store, backend.CleanupFunc) {
	store, cleanup, err := backend.Open(cfg)
	if err != nil {
		slog.Error("Failed to open data backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return store, cleanup
}

// SignalContext returns a context cancelled by SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
