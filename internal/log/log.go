// Package log configures the process-wide slog default and hands out
// component-tagged loggers.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Component names used across the application.
const (
	ComponentApp      = "app"
	ComponentLedger   = "ledger"
	ComponentStorage  = "storage"
	ComponentTransfer = "transfer"
	ComponentRates    = "rates"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
)

// Setup installs a text handler as the slog default. level accepts
// debug, info, warn, or error; anything else means info.
func Setup(level string) {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	slog.SetDefault(slog.New(handler))
}

// For returns the default logger tagged with a component field.
func For(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
