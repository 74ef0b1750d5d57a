// Command moneta-worker consumes capture requests from the broker and
// runs them through the extraction and dedup pipeline. It lets phone
// shortcuts and chat bots append to the ledger without touching the
// CLI.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"moneta/internal/ai"
	"moneta/internal/amqp"
	"moneta/internal/cli"
	"moneta/internal/core"
	"moneta/internal/ledger"
)

func main() {
	cfg := cli.Bootstrap()
	slog.Info("Starting moneta-worker")

	if cfg.AMQPURL == "" {
		slog.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	store, cleanup := cli.OpenStore(cfg)
	defer func() {
		if cleanup != nil {
			cleanup()
		}
	}()

	ctx, stop := cli.SignalContext()
	defer stop()

	registry := ledger.NewRegistry(store)
	if err := registry.InitializeDefaults(ctx); err != nil {
		slog.Error("Failed to seed default categories", "error", err)
		os.Exit(1)
	}

	extractor, err := ai.New(ctx, cfg.GenAIModel, registry)
	if err != nil {
		slog.Error("Failed to initialize extractor", "error", err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		slog.Error("Failed to connect to broker", "error", err, "url", cfg.AMQPURL)
		os.Exit(1)
	}
	defer client.Close()

	capture := ledger.NewCapture(store, registry, extractor, client)

	err = client.ConsumeCaptureRequests(ctx, func(msg *amqp.CaptureRequestMessage) error {
		result, err := capture.FromText(ctx, msg.Text, core.ParseKind(msg.Kind, core.Expense))
		if err != nil {
			return err
		}
		if result.Skipped {
			slog.InfoContext(ctx, "Capture request skipped as duplicate")
			return nil
		}
		slog.InfoContext(ctx, "Captured transaction from request",
			"id", result.Transaction.ID,
			"kind", result.Transaction.Kind,
			"amount", core.FormatAmount(result.Transaction.Amount))
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Consumer stopped", "error", err)
		os.Exit(1)
	}

	slog.Info("Worker stopped gracefully")
}
