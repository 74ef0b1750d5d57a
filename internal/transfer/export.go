package transfer

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"moneta/internal/archive"
	"moneta/internal/ledger"
)

// Exporter serializes the whole ledger into one archive file.
type Exporter struct {
	store ledger.TransactionStore
}

func NewExporter(store ledger.TransactionStore) *Exporter {
	return &Exporter{store: store}
}

// Export writes every transaction into a CSV table, drops attachment
// payloads as sibling image files, and packs everything into a zip
// archive at zipPath. It returns the number of exported rows.
//
// All staging happens in a temporary directory that is always removed,
// so cancellation never leaves partial output behind; the archive file
// itself is deleted when packing fails.
func (e *Exporter) Export(ctx context.Context, zipPath string, progress ProgressFunc) (int, error) {
	progress.report(0, "collecting transactions")
	txs, err := e.store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}

	stage, err := os.MkdirTemp("", "moneta-export-*")
	if err != nil {
		return 0, fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(stage)

	table, err := os.Create(filepath.Join(stage, tableFileName))
	if err != nil {
		return 0, fmt.Errorf("create table file: %w", err)
	}
	defer table.Close()

	w := csv.NewWriter(table)
	if err := w.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	for i, tx := range txs {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		var attachmentName string
		if len(tx.Attachment) > 0 {
			attachmentName = AttachmentFileName(tx)
			imgDir := filepath.Join(stage, imagesDirName)
			if err := os.MkdirAll(imgDir, 0755); err != nil {
				return 0, fmt.Errorf("create images directory: %w", err)
			}
			if err := os.WriteFile(filepath.Join(imgDir, attachmentName), tx.Attachment, 0644); err != nil {
				return 0, fmt.Errorf("write attachment %s: %w", attachmentName, err)
			}
		}

		if err := w.Write(encodeRow(tx, attachmentName)); err != nil {
			return 0, fmt.Errorf("write row %d: %w", i+1, err)
		}
		// Rows occupy the [0.05, 0.85] slice of the progress bar.
		progress.report(0.05+0.8*float64(i+1)/float64(len(txs)), "writing rows")
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("flush table: %w", err)
	}
	if err := table.Close(); err != nil {
		return 0, fmt.Errorf("close table: %w", err)
	}

	progress.report(0.9, "packaging archive")
	if err := archive.Pack(ctx, stage, zipPath); err != nil {
		os.Remove(zipPath)
		return 0, fmt.Errorf("pack archive: %w", err)
	}

	progress.report(1, "done")
	slog.InfoContext(ctx, "Ledger exported", "rows", len(txs), "archive", zipPath)
	return len(txs), nil
}
