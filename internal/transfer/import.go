package transfer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"moneta/internal/archive"
	"moneta/internal/core"
	"moneta/internal/ledger"
)

// ErrNoTableFile is returned when the archive opens fine but contains
// no tabular file. This is fatal: no per-row semantics apply before a
// table is found.
var ErrNoTableFile = errors.New("archive contains no table file")

// Counts aggregates the outcome of one import batch. Per-row failures
// and duplicate skips are counted here, never surfaced as errors.
type Counts struct {
	Total    int
	Imported int
	Skipped  int
	Failed   int
}

// Importer merges an exported archive into the ledger.
type Importer struct {
	store    ledger.Store
	registry *ledger.Registry
}

func NewImporter(store ledger.Store, registry *ledger.Registry) *Importer {
	return &Importer{store: store, registry: registry}
}

// Import unpacks the archive at zipPath and replays its rows into the
// store, strictly in file order.
//
// Rows commit one at a time: a row inserted before a cancellation stays
// inserted. This append-only semantics is part of the contract; callers
// must not assume all-or-nothing behavior. The returned counts cover
// everything processed up to the cancellation.
//
// Each data row is independent: a row that fails to parse increments
// Failed and processing continues. A row matching the import duplicate
// policy against already-persisted records (including rows committed
// earlier in this same batch) increments Skipped. A named attachment
// missing from the archive is tolerated; the row imports without it.
func (im *Importer) Import(ctx context.Context, zipPath string, progress ProgressFunc) (Counts, error) {
	var counts Counts

	progress.report(0, "unpacking archive")
	stage, err := os.MkdirTemp("", "moneta-import-*")
	if err != nil {
		return counts, fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(stage)

	if err := archive.Unpack(ctx, zipPath, stage); err != nil {
		return counts, fmt.Errorf("unpack archive: %w", err)
	}

	tablePath, err := findTableFile(stage)
	if err != nil {
		return counts, err
	}

	table, err := os.Open(tablePath)
	if err != nil {
		return counts, fmt.Errorf("open table file: %w", err)
	}
	defer table.Close()

	r := csv.NewReader(table)
	r.FieldsPerRecord = -1 // column count is validated per row

	if _, err := r.Read(); err != nil {
		return counts, fmt.Errorf("read header: %w", err)
	}

	policy := core.ImportPolicy()
	for {
		if err := ctx.Err(); err != nil {
			// Rows committed so far stay committed.
			return counts, err
		}

		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		counts.Total++
		if err != nil {
			counts.Failed++
			slog.WarnContext(ctx, "Skipping malformed row", "row", counts.Total, "error", err)
			continue
		}

		tx, attachmentName, err := decodeRow(record)
		if err != nil {
			counts.Failed++
			slog.WarnContext(ctx, "Skipping unparsable row", "row", counts.Total, "error", err)
			continue
		}

		// Because rows commit as they go, probing the store also covers
		// rows inserted earlier in this batch.
		nearby, err := im.store.ListBetween(ctx, tx.Kind,
			tx.OccurredAt.Add(-policy.TimeWindow), tx.OccurredAt.Add(policy.TimeWindow))
		if err != nil {
			return counts, fmt.Errorf("probe for duplicates: %w", err)
		}
		if core.IsDuplicate(tx, nearby, policy) {
			counts.Skipped++
			continue
		}

		tx.ID = uuid.NewString()
		if attachmentName != "" {
			payload, err := os.ReadFile(filepath.Join(stage, imagesDirName, attachmentName))
			if err == nil {
				tx.Attachment = payload
			} else {
				slog.WarnContext(ctx, "Attachment missing, importing row without it",
					"row", counts.Total, "attachment", attachmentName)
			}
		}

		if _, err := im.registry.AddOrUpdate(ctx, tx.Kind, tx.MainCategory, tx.SubCategory); err != nil {
			counts.Failed++
			slog.WarnContext(ctx, "Skipping row with unregistrable category",
				"row", counts.Total, "error", err)
			continue
		}
		if err := im.store.Insert(ctx, tx); err != nil {
			counts.Failed++
			slog.WarnContext(ctx, "Skipping uninsertable row", "row", counts.Total, "error", err)
			continue
		}
		counts.Imported++
		progress.report(0.1+0.9*float64(counts.Imported+counts.Skipped+counts.Failed)/float64(counts.Total+1), "importing rows")
	}

	progress.report(1, "done")
	slog.InfoContext(ctx, "Ledger import finished",
		"total", counts.Total,
		"imported", counts.Imported,
		"skipped", counts.Skipped,
		"failed", counts.Failed)
	return counts, nil
}

// findTableFile returns the first file with the table extension at the
// archive root. Order among multiple candidates is unspecified.
func findTableFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read staging directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), TableFileExt) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", ErrNoTableFile
}
