// Package transfer round-trips the full ledger through a portable
// archive: one CSV table plus the attachment images, zipped together.
// Export and import are long-running, cancellable operations that
// report advisory progress; import commits row by row and never aborts
// the batch for a single bad row.
package transfer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"moneta/internal/core"
)

const (
	// TableFileExt identifies the tabular file inside an archive.
	TableFileExt = ".csv"
	// tableFileName is the name exports write; imports accept any *.csv.
	tableFileName = "ledger" + TableFileExt
	imagesDirName = "images"

	rowTimeLayout        = "2006-01-02 15:04:05"
	attachmentTimeLayout = "20060102_150405"
)

// csvHeader is the fixed column order of the tabular file.
var csvHeader = []string{
	"occurredAt", "kind", "amount", "currency",
	"mainCategory", "subCategory", "counterparty", "note", "attachmentFileName",
}

// Progress is one advisory progress report. Fraction grows
// monotonically from 0 to 1; it must never influence correctness.
type Progress struct {
	Fraction float64
	Phase    string
}

// ProgressFunc receives progress reports. A nil func disables
// reporting.
type ProgressFunc func(Progress)

func (f ProgressFunc) report(fraction float64, phase string) {
	if f != nil {
		f(Progress{Fraction: fraction, Phase: phase})
	}
}

// AttachmentFileName derives the sibling image name for a transaction
// from its timestamp and amount, with '_' standing in for the decimal
// point.
func AttachmentFileName(tx core.Transaction) string {
	amount := strings.ReplaceAll(core.FormatAmount(tx.Amount), ".", "_")
	return tx.OccurredAt.Format(attachmentTimeLayout) + "_" + amount + ".jpg"
}

// encodeRow renders one transaction as a CSV record in the fixed column
// order. The attachment column carries only the file name; the bytes
// travel as a sibling file.
func encodeRow(tx core.Transaction, attachmentName string) []string {
	return []string{
		tx.OccurredAt.Format(rowTimeLayout),
		string(tx.Kind),
		core.FormatAmount(tx.Amount),
		tx.Currency,
		tx.MainCategory,
		tx.SubCategory,
		tx.Counterparty,
		tx.Note,
		attachmentName,
	}
}

// decodeRow parses one CSV record back into a transaction. The returned
// attachment name may be empty. Any malformed field fails just this
// row.
func decodeRow(record []string) (core.Transaction, string, error) {
	if len(record) != len(csvHeader) {
		return core.Transaction{}, "", fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(record))
	}

	occurredAt, err := time.ParseInLocation(rowTimeLayout, record[0], time.Local)
	if err != nil {
		return core.Transaction{}, "", fmt.Errorf("parse occurredAt %q: %w", record[0], err)
	}

	kind := core.Kind(strings.ToLower(strings.TrimSpace(record[1])))
	if !kind.IsValid() {
		return core.Transaction{}, "", fmt.Errorf("unknown kind %q", record[1])
	}

	// ParseFloat accepts NaN and the infinities, which would poison the
	// duplicate predicate downstream.
	amount, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return core.Transaction{}, "", fmt.Errorf("parse amount %q: %w", record[2], core.ErrInvalidAmount)
	}

	tx := core.Transaction{
		Kind:         kind,
		OccurredAt:   occurredAt,
		Amount:       amount,
		Currency:     record[3],
		MainCategory: record[4],
		SubCategory:  record[5],
		Counterparty: record[6],
		Note:         record[7],
	}
	return tx, record[8], nil
}
