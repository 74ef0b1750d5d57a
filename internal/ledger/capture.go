package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"moneta/internal/core"
)

// Defaults applied to fields the extractor could not determine.
const (
	DefaultCurrency = "CNY"
	DefaultCategory = "其他"
)

// Extraction is the partially-nullable record an extractor produces
// from raw text. Nil means the extractor could not determine the field;
// the capture flow fills in the documented defaults.
type Extraction struct {
	Date         *string // "2006-01-02" or "2006-01-02 15:04:05"
	Amount       *float64
	Currency     *string
	MainCategory *string
	SubCategory  *string
	Counterparty *string
	Note         *string
	Kind         *string
}

// Extractor turns raw text (typed, OCR'd, or forwarded by a shortcut)
// into a best-effort structured record.
type Extractor interface {
	Extract(ctx context.Context, rawText string, preferred core.Kind) (Extraction, error)
}

// EventPublisher announces committed ledger changes to interested
// consumers. Implementations must tolerate being absent: a nil
// publisher disables events without affecting correctness.
type EventPublisher interface {
	PublishTransactionCreated(ctx context.Context, tx core.Transaction) error
}

// CaptureResult reports what happened to one capture request.
type CaptureResult struct {
	Transaction core.Transaction
	// Skipped is set when the duplicate detector matched an existing
	// record and the insert was suppressed. Not an error.
	Skipped bool
}

// Capture is the single entry point for transaction creation: manual
// entry, AI-extracted text, and the automated shortcut path all land
// here so that category registration and duplicate suppression behave
// identically.
type Capture struct {
	store     Store
	registry  *Registry
	extractor Extractor
	events    EventPublisher
}

func NewCapture(store Store, registry *Registry, extractor Extractor, events EventPublisher) *Capture {
	return &Capture{store: store, registry: registry, extractor: extractor, events: events}
}

// Create validates and persists a manually entered transaction,
// registering its category triple. Manual entry trusts the user: no
// duplicate check.
func (c *Capture) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if _, err := c.registry.AddOrUpdate(ctx, tx.Kind, tx.MainCategory, tx.SubCategory); err != nil {
		return core.Transaction{}, fmt.Errorf("register category: %w", err)
	}
	if err := c.store.Insert(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	c.publish(ctx, tx)
	return tx, nil
}

// FromText runs the extractor over raw text and persists the result
// unless the capture duplicate policy matches an existing record, in
// which case the insert is suppressed and reported as skipped.
func (c *Capture) FromText(ctx context.Context, rawText string, preferred core.Kind) (CaptureResult, error) {
	ext, err := c.extractor.Extract(ctx, rawText, preferred)
	if err != nil {
		return CaptureResult{}, fmt.Errorf("extract transaction fields: %w", err)
	}

	tx := c.materialize(ext, rawText, preferred)
	policy := core.CapturePolicy()
	nearby, err := c.store.ListBetween(ctx, tx.Kind,
		tx.OccurredAt.Add(-policy.TimeWindow), tx.OccurredAt.Add(policy.TimeWindow))
	if err != nil {
		return CaptureResult{}, fmt.Errorf("probe for duplicates: %w", err)
	}
	if core.IsDuplicate(tx, nearby, policy) {
		slog.InfoContext(ctx, "Capture suppressed as duplicate",
			"kind", tx.Kind, "amount", tx.Amount, "occurred_at", tx.OccurredAt)
		return CaptureResult{Transaction: tx, Skipped: true}, nil
	}

	if _, err := c.registry.AddOrUpdate(ctx, tx.Kind, tx.MainCategory, tx.SubCategory); err != nil {
		return CaptureResult{}, fmt.Errorf("register category: %w", err)
	}
	if err := c.store.Insert(ctx, tx); err != nil {
		return CaptureResult{}, fmt.Errorf("insert transaction: %w", err)
	}
	c.publish(ctx, tx)
	return CaptureResult{Transaction: tx}, nil
}

// materialize turns a nullable extraction into a full transaction,
// defaulting every missing field: date to now, currency to CNY,
// categories to 其他, kind to the caller's preference.
func (c *Capture) materialize(ext Extraction, rawText string, preferred core.Kind) core.Transaction {
	tx := core.Transaction{
		ID:           uuid.NewString(),
		Kind:         preferred,
		OccurredAt:   time.Now(),
		Currency:     DefaultCurrency,
		MainCategory: DefaultCategory,
		SubCategory:  DefaultCategory,
		SourceText:   rawText,
	}
	if ext.Kind != nil {
		tx.Kind = core.ParseKind(*ext.Kind, preferred)
	}
	if ext.Date != nil {
		if t, ok := parseCivil(*ext.Date); ok {
			tx.OccurredAt = t
		}
	}
	if ext.Amount != nil && *ext.Amount >= 0 && !math.IsInf(*ext.Amount, 1) {
		tx.Amount = *ext.Amount
	}
	if ext.Currency != nil && *ext.Currency != "" {
		tx.Currency = *ext.Currency
	}
	if ext.MainCategory != nil && *ext.MainCategory != "" {
		tx.MainCategory = *ext.MainCategory
	}
	if ext.SubCategory != nil && *ext.SubCategory != "" {
		tx.SubCategory = *ext.SubCategory
	}
	if ext.Counterparty != nil {
		tx.Counterparty = *ext.Counterparty
	}
	if ext.Note != nil {
		tx.Note = *ext.Note
	}
	return tx
}

func parseCivil(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (c *Capture) publish(ctx context.Context, tx core.Transaction) {
	if c.events == nil {
		return
	}
	if err := c.events.PublishTransactionCreated(ctx, tx); err != nil {
		// The ledger write already committed; losing the event is a
		// consumer concern, not a capture failure.
		slog.ErrorContext(ctx, "Failed to publish transaction event", "id", tx.ID, "error", err)
	}
}
