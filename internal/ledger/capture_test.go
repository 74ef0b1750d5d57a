package ledger_test

import (
	"context"
	"math"
	"testing"
	"time"

	"moneta/internal/core"
	"moneta/internal/ledger"
	"moneta/internal/memory"
)

// stubExtractor returns a canned extraction without touching any model.
type stubExtractor struct {
	ext ledger.Extraction
	err error
}

func (s stubExtractor) Extract(context.Context, string, core.Kind) (ledger.Extraction, error) {
	return s.ext, s.err
}

type recordingPublisher struct {
	published []core.Transaction
}

func (p *recordingPublisher) PublishTransactionCreated(_ context.Context, tx core.Transaction) error {
	p.published = append(p.published, tx)
	return nil
}

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }

func TestCaptureFromTextDefaults(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	events := &recordingPublisher{}
	// Extractor determined nothing: every field defaults.
	svc := ledger.NewCapture(store, ledger.NewRegistry(store), stubExtractor{}, events)

	before := time.Now()
	res, err := svc.FromText(ctx, "随手记 午饭", core.Expense)
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped {
		t.Fatal("first capture must not be skipped")
	}

	tx := res.Transaction
	if tx.Kind != core.Expense {
		t.Errorf("kind = %q, want preferred expense", tx.Kind)
	}
	if tx.Currency != ledger.DefaultCurrency {
		t.Errorf("currency = %q, want %q", tx.Currency, ledger.DefaultCurrency)
	}
	if tx.MainCategory != ledger.DefaultCategory || tx.SubCategory != ledger.DefaultCategory {
		t.Errorf("categories = %q/%q, want defaults", tx.MainCategory, tx.SubCategory)
	}
	if tx.OccurredAt.Before(before) {
		t.Error("missing date must default to now")
	}
	if tx.SourceText != "随手记 午饭" {
		t.Errorf("source text = %q, want the raw input", tx.SourceText)
	}
	if len(events.published) != 1 {
		t.Errorf("published %d events, want 1", len(events.published))
	}
}

func TestCaptureFromTextUsesExtraction(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ext := ledger.Extraction{
		Date:         strPtr("2025-03-10 12:30:00"),
		Amount:       f64Ptr(38.5),
		Currency:     strPtr("CNY"),
		MainCategory: strPtr("餐饮"),
		SubCategory:  strPtr("午餐"),
		Counterparty: strPtr("兰州拉面"),
		Kind:         strPtr("expense"),
	}
	svc := ledger.NewCapture(store, ledger.NewRegistry(store), stubExtractor{ext: ext}, nil)

	res, err := svc.FromText(ctx, "receipt text", core.Income)
	if err != nil {
		t.Fatal(err)
	}
	tx := res.Transaction
	if tx.Kind != core.Expense {
		t.Errorf("extracted kind must win over preference, got %q", tx.Kind)
	}
	if tx.Amount != 38.5 || tx.Counterparty != "兰州拉面" {
		t.Errorf("unexpected transaction %+v", tx)
	}
	want := time.Date(2025, 3, 10, 12, 30, 0, 0, time.Local)
	if !tx.OccurredAt.Equal(want) {
		t.Errorf("occurred at %v, want %v", tx.OccurredAt, want)
	}

	// The category triple was learned as a side effect.
	cats, err := ledger.NewRegistry(store).SubCategories(ctx, "餐饮", core.Expense)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 1 || cats[0] != "午餐" {
		t.Errorf("learned subs = %v, want [午餐]", cats)
	}
}

func TestCaptureSuppressesDuplicate(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ext := ledger.Extraction{
		Date:   strPtr("2025-03-10 12:30:00"),
		Amount: f64Ptr(38.5),
		Kind:   strPtr("expense"),
	}
	svc := ledger.NewCapture(store, ledger.NewRegistry(store), stubExtractor{ext: ext}, nil)

	first, err := svc.FromText(ctx, "same receipt", core.Expense)
	if err != nil || first.Skipped {
		t.Fatalf("first capture failed: %v (skipped=%v)", err, first.Skipped)
	}

	// Same receipt photographed again 90 seconds later.
	ext.Date = strPtr("2025-03-10 12:31:30")
	svc = ledger.NewCapture(store, ledger.NewRegistry(store), stubExtractor{ext: ext}, nil)
	second, err := svc.FromText(ctx, "same receipt", core.Expense)
	if err != nil {
		t.Fatalf("duplicate suppression must not be an error: %v", err)
	}
	if !second.Skipped {
		t.Error("second capture inside the window must be skipped")
	}

	all, _ := store.ListAll(ctx)
	if len(all) != 1 {
		t.Errorf("store holds %d records, want 1", len(all))
	}
}

func TestManualCreateSkipsDuplicateCheck(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := ledger.NewCapture(store, ledger.NewRegistry(store), stubExtractor{}, nil)

	tx := core.Transaction{
		Kind:         core.Expense,
		OccurredAt:   time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local),
		Amount:       25,
		Currency:     "CNY",
		MainCategory: "餐饮",
		SubCategory:  "午餐",
	}
	first, err := svc.Create(ctx, tx)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == "" {
		t.Error("create must assign an identity")
	}

	// Manual entry trusts the user even for identical records.
	if _, err := svc.Create(ctx, tx); err != nil {
		t.Fatal(err)
	}
	all, _ := store.ListAll(ctx)
	if len(all) != 2 {
		t.Errorf("store holds %d records, want 2", len(all))
	}
}

func TestCaptureRejectsNonFiniteExtractedAmount(t *testing.T) {
	ctx := context.Background()

	for _, amount := range []float64{math.NaN(), math.Inf(1)} {
		store := memory.New()
		svc := ledger.NewCapture(store, ledger.NewRegistry(store),
			stubExtractor{ext: ledger.Extraction{Amount: f64Ptr(amount)}}, nil)

		res, err := svc.FromText(ctx, "乱码金额", core.Expense)
		if err != nil {
			t.Fatal(err)
		}
		// A non-finite amount would match every record in the duplicate
		// check; it must fall back to the zero default instead.
		if res.Transaction.Amount != 0 {
			t.Errorf("amount = %v for extracted %v, want the 0 default", res.Transaction.Amount, amount)
		}
	}
}
