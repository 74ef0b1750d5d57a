package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"moneta/internal/core"
	"moneta/internal/ledger"
)

func openRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "moneta.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleTx(id string) core.Transaction {
	return core.Transaction{
		ID:           id,
		Kind:         core.Expense,
		OccurredAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local),
		Amount:       34.50,
		Currency:     "CNY",
		MainCategory: "餐饮",
		SubCategory:  "午餐",
		Counterparty: "兰州拉面",
		Attachment:   []byte{0x01, 0x02},
	}
}

func TestInsertGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t)

	want := sampleTx("tx-1")
	if err := repo.Insert(ctx, want); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Get(ctx, "tx-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Amount != want.Amount || got.Counterparty != want.Counterparty {
		t.Errorf("got %+v", got)
	}
	if !got.OccurredAt.Equal(want.OccurredAt) {
		t.Errorf("occurredAt = %v, want %v", got.OccurredAt, want.OccurredAt)
	}
	if len(got.Attachment) != 2 {
		t.Errorf("attachment = %v", got.Attachment)
	}
}

func TestInstallmentMetadataSurvivesStorage(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t)

	member := sampleTx("tx-2")
	member.Installment = &core.Installment{
		GroupID:           "rep-id",
		PeriodIndex:       3,
		PeriodCount:       6,
		AnnualRatePercent: 12,
		TotalPrincipal:    600,
	}
	if err := repo.Insert(ctx, member); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Get(ctx, "tx-2")
	if err != nil {
		t.Fatal(err)
	}
	if got.Installment == nil || got.Installment.PeriodIndex != 3 || got.Installment.GroupID != "rep-id" {
		t.Fatalf("installment = %+v", got.Installment)
	}

	byGroup, err := repo.ListByGroup(ctx, "rep-id")
	if err != nil {
		t.Fatal(err)
	}
	if len(byGroup) != 1 {
		t.Errorf("ListByGroup returned %d records, want 1", len(byGroup))
	}
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t)

	tx := sampleTx("tx-3")
	if err := repo.Insert(ctx, tx); err != nil {
		t.Fatal(err)
	}
	tx.Amount = 500
	if err := repo.Update(ctx, tx); err != nil {
		t.Fatal(err)
	}
	got, _ := repo.Get(ctx, "tx-3")
	if got.Amount != 500 {
		t.Errorf("amount after update = %v, want 500", got.Amount)
	}

	if err := repo.Delete(ctx, "tx-3"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Get(ctx, "tx-3"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, "tx-3"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestListBetweenFiltersKindAndWindow(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)
	inside := sampleTx("in")
	inside.OccurredAt = base
	outside := sampleTx("out")
	outside.OccurredAt = base.Add(time.Hour)
	income := sampleTx("inc")
	income.Kind = core.Income
	income.MainCategory = "工资"
	income.SubCategory = "月薪"
	income.OccurredAt = base

	for _, tx := range []core.Transaction{inside, outside, income} {
		if err := repo.Insert(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.ListBetween(ctx, core.Expense, base.Add(-time.Minute), base.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "in" {
		t.Errorf("ListBetween = %v records", len(got))
	}
}

func TestCategoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t)

	cat := core.Category{
		Main:       "餐饮",
		Sub:        "午餐",
		Kind:       core.Expense,
		UsageCount: 1,
		CreatedAt:  time.Now(),
	}
	if err := repo.Create(ctx, cat); err != nil {
		t.Fatal(err)
	}
	// Duplicate create is a silent no-op, not an error.
	if err := repo.Create(ctx, cat); err != nil {
		t.Fatalf("duplicate create: %v", err)
	}

	if err := repo.IncrementUsage(ctx, core.Expense, "餐饮", "午餐"); err != nil {
		t.Fatal(err)
	}
	got, err := repo.Find(ctx, core.Expense, "餐饮", "午餐")
	if err != nil {
		t.Fatal(err)
	}
	if got.UsageCount != 2 {
		t.Errorf("usage = %d, want 2", got.UsageCount)
	}

	if err := repo.DeleteCategory(ctx, core.Expense, "餐饮", "午餐"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Find(ctx, core.Expense, "餐饮", "午餐"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Find after delete = %v, want ErrNotFound", err)
	}
}

func TestReopenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "moneta.db")

	first, err := NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Insert(ctx, sampleTx("tx-r")); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	// Migrations re-run against an up-to-date schema without error and
	// without touching existing rows.
	second, err := NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	if _, err := second.Get(ctx, "tx-r"); err != nil {
		t.Fatalf("row lost across reopen: %v", err)
	}
}
