package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func validTx() Transaction {
	return Transaction{
		ID:           "a1",
		Kind:         Expense,
		OccurredAt:   time.Date(2025, 5, 1, 9, 30, 0, 0, time.Local),
		Amount:       42.50,
		Currency:     "CNY",
		MainCategory: "餐饮",
		SubCategory:  "早餐",
	}
}

func TestTransactionValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr error
	}{
		{"valid", func(*Transaction) {}, nil},
		{"bad kind", func(tx *Transaction) { tx.Kind = "transfer" }, ErrInvalidKind},
		{"zero date", func(tx *Transaction) { tx.OccurredAt = time.Time{} }, ErrZeroDate},
		{"negative amount", func(tx *Transaction) { tx.Amount = -1 }, ErrInvalidAmount},
		{"NaN amount", func(tx *Transaction) { tx.Amount = math.NaN() }, ErrInvalidAmount},
		{"positive infinity amount", func(tx *Transaction) { tx.Amount = math.Inf(1) }, ErrInvalidAmount},
		{"negative infinity amount", func(tx *Transaction) { tx.Amount = math.Inf(-1) }, ErrInvalidAmount},
		{"empty currency", func(tx *Transaction) { tx.Currency = " " }, ErrInvalidCurrency},
		{"empty main", func(tx *Transaction) { tx.MainCategory = "" }, ErrEmptyCategory},
		{"empty sub", func(tx *Transaction) { tx.SubCategory = "" }, ErrEmptyCategory},
		{"zero amount ok", func(tx *Transaction) { tx.Amount = 0 }, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := validTx()
			tc.mutate(&tx)
			err := tx.Validate()
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestInstallmentValidate(t *testing.T) {
	tx := validTx()

	tx.Installment = &Installment{PeriodIndex: 1, PeriodCount: 0}
	if !errors.Is(tx.Validate(), ErrInvalidPeriods) {
		t.Error("zero periods must be rejected")
	}

	tx.Installment = &Installment{PeriodIndex: 7, PeriodCount: 6}
	if tx.Validate() == nil {
		t.Error("period index beyond count must be rejected")
	}

	tx.Installment = &Installment{PeriodIndex: 2, PeriodCount: 6}
	if tx.Validate() == nil {
		t.Error("non-representative period without group id must be rejected")
	}

	tx.Installment = &Installment{GroupID: "rep", PeriodIndex: 2, PeriodCount: 6}
	if err := tx.Validate(); err != nil {
		t.Errorf("valid installment rejected: %v", err)
	}
}

func TestGroupIDResolution(t *testing.T) {
	rep := validTx()
	rep.ID = "rep-id"
	rep.Installment = &Installment{PeriodIndex: 1, PeriodCount: 3}

	if !rep.IsRepresentative() {
		t.Fatal("period 1 must be the representative")
	}
	if got := rep.GroupID(); got != "rep-id" {
		t.Errorf("representative group id = %q, want its own id", got)
	}

	member := validTx()
	member.ID = "other"
	member.Installment = &Installment{GroupID: "rep-id", PeriodIndex: 2, PeriodCount: 3}
	if member.IsRepresentative() {
		t.Error("period 2 must not be the representative")
	}
	if got := member.GroupID(); got != "rep-id" {
		t.Errorf("member group id = %q, want rep-id", got)
	}

	plain := validTx()
	if plain.GroupID() != "" || plain.IsInstallment() {
		t.Error("plain transaction has no group")
	}
}

func TestParseKind(t *testing.T) {
	cases := []struct {
		in       string
		fallback Kind
		want     Kind
	}{
		{"expense", Income, Expense},
		{"INCOME", Expense, Income},
		{" Expense ", Income, Expense},
		{"", Expense, Expense},
		{"transfer", Income, Income},
	}
	for _, tc := range cases {
		if got := ParseKind(tc.in, tc.fallback); got != tc.want {
			t.Errorf("ParseKind(%q, %q) = %q, want %q", tc.in, tc.fallback, got, tc.want)
		}
	}
}
