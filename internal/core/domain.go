package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

const (
	Expense Kind = "expense"
	Income  Kind = "income"
)

type (
	// Kind classifies a transaction as money going out or coming in.
	Kind string

	// Transaction is the ledger's atomic record. Identity is assigned once
	// and never changes; the amount is immutable after creation except for
	// the early-payoff mutation performed by the installment service.
	Transaction struct {
		ID           string
		Kind         Kind
		OccurredAt   time.Time // local civil time, not UTC-normalized
		Amount       float64
		Currency     string
		MainCategory string
		SubCategory  string
		Counterparty string
		Note         string
		SourceText   string
		Attachment   []byte

		Installment *Installment
	}

	// Installment carries the metadata shared by all periods of one split
	// purchase. The period with PeriodIndex == 1 is the representative:
	// its transaction ID doubles as the group identifier, and every other
	// period references it through GroupID. GroupID is a back-reference
	// for lookup, never an ownership edge, so deleting a non-representative
	// period leaves the group intact.
	Installment struct {
		GroupID           string
		PeriodIndex       int
		PeriodCount       int
		AnnualRatePercent float64
		TotalPrincipal    float64
	}

	// Category is one (main, sub, kind) triple of the learned taxonomy.
	// UsageCount only drives ranking; transactions reference categories
	// by value, so deleting or renaming a category never touches them.
	Category struct {
		Main       string
		Sub        string
		Kind       Kind
		UsageCount int64
		CreatedAt  time.Time
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidKind     = errors.New("invalid transaction kind")
	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrEmptyCategory   = errors.New("empty category")
	ErrInvalidPeriods  = errors.New("period count must be positive")
	ErrZeroDate        = errors.New("date cannot be zero")
)

// IsValid reports whether k is one of the two supported kinds.
func (k Kind) IsValid() bool {
	return k == Expense || k == Income
}

// ParseKind maps a kind string to a Kind, defaulting to fallback for
// anything unrecognized.
func ParseKind(s string, fallback Kind) Kind {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Expense:
		return Expense
	case Income:
		return Income
	default:
		return fallback
	}
}

// IsRepresentative reports whether this transaction is the first period
// of its installment group, i.e. the record whose ID names the group.
func (t Transaction) IsRepresentative() bool {
	return t.Installment != nil && t.Installment.PeriodIndex == 1
}

// IsInstallment reports whether this transaction is one period of a
// split purchase.
func (t Transaction) IsInstallment() bool {
	return t.Installment != nil
}

// GroupID resolves the identifier shared by every period of this
// transaction's group. For the representative that is its own ID.
func (t Transaction) GroupID() string {
	if t.Installment == nil {
		return ""
	}
	if t.Installment.PeriodIndex == 1 {
		return t.ID
	}
	return t.Installment.GroupID
}

func (t Transaction) Validate() error {
	if !t.Kind.IsValid() {
		return ErrInvalidKind
	}
	if t.OccurredAt.IsZero() {
		return ErrZeroDate
	}
	if t.Amount < 0 || math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Currency) == "" {
		return ErrInvalidCurrency
	}
	if strings.TrimSpace(t.MainCategory) == "" || strings.TrimSpace(t.SubCategory) == "" {
		return ErrEmptyCategory
	}
	if t.Installment != nil {
		return t.Installment.validate()
	}
	return nil
}

func (ins Installment) validate() error {
	if ins.PeriodCount <= 0 {
		return ErrInvalidPeriods
	}
	if ins.PeriodIndex < 1 || ins.PeriodIndex > ins.PeriodCount {
		return errors.New("period index out of range")
	}
	if ins.PeriodIndex > 1 && ins.GroupID == "" {
		return errors.New("non-representative period missing group id")
	}
	return nil
}

func (c Category) Validate() error {
	if !c.Kind.IsValid() {
		return ErrInvalidKind
	}
	if strings.TrimSpace(c.Main) == "" || strings.TrimSpace(c.Sub) == "" {
		return ErrEmptyCategory
	}
	return nil
}
