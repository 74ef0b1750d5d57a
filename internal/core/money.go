// Package core holds the ledger's data model and the pure decision
// rules (amount parsing, duplicate detection) shared by every capture
// path.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-supplied amount string to a float64 value.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rejects anything that is not a strictly positive decimal number. All
// exactness-sensitive work happens on decimal.Decimal; the float is only
// produced at the very end.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}
	f, _ := d.Float64()
	return f, nil
}

// ParseRate converts an annual percentage rate string to a float64.
// Unlike ParseAmount it never fails: an unparsable or negative rate
// defaults to 0 (no-interest schedule).
func ParseRate(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// FormatAmount renders an amount with exactly two decimal places, the
// fixed form used by the export schema.
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
