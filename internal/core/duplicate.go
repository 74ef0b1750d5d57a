package core

import (
	"math"
	"time"
)

// DuplicatePolicy is the tolerance window used to decide whether two
// records describe the same real-world event. It is a local decision
// rule: matching never raises an error, it only tells the caller to
// skip an insert.
type DuplicatePolicy struct {
	TimeWindow      time.Duration
	AmountTolerance float64
	// MatchCategories additionally requires main and sub category to
	// match exactly. Import merges re-see their own exported rows, so
	// they match tightly; AI captures re-photograph the same receipt,
	// so they match loosely on time only.
	MatchCategories bool
}

// CapturePolicy is the default policy for AI-driven single-record
// capture: the same receipt photographed twice lands minutes apart.
func CapturePolicy() DuplicatePolicy {
	return DuplicatePolicy{TimeWindow: 2 * time.Minute, AmountTolerance: 0.01}
}

// ImportPolicy is the default policy for bulk import merge: a re-import
// of the same archive carries exact timestamps.
func ImportPolicy() DuplicatePolicy {
	return DuplicatePolicy{TimeWindow: time.Second, AmountTolerance: 0.01, MatchCategories: true}
}

// Matches reports whether candidate and existing fall inside the
// policy's tolerance window.
func (p DuplicatePolicy) Matches(candidate, existing Transaction) bool {
	if candidate.Kind != existing.Kind {
		return false
	}
	if math.Abs(candidate.Amount-existing.Amount) > p.AmountTolerance {
		return false
	}
	delta := candidate.OccurredAt.Sub(existing.OccurredAt)
	if delta < 0 {
		delta = -delta
	}
	if delta > p.TimeWindow {
		return false
	}
	if p.MatchCategories {
		if candidate.MainCategory != existing.MainCategory || candidate.SubCategory != existing.SubCategory {
			return false
		}
	}
	return true
}

// IsDuplicate reports whether candidate matches at least one record in
// existing under the given policy.
func IsDuplicate(candidate Transaction, existing []Transaction, policy DuplicatePolicy) bool {
	for _, e := range existing {
		if policy.Matches(candidate, e) {
			return true
		}
	}
	return false
}
