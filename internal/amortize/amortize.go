// Package amortize computes equal-payment (annuity) loan schedules.
// Everything here is pure float math: no I/O, no allocation beyond the
// returned slice, safe to call from any goroutine.
package amortize

import "math"

// Period is one row of an amortization schedule.
type Period struct {
	Index     int     // 1-based
	Payment   float64 // constant across the schedule
	Interest  float64 // remaining principal * monthly rate
	Principal float64 // payment - interest
	Remaining float64 // principal left after this period
}

// MonthlyPayment returns the constant payment for an equal-payment loan.
//
// periods <= 0 degenerates to a single lump payment of the full
// principal. A zero rate divides the principal evenly with no rounding
// policy applied. Otherwise the standard annuity formula is used with
// monthly rate = annualRatePercent / 100 / 12.
func MonthlyPayment(principal, annualRatePercent float64, periods int) float64 {
	if periods <= 0 {
		return principal
	}
	if annualRatePercent == 0 {
		return principal / float64(periods)
	}
	r := annualRatePercent / 100 / 12
	pow := math.Pow(1+r, float64(periods))
	return principal * r * pow / (pow - 1)
}

// TotalInterest returns the interest paid over the whole schedule.
func TotalInterest(principal, annualRatePercent float64, periods int) float64 {
	return MonthlyPayment(principal, annualRatePercent, periods)*float64(periods) - principal
}

// Schedule expands the loan into its per-period detail. The final
// period forces the remaining principal to exactly 0 to absorb
// floating-point drift accumulated over the decrements.
func Schedule(principal, annualRatePercent float64, periods int) []Period {
	if periods <= 0 {
		return nil
	}
	payment := MonthlyPayment(principal, annualRatePercent, periods)
	r := annualRatePercent / 100 / 12

	out := make([]Period, 0, periods)
	remaining := principal
	for i := 1; i <= periods; i++ {
		var interest float64
		if annualRatePercent != 0 {
			interest = remaining * r
		}
		p := Period{
			Index:     i,
			Payment:   payment,
			Interest:  interest,
			Principal: payment - interest,
		}
		remaining -= p.Principal
		if i == periods {
			remaining = 0
		}
		p.Remaining = remaining
		out = append(out, p)
	}
	return out
}
