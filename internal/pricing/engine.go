// Package pricing implements the cart pricing rules shared with the remote
// commerce backend. Amounts are plain decimal values, tax-exclusive (HT) or
// tax-inclusive (TTC); every intermediate result is rounded to two decimals
// so totals match the backend's step-by-step computation to the cent.
package pricing

import "math"

// epsilon is the double-precision machine epsilon. It nudges values off
// binary representation boundaries before rounding so that e.g. 1.005 rounds
// to 1.01 rather than 1.00.
const epsilon = 2.220446049250313e-16

// ReductionKind discriminates how a line reduction is interpreted.
type ReductionKind string

const (
	// ReductionNone means no reduction applies to the line.
	ReductionNone ReductionKind = ""
	// ReductionPercent treats the amount as a percentage of the unit price.
	ReductionPercent ReductionKind = "percentage"
	// ReductionFixed treats the amount as a flat deduction per unit.
	ReductionFixed ReductionKind = "fixed"
)

// Reduction describes a per-line discount. The zero value means none.
type Reduction struct {
	Amount float64       `json:"amount"`
	Kind   ReductionKind `json:"kind"`
}

// Active reports whether the reduction participates in pricing.
func (r Reduction) Active() bool {
	return r.Kind == ReductionPercent || r.Kind == ReductionFixed
}

// Round2 rounds a monetary value to two decimals, half away from zero, after
// an epsilon nudge. Idempotent. NaN and infinities pass through unchanged.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.Round((v+epsilon)*100) / 100
}

// UnitAfterReduction returns the tax-exclusive unit price once the line
// reduction has been applied. A fixed reduction cannot push the price below
// zero.
func UnitAfterReduction(unitPrice float64, r Reduction) float64 {
	switch r.Kind {
	case ReductionPercent:
		return unitPrice * (1 - r.Amount/100)
	case ReductionFixed:
		return math.Max(0, unitPrice-r.Amount)
	default:
		return unitPrice
	}
}

// LineTotal computes the tax-inclusive total of one cart line. The rounding
// sequence is mandatory: round the reduced HT unit price, round the TTC unit
// price, then round after multiplying by the quantity. Collapsing the steps
// into a single multiply drifts from the backend by fractions of a cent.
func LineTotal(unitPrice float64, qty int, r Reduction, taxPercent float64) float64 {
	ht := Round2(UnitAfterReduction(unitPrice, r))
	ttcUnit := Round2(ht * (1 + taxPercent/100))
	total := Round2(ttcUnit * float64(qty))
	return math.Max(0, total)
}

// LineTotalGlobal computes one line's tax-inclusive total while a whole-cart
// percentage reduction is active. Per-line reductions are suppressed and the
// global percentage comes off the HT unit price before tax, matching the
// backend's discount-then-tax order. Discounting the TTC subtotal instead
// diverges whenever tax rates differ across lines.
func LineTotalGlobal(unitPrice float64, qty int, globalPercent, taxPercent float64) float64 {
	ht := Round2(unitPrice * (1 - globalPercent/100))
	ttcUnit := Round2(ht * (1 + taxPercent/100))
	total := Round2(ttcUnit * float64(qty))
	return math.Max(0, total)
}

// SumLines adds already-rounded line totals and rounds the grand total.
func SumLines(totals []float64) float64 {
	var sum float64
	for _, t := range totals {
		sum += t
	}
	return Round2(sum)
}

// ClampPercent normalises a percentage into [0, 100].
func ClampPercent(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ClampReduction normalises a reduction against the line it applies to. A
// percentage is clamped into [0, 100]; a fixed amount is clamped into
// [0, unitPrice*qty] so the line can never go negative.
func ClampReduction(r Reduction, unitPrice float64, qty int) Reduction {
	switch r.Kind {
	case ReductionPercent:
		r.Amount = ClampPercent(r.Amount)
	case ReductionFixed:
		if r.Amount < 0 || math.IsNaN(r.Amount) {
			r.Amount = 0
		}
		if limit := unitPrice * float64(qty); r.Amount > limit {
			r.Amount = limit
		}
	}
	return r
}
