// Package order tracks the sale created at checkout and the payments applied
// against it, so a terminal can follow up on partially paid orders.
package order

import "github.com/gero-pdv/caisse/internal/pricing"

// Tracker holds the state of the most recent order for one terminal session.
// It is not safe for concurrent use; the owning session serialises access.
type Tracker struct {
	orderID string
	total   float64
	paid    float64
	active  bool
}

// Status is the JSON snapshot of a tracker exposed over the API.
type Status struct {
	OrderID   string  `json:"orderId,omitempty"`
	Total     float64 `json:"total"`
	Paid      float64 `json:"paid"`
	Remaining float64 `json:"remaining"`
	Complete  bool    `json:"complete"`
	Active    bool    `json:"active"`
}

// RecordCheckout opens tracking for a freshly created order. The total is the
// backend-confirmed amount when available, otherwise the locally computed
// cart total at submit time. A nil first payment means full cash settlement;
// a zero first payment models a credit sale.
func (t *Tracker) RecordCheckout(orderID string, total float64, firstPayment *float64) {
	t.orderID = orderID
	t.total = pricing.Round2(total)
	if firstPayment != nil {
		t.paid = pricing.Round2(*firstPayment)
	} else {
		t.paid = t.total
	}
	t.active = true
}

// RecordPayment adds an additional payment to the tracked order. Overpayment
// is not rejected here; callers validate the remaining balance.
func (t *Tracker) RecordPayment(amount float64) {
	if !t.active {
		return
	}
	t.paid = pricing.Round2(t.paid + pricing.Round2(amount))
}

// Complete reports whether nothing remains to pay. An idle tracker has
// nothing to complete and reports true.
func (t *Tracker) Complete() bool {
	if !t.active {
		return true
	}
	return t.paid >= t.total
}

// Active reports whether an order is currently tracked.
func (t *Tracker) Active() bool {
	return t.active
}

// OrderID returns the tracked order identifier, empty when idle.
func (t *Tracker) OrderID() string {
	if !t.active {
		return ""
	}
	return t.orderID
}

// Clear resets the tracker to the idle state.
func (t *Tracker) Clear() {
	*t = Tracker{}
}

// Snapshot returns the serialisable view of the tracker.
func (t *Tracker) Snapshot() Status {
	if !t.active {
		return Status{Complete: true}
	}
	remaining := pricing.Round2(t.total - t.paid)
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		OrderID:   t.orderID,
		Total:     t.total,
		Paid:      t.paid,
		Remaining: remaining,
		Complete:  t.Complete(),
		Active:    true,
	}
}

// Restore rebuilds a tracker from a persisted snapshot.
func Restore(s Status) Tracker {
	if !s.Active {
		return Tracker{}
	}
	return Tracker{orderID: s.OrderID, total: s.Total, paid: s.Paid, active: true}
}
