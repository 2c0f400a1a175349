// Package cart owns the in-progress sale of a terminal session: the ordered
// line items, the active reduction regime, the selected customer and the
// payment tracker of the last submitted order. Every mutation recomputes the
// derived line and cart totals before returning, so callers never observe an
// inconsistent state.
package cart

import (
	"math"

	"github.com/gero-pdv/caisse/internal/order"
	"github.com/gero-pdv/caisse/internal/pricing"
)

// OrderType flags the direction of the transaction sent to the backend. It
// does not affect any arithmetic.
type OrderType string

const (
	// OrderSale is a regular sale.
	OrderSale OrderType = "sale"
	// OrderReturn is a customer return.
	OrderReturn OrderType = "return"
)

// Product is the read-only article data a line refers to.
type Product struct {
	ID          string  `json:"id"`
	Designation string  `json:"designation"`
	Price       float64 `json:"price"`
	Tax         float64 `json:"tax"`
	Unit        string  `json:"unit"`
	Reference   string  `json:"reference"`
	OnHand      float64 `json:"onHand"`
}

// Client identifies the customer the sale is made to.
type Client struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Line is one cart entry. FinalPrice is derived and recomputed on every
// mutation, never set directly.
type Line struct {
	Product    Product           `json:"product"`
	Quantity   int               `json:"quantity"`
	UnitPrice  float64           `json:"unitPrice"`
	Reduction  pricing.Reduction `json:"reduction"`
	FinalPrice float64           `json:"finalPrice"`
}

// Cart is the aggregate for one terminal session. It is not safe for
// concurrent use; the owning session serialises access.
type Cart struct {
	lines           []*Line
	globalReduction float64
	orderType       OrderType
	client          *Client
	tracker         order.Tracker
	total           float64
}

// Snapshot is the serialisable view of a cart, used both as the API response
// shape and as the Redis persistence format.
type Snapshot struct {
	Lines           []Line       `json:"lines"`
	GlobalReduction float64      `json:"globalReduction"`
	OrderType       OrderType    `json:"orderType"`
	Client          *Client      `json:"client,omitempty"`
	Total           float64      `json:"total"`
	Order           order.Status `json:"order"`
}

// New returns an empty sale cart.
func New() *Cart {
	return &Cart{orderType: OrderSale}
}

// AddLine appends a product to the cart, or increments the quantity when a
// line for the product already exists. Adding the first line while a finished
// order is still tracked clears that stale tracker first.
func (c *Cart) AddLine(p Product) {
	if len(c.lines) == 0 && c.tracker.Active() {
		c.tracker.Clear()
	}
	if l := c.find(p.ID); l != nil {
		l.Quantity++
		c.recomputeLine(l)
		c.recomputeTotal()
		return
	}
	l := &Line{Product: p, Quantity: 1, UnitPrice: p.Price}
	c.recomputeLine(l)
	c.lines = append(c.lines, l)
	c.recomputeTotal()
}

// RemoveLine deletes the line for the given product.
func (c *Cart) RemoveLine(productID string) {
	for i, l := range c.lines {
		if l.Product.ID == productID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			break
		}
	}
	c.recomputeTotal()
}

// SetQuantity updates a line's quantity, clamped to at least one.
func (c *Cart) SetQuantity(productID string, qty int) {
	l := c.find(productID)
	if l == nil {
		return
	}
	if qty < 1 {
		qty = 1
	}
	l.Quantity = qty
	c.recomputeLine(l)
	c.recomputeTotal()
}

// SetUnitPrice overrides a line's unit price, clamped to be non-negative.
// Whether price editing is allowed at all is a policy decided outside the
// engine.
func (c *Cart) SetUnitPrice(productID string, price float64) {
	l := c.find(productID)
	if l == nil {
		return
	}
	if price < 0 || math.IsNaN(price) {
		price = 0
	}
	l.UnitPrice = price
	c.recomputeLine(l)
	c.recomputeTotal()
}

// SetLineReduction stores a per-line reduction. The value is kept even while
// a global reduction suppresses it, so deactivating the global reduction
// restores the line's own discount.
func (c *Cart) SetLineReduction(productID string, r pricing.Reduction) {
	l := c.find(productID)
	if l == nil {
		return
	}
	l.Reduction = pricing.ClampReduction(r, l.UnitPrice, l.Quantity)
	c.recomputeLine(l)
	c.recomputeTotal()
}

// SetGlobalReduction activates (percent > 0) or deactivates (percent == 0)
// the whole-cart percentage reduction and recomputes every line under the
// new regime. Per-line reductions and the global reduction are mutually
// exclusive: only one contributes to the total at any instant.
func (c *Cart) SetGlobalReduction(percent float64) {
	c.globalReduction = pricing.ClampPercent(percent)
	for _, l := range c.lines {
		c.recomputeLine(l)
	}
	c.recomputeTotal()
}

// SetOrderType tags the transaction direction.
func (c *Cart) SetOrderType(t OrderType) {
	if t == OrderSale || t == OrderReturn {
		c.orderType = t
	}
}

// SetClient selects the customer for the sale.
func (c *Cart) SetClient(cl Client) {
	c.client = &cl
}

// ClearClient removes the selected customer.
func (c *Cart) ClearClient() {
	c.client = nil
}

// Clear empties the cart and resets the reduction state. The tracker is left
// alone so a just-submitted order stays visible for follow-up payments.
func (c *Cart) Clear() {
	c.lines = nil
	c.globalReduction = 0
	c.total = 0
}

// Tracker exposes the session's order/payment tracker.
func (c *Cart) Tracker() *order.Tracker {
	return &c.tracker
}

// Total returns the current grand total.
func (c *Cart) Total() float64 {
	return c.total
}

// GlobalReduction returns the active whole-cart percentage, zero if inactive.
func (c *Cart) GlobalReduction() float64 {
	return c.globalReduction
}

// OrderType returns the transaction direction tag.
func (c *Cart) OrderType() OrderType {
	return c.orderType
}

// Client returns the selected customer, nil when none is chosen.
func (c *Cart) Client() *Client {
	return c.client
}

// Empty reports whether the cart holds no lines.
func (c *Cart) Empty() bool {
	return len(c.lines) == 0
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	for i, l := range c.lines {
		out[i] = *l
	}
	return out
}

// Snapshot captures the full serialisable state of the cart.
func (c *Cart) Snapshot() Snapshot {
	return Snapshot{
		Lines:           c.Lines(),
		GlobalReduction: c.globalReduction,
		OrderType:       c.orderType,
		Client:          c.client,
		Total:           c.total,
		Order:           c.tracker.Snapshot(),
	}
}

// FromSnapshot rebuilds a cart from persisted state, recomputing all derived
// totals rather than trusting the stored ones.
func FromSnapshot(s Snapshot) *Cart {
	c := New()
	if s.OrderType == OrderReturn {
		c.orderType = OrderReturn
	}
	c.client = s.Client
	c.globalReduction = pricing.ClampPercent(s.GlobalReduction)
	for i := range s.Lines {
		l := s.Lines[i]
		if l.Quantity < 1 {
			l.Quantity = 1
		}
		c.lines = append(c.lines, &l)
	}
	for _, l := range c.lines {
		c.recomputeLine(l)
	}
	c.recomputeTotal()
	c.tracker = order.Restore(s.Order)
	return c
}

func (c *Cart) find(productID string) *Line {
	for _, l := range c.lines {
		if l.Product.ID == productID {
			return l
		}
	}
	return nil
}

func (c *Cart) recomputeLine(l *Line) {
	if c.globalReduction > 0 {
		l.FinalPrice = pricing.LineTotalGlobal(l.UnitPrice, l.Quantity, c.globalReduction, l.Product.Tax)
		return
	}
	l.FinalPrice = pricing.LineTotal(l.UnitPrice, l.Quantity, l.Reduction, l.Product.Tax)
}

func (c *Cart) recomputeTotal() {
	totals := make([]float64, len(c.lines))
	for i, l := range c.lines {
		totals[i] = l.FinalPrice
	}
	c.total = pricing.SumLines(totals)
}
