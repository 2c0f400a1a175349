// Package checkout turns a session cart into an order on the remote backend
// and keeps the session's payment tracker in step. Orders captured while the
// backend is unreachable are handed to the offline queue for later replay.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gero-pdv/caisse/internal/backend"
	"github.com/gero-pdv/caisse/internal/cart"
	"github.com/gero-pdv/caisse/internal/obs"
	"github.com/gero-pdv/caisse/internal/order"
)

var (
	// ErrEmptyCart is returned when checkout is attempted on an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNoClient is returned when no customer has been selected.
	ErrNoClient = errors.New("no client selected")
	// ErrNoOrder is returned when a follow-up payment has no tracked order.
	ErrNoOrder = errors.New("no order to complete")
)

// PaymentInput is the payment block captured at the till.
type PaymentInput struct {
	Amount         float64 `json:"amount" validate:"gt=0"`
	AccountID      string  `json:"accountId" validate:"required"`
	MethodID       string  `json:"paymentMethodId" validate:"required"`
	Note           string  `json:"note"`
	DueDate        string  `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	CheckReference string  `json:"checkReference"`
}

// Input is the checkout request. A nil payment with Credit false means full
// cash settlement; Credit true opens the order with nothing paid.
type Input struct {
	Payment *PaymentInput `json:"payment"`
	Credit  bool          `json:"credit"`
}

// Output reports the result of a checkout.
type Output struct {
	Message string          `json:"message"`
	OrderID string          `json:"orderId"`
	Total   float64         `json:"total"`
	Queued  bool            `json:"queued"`
	Ticket  json.RawMessage `json:"ticket,omitempty"`
	Order   order.Status    `json:"order"`
}

// OfflineQueue captures orders that could not reach the backend.
type OfflineQueue interface {
	EnqueueVente(ctx context.Context, req backend.VenteRequest) error
}

// Service orchestrates checkout and follow-up payments for cart sessions.
type Service struct {
	Backend  *backend.Client
	Sessions *cart.Registry
	Offline  OfflineQueue
	Logger   zerolog.Logger
	Validate *validator.Validate
}

func (s *Service) validate(v any) error {
	if s.Validate == nil {
		return nil
	}
	return s.Validate.Struct(v)
}

// Create submits the session's cart as an order. Preconditions (non-empty
// cart, selected client) are enforced here, before any network call. On
// success the cart is cleared and the tracker opens for the new order; the
// backend-confirmed total wins over the locally computed one when provided.
func (s *Service) Create(ctx context.Context, session *cart.Session, in Input) (Output, error) {
	if s == nil || s.Backend == nil || s.Sessions == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	if in.Payment != nil {
		if err := s.validate(in.Payment); err != nil {
			return Output{}, fmt.Errorf("invalid payment: %w", err)
		}
	}

	var out Output
	_, err := s.Sessions.Update(ctx, session, func(c *cart.Cart) error {
		if c.Empty() {
			return ErrEmptyCart
		}
		client := c.Client()
		if client == nil {
			return ErrNoClient
		}

		req := buildVente(c, in)
		resp, err := s.Backend.CreateVente(ctx, req)
		if err != nil {
			if errors.Is(err, backend.ErrUnavailable) && s.Offline != nil {
				return s.captureOffline(ctx, c, req, in, &out)
			}
			obs.CountCheckout("error")
			return err
		}

		total := c.Total()
		if resp.Total != nil {
			total = *resp.Total
		}
		c.Tracker().RecordCheckout(resp.ID, total, firstPayment(in))
		c.Clear()
		c.ClearClient()

		out = Output{
			Message: resp.Message,
			OrderID: resp.ID,
			Total:   total,
			Ticket:  resp.Ticket,
			Order:   c.Tracker().Snapshot(),
		}
		obs.CountCheckout("ok")
		s.Logger.Info().Str("order_id", resp.ID).Float64("total", total).Msg("checkout submitted")
		return nil
	})
	if err != nil {
		return Output{}, err
	}
	return out, nil
}

// captureOffline enqueues the vente for replay and tracks it locally under a
// synthetic order id so follow-up state stays visible at the till.
func (s *Service) captureOffline(ctx context.Context, c *cart.Cart, req backend.VenteRequest, in Input, out *Output) error {
	if err := s.Offline.EnqueueVente(ctx, req); err != nil {
		obs.CountCheckout("error")
		return fmt.Errorf("queue offline vente: %w", err)
	}
	localID := "offline-" + uuid.NewString()
	c.Tracker().RecordCheckout(localID, c.Total(), firstPayment(in))
	total := c.Total()
	c.Clear()
	c.ClearClient()
	*out = Output{
		Message: "vente enregistrée hors ligne",
		OrderID: localID,
		Total:   total,
		Queued:  true,
		Order:   c.Tracker().Snapshot(),
	}
	obs.CountCheckout("queued")
	s.Logger.Warn().Str("order_id", localID).Msg("backend unreachable, vente queued for replay")
	return nil
}

// AddPayment submits an additional payment for the session's tracked order.
func (s *Service) AddPayment(ctx context.Context, session *cart.Session, in PaymentInput) (order.Status, error) {
	if s == nil || s.Backend == nil || s.Sessions == nil {
		return order.Status{}, errors.New("checkout service not configured")
	}
	if err := s.validate(&in); err != nil {
		return order.Status{}, fmt.Errorf("invalid payment: %w", err)
	}

	var status order.Status
	_, err := s.Sessions.Update(ctx, session, func(c *cart.Cart) error {
		tracker := c.Tracker()
		if !tracker.Active() {
			return ErrNoOrder
		}
		if err := s.Backend.AddPayment(ctx, tracker.OrderID(), toPaiement(in)); err != nil {
			obs.CountPayment("error")
			return err
		}
		tracker.RecordPayment(in.Amount)
		status = tracker.Snapshot()
		obs.CountPayment("ok")
		return nil
	})
	if err != nil {
		return order.Status{}, err
	}
	return status, nil
}

// Ticket fetches the printable receipt for an order.
func (s *Service) Ticket(ctx context.Context, orderID string) (json.RawMessage, error) {
	if s == nil || s.Backend == nil {
		return nil, errors.New("checkout service not configured")
	}
	return s.Backend.Ticket(ctx, orderID)
}

// buildVente assembles the wire payload from the cart state. Line reductions
// are sent as stored even while the global reduction suppresses them; the
// backend applies the same exclusivity rule.
func buildVente(c *cart.Cart, in Input) backend.VenteRequest {
	lines := c.Lines()
	wire := make([]backend.VenteLine, 0, len(lines))
	for _, l := range lines {
		wire = append(wire, backend.VenteLine{
			ProduitID:     l.Product.ID,
			Quantite:      l.Quantity,
			PrixUnitaire:  l.UnitPrice,
			Reduction:     l.Reduction.Amount,
			ReductionType: backend.WireReduction(l.Reduction.Kind),
			Total:         l.FinalPrice,
		})
	}
	req := backend.VenteRequest{
		Type:             backend.WireOrderType(c.OrderType()),
		ClientID:         c.Client().ID,
		Lignes:           wire,
		ReductionGlobale: c.GlobalReduction(),
		Total:            c.Total(),
		Credit:           in.Credit,
	}
	if in.Payment != nil {
		p := toPaiement(*in.Payment)
		req.Paiement = &p
	}
	return req
}

func toPaiement(in PaymentInput) backend.Paiement {
	return backend.Paiement{
		Montant:        in.Amount,
		CompteID:       in.AccountID,
		MethodeID:      in.MethodID,
		Note:           in.Note,
		DatePrevue:     in.DueDate,
		CheckReference: in.CheckReference,
	}
}

func firstPayment(in Input) *float64 {
	if in.Credit {
		zero := 0.0
		return &zero
	}
	if in.Payment != nil {
		amount := in.Payment.Amount
		return &amount
	}
	return nil
}
