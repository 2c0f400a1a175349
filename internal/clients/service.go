// Package clients is the customer directory of the till: searching existing
// customers and quick-adding a new one during a sale. All data lives on the
// backend; this package only shapes it for the terminal.
package clients

import (
	"context"
	"errors"
	"strings"

	"github.com/gero-pdv/caisse/internal/backend"
	"github.com/gero-pdv/caisse/internal/cart"
)

// ErrEmptyName is returned when a quick-add has no usable name.
var ErrEmptyName = errors.New("client name is required")

// Service reads and creates customer records on the backend.
type Service struct {
	Backend *backend.Client
}

// Search queries the customer directory and maps the records to the cart's
// client shape.
func (s *Service) Search(ctx context.Context, query string) ([]cart.Client, error) {
	if s == nil || s.Backend == nil {
		return nil, errors.New("clients service not configured")
	}
	records, err := s.Backend.SearchClients(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}
	out := make([]cart.Client, 0, len(records))
	for _, rec := range records {
		out = append(out, cart.Client{ID: rec.ID, Name: rec.Nom})
	}
	return out, nil
}

// QuickAdd creates a customer from just a name, as done mid-sale at the till.
func (s *Service) QuickAdd(ctx context.Context, name string) (cart.Client, error) {
	if s == nil || s.Backend == nil {
		return cart.Client{}, errors.New("clients service not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return cart.Client{}, ErrEmptyName
	}
	rec, err := s.Backend.CreateClient(ctx, name)
	if err != nil {
		return cart.Client{}, err
	}
	return cart.Client{ID: rec.ID, Name: rec.Nom}, nil
}
