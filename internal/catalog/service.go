// Package catalog serves the product list a terminal browses and searches.
// Pages come from the backend and are cached in Redis so repeated browsing
// does not hammer the remote API; search filters the fetched page locally.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gero-pdv/caisse/internal/backend"
	"github.com/gero-pdv/caisse/internal/cart"
)

const cacheKeyPrefix = "caisse:catalog:page:"

// Service fetches and caches catalog pages.
type Service struct {
	Backend *backend.Client
	Cache   *Cache
	Logger  zerolog.Logger
}

// List returns one page of the product catalog, served from cache when fresh.
// A cache failure is logged and falls through to the backend.
func (s *Service) List(ctx context.Context, page int) ([]cart.Product, error) {
	if s == nil || s.Backend == nil {
		return nil, errors.New("catalog service not configured")
	}
	if page < 1 {
		page = 1
	}
	key := fmt.Sprintf("%s%d", cacheKeyPrefix, page)

	var cached []cart.Product
	hit, err := s.Cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.Logger.Warn().Err(err).Int("page", page).Msg("catalog cache read failed")
	}
	if hit {
		return cached, nil
	}

	articles, err := s.Backend.Articles(ctx, page)
	if err != nil {
		return nil, err
	}
	products := make([]cart.Product, 0, len(articles))
	for _, a := range articles {
		products = append(products, a.Product())
	}
	if err := s.Cache.SetJSON(ctx, key, products); err != nil {
		s.Logger.Warn().Err(err).Int("page", page).Msg("catalog cache write failed")
	}
	return products, nil
}

// Search returns the products of one page whose designation or reference
// contains the query, case-insensitively. An empty query returns the page
// unfiltered.
func (s *Service) Search(ctx context.Context, query string, page int) ([]cart.Product, error) {
	products, err := s.List(ctx, page)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return products, nil
	}
	out := make([]cart.Product, 0, len(products))
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Designation), query) ||
			strings.Contains(strings.ToLower(p.Reference), query) {
			out = append(out, p)
		}
	}
	return out, nil
}
