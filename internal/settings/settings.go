// Package settings stores the terminal feature flags: ticket printing,
// automatic printing after checkout, unit price editing and reductions.
// Flags persist in Redis so every terminal of a store shares them.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const settingsKey = "caisse:settings"

// ErrUnknownFeature is returned when toggling a feature that does not exist.
var ErrUnknownFeature = errors.New("unknown feature")

// Feature names accepted by Set.
const (
	FeatureTicketPrinting     = "ticketPrinting"
	FeatureAutoTicketPrinting = "autoTicketPrinting"
	FeaturePriceEditing       = "priceEditing"
	FeatureReductions         = "reductions"
)

// Features is the flag set served to terminals.
type Features struct {
	TicketPrinting     bool `json:"ticketPrinting"`
	AutoTicketPrinting bool `json:"autoTicketPrinting"`
	PriceEditing       bool `json:"priceEditing"`
	Reductions         bool `json:"reductions"`
}

// Service reads and writes the shared flag set. With no Redis client the
// defaults are always served and writes fail.
type Service struct {
	Client   *redis.Client
	Defaults Features
}

// Get returns the persisted flags, or the defaults when none are stored yet.
func (s *Service) Get(ctx context.Context) (Features, error) {
	if s == nil {
		return Features{}, errors.New("settings service not configured")
	}
	if s.Client == nil {
		return s.Defaults, nil
	}
	data, err := s.Client.Get(ctx, settingsKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return s.Defaults, nil
		}
		return Features{}, fmt.Errorf("load settings: %w", err)
	}
	var f Features
	if err := json.Unmarshal(data, &f); err != nil {
		return Features{}, fmt.Errorf("decode settings: %w", err)
	}
	return f, nil
}

// Set toggles one feature and persists the whole flag set.
func (s *Service) Set(ctx context.Context, feature string, enabled bool) (Features, error) {
	if s == nil || s.Client == nil {
		return Features{}, errors.New("settings service not configured")
	}
	f, err := s.Get(ctx)
	if err != nil {
		return Features{}, err
	}
	switch feature {
	case FeatureTicketPrinting:
		f.TicketPrinting = enabled
	case FeatureAutoTicketPrinting:
		f.AutoTicketPrinting = enabled
	case FeaturePriceEditing:
		f.PriceEditing = enabled
	case FeatureReductions:
		f.Reductions = enabled
	default:
		return Features{}, fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}
	data, err := json.Marshal(f)
	if err != nil {
		return Features{}, fmt.Errorf("encode settings: %w", err)
	}
	if err := s.Client.Set(ctx, settingsKey, data, 0).Err(); err != nil {
		return Features{}, fmt.Errorf("save settings: %w", err)
	}
	return f, nil
}
