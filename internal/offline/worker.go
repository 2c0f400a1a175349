package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/gero-pdv/caisse/internal/backend"
	"github.com/gero-pdv/caisse/internal/obs"
)

// Replayer resubmits captured orders to the backend.
type Replayer struct {
	Backend *backend.Client
	Logger  zerolog.Logger
}

// HandleVenteReplay processes one captured order. Transport failures are
// returned as-is so asynq retries with backoff; a backend validation
// rejection will never succeed on retry and skips straight to the dead
// letter queue.
func (r *Replayer) HandleVenteReplay(ctx context.Context, t *asynq.Task) error {
	var req backend.VenteRequest
	if err := json.Unmarshal(t.Payload(), &req); err != nil {
		obs.CountOfflineReplay("invalid")
		return fmt.Errorf("decode vente replay: %v: %w", err, asynq.SkipRetry)
	}

	resp, err := r.Backend.CreateVente(ctx, req)
	if err != nil {
		var verr *backend.ValidationError
		if errors.As(err, &verr) {
			obs.CountOfflineReplay("rejected")
			r.Logger.Error().
				Int64("client_id", req.ClientID).
				Float64("total", req.Total).
				Str("reason", verr.Message).
				Msg("offline vente rejected by backend")
			return fmt.Errorf("vente rejected: %v: %w", verr, asynq.SkipRetry)
		}
		obs.CountOfflineReplay("retry")
		return fmt.Errorf("replay vente: %w", err)
	}

	obs.CountOfflineReplay("ok")
	r.Logger.Info().
		Str("order_id", resp.ID).
		Float64("total", req.Total).
		Msg("offline vente replayed")
	return nil
}

// Mux returns the asynq handler mux for the offline worker.
func (r *Replayer) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeVenteReplay, r.HandleVenteReplay)
	return mux
}
