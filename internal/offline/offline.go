// Package offline queues orders captured while the backend was unreachable
// and replays them once connectivity returns. Replay is at-least-once: the
// backend deduplicates on its side, and permanently rejected orders go to the
// dead letter queue for manual review.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gero-pdv/caisse/internal/backend"
)

// TypeVenteReplay is the task type for replaying a captured order.
const TypeVenteReplay = "vente:replay"

// QueueName is the asynq queue holding offline captures.
const QueueName = "offline"

// NewVenteReplayTask builds the replay task for a captured order.
func NewVenteReplayTask(req backend.VenteRequest) (*asynq.Task, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode vente replay: %w", err)
	}
	return asynq.NewTask(TypeVenteReplay, payload), nil
}

// Queue enqueues captured orders for background replay.
type Queue struct {
	Client    *asynq.Client
	MaxRetry  int
	Retention time.Duration
	TaskQueue string
}

// EnqueueVente queues one captured order.
func (q *Queue) EnqueueVente(ctx context.Context, req backend.VenteRequest) error {
	if q == nil || q.Client == nil {
		return errors.New("offline queue not configured")
	}
	task, err := NewVenteReplayTask(req)
	if err != nil {
		return err
	}
	name := q.TaskQueue
	if name == "" {
		name = QueueName
	}
	maxRetry := q.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 25
	}
	opts := []asynq.Option{asynq.Queue(name), asynq.MaxRetry(maxRetry)}
	if q.Retention > 0 {
		opts = append(opts, asynq.Retention(q.Retention))
	}
	if _, err := q.Client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue vente replay: %w", err)
	}
	return nil
}
