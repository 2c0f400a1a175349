package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const storeKeyPrefix = "caisse:session:"

// Store persists cart snapshots in Redis so an open sale survives a terminal
// restart. A nil store is a valid no-op.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore constructs a snapshot store with the given TTL.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Load fetches a persisted snapshot. It reports whether the key existed.
func (s *Store) Load(ctx context.Context, sessionID string) (Snapshot, bool, error) {
	if s == nil || s.client == nil || sessionID == "" {
		return Snapshot{}, false, nil
	}
	data, err := s.client.Get(ctx, storeKeyPrefix+sessionID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return snap, true, nil
}

// Save writes a snapshot with the configured TTL.
func (s *Store) Save(ctx context.Context, sessionID string, snap Snapshot) error {
	if s == nil || s.client == nil || sessionID == "" {
		return nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}
	if err := s.client.Set(ctx, storeKeyPrefix+sessionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", sessionID, err)
	}
	return nil
}

// Delete drops a persisted snapshot.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if s == nil || s.client == nil || sessionID == "" {
		return nil
	}
	return s.client.Del(ctx, storeKeyPrefix+sessionID).Err()
}
