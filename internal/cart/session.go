package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested session could not be located.
var ErrNotFound = errors.New("session not found")

// Session binds one terminal's cart to an identifier. All mutations go
// through Update, which serialises access and persists the snapshot after
// the mutation completes.
type Session struct {
	ID string

	mu   sync.Mutex
	cart *Cart
}

// Registry tracks live sessions in memory and falls back to the snapshot
// store for sessions created before a restart.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	store    *Store
}

// NewRegistry constructs a session registry. The store may be nil, in which
// case sessions live only in memory.
func NewRegistry(store *Store) *Registry {
	return &Registry{sessions: make(map[string]*Session), store: store}
}

// Create opens a fresh session with an empty cart.
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	s := &Session{ID: uuid.NewString(), cart: New()}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	if err := r.store.Save(ctx, s.ID, s.cart.Snapshot()); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns a live session, restoring it from the snapshot store when the
// process has restarted since the session was created.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		return s, nil
	}
	snap, found, err := r.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	s = &Session{ID: id, cart: FromSnapshot(snap)}
	r.mu.Lock()
	if existing, ok := r.sessions[id]; ok {
		s = existing
	} else {
		r.sessions[id] = s
	}
	r.mu.Unlock()
	return s, nil
}

// Delete closes a session and drops its persisted snapshot.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	return r.store.Delete(ctx, id)
}

// Update runs fn against the session's cart under the session lock and then
// persists the resulting snapshot. The returned snapshot reflects the state
// after the mutation.
func (r *Registry) Update(ctx context.Context, s *Session, fn func(*Cart) error) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.cart); err != nil {
		return Snapshot{}, err
	}
	snap := s.cart.Snapshot()
	if err := r.store.Save(ctx, s.ID, snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// View runs fn against the cart under the session lock without persisting.
func (s *Session) View(fn func(*Cart)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.cart)
}

// Snapshot returns the current state of the session's cart.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Snapshot()
}
