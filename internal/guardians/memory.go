package guardians

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps applications in process memory. Contents are lost on
// restart; durability is explicitly out of scope for this backend.
type MemoryStore struct {
	mu   sync.RWMutex
	apps map[string]Application
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{apps: make(map[string]Application)}
}

func (s *MemoryStore) Upsert(_ context.Context, app Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[app.ActorID] = app
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[id]
	if !ok {
		return Application{}, ErrNotFound
	}
	return app, nil
}

func (s *MemoryStore) List(_ context.Context, status Status) ([]Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Application, 0, len(s.apps))
	for _, app := range s.apps {
		if status == "" || app.Status == status {
			out = append(out, app)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Transition(_ context.Context, id string, from, to Status, decidedBy, reason string, at time.Time) (Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[id]
	if !ok || app.Status != from {
		return Application{}, ErrNotFound
	}
	app.Status = to
	app.DecidedBy = decidedBy
	app.DecidedAt = &at
	app.Reason = reason
	s.apps[id] = app
	return app, nil
}
