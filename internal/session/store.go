package session

import (
	"context"
	"sync"

	"ticketsync/internal/domain/auth"
)

// Store persists the non-secret part of a session across restarts. Load
// returns (nil, nil) when nothing has been saved.
type Store interface {
	Load(ctx context.Context) (*auth.PersistedState, error)
	Save(ctx context.Context, state *auth.PersistedState) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps state for the life of the process only.
type MemoryStore struct {
	mu    sync.RWMutex
	state *auth.PersistedState
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (*auth.PersistedState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil, nil
	}
	cp := *s.state
	cp.Cookies = append([]auth.Cookie(nil), s.state.Cookies...)
	return &cp, nil
}

func (s *MemoryStore) Save(ctx context.Context, state *auth.PersistedState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := *state
	cp.Cookies = append([]auth.Cookie(nil), state.Cookies...)
	s.mu.Lock()
	s.state = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = nil
	s.mu.Unlock()
	return nil
}
