// Package profile is the eventually-consistent side store for player
// profiles. It sits entirely outside the authoritative real-time path:
// the gateway writes to it fire-and-forget and never blocks a protocol
// handler on it.
package profile

import (
	"context"
	"sync"
	"time"
)

// Profile is the persisted view of a returning player. Keys are folded
// identity tokens, never raw credentials.
type Profile struct {
	IdentityKey uint64    `json:"identityKey"`
	Name        string    `json:"name"`
	LastSeen    time.Time `json:"lastSeen"`
}

// Store is the collaborator interface the gateway talks to. Real
// deployments back it with an external document store; tests and the
// default wiring use the in-memory implementation below.
type Store interface {
	Load(ctx context.Context, identityKey uint64) (Profile, bool, error)
	Save(ctx context.Context, p Profile) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[uint64]Profile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[uint64]Profile)}
}

func (s *MemoryStore) Load(_ context.Context, identityKey uint64) (Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[identityKey]
	return p, ok, nil
}

func (s *MemoryStore) Save(_ context.Context, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.IdentityKey] = p
	return nil
}
