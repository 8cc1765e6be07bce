// Package attempt holds the state of a login between the password step and
// the second factor. The state is ephemeral: it lives in memory with a TTL
// and a restart simply forces the client to start the login over.
package attempt

import (
	"context"
	"sync"
	"time"
)

// State is what the gate needs to finish a login once the second factor
// passes. Keyed by the challenge ID handed to the client.
type State struct {
	TenantID      string
	SubjectID     string
	DeviceID      string
	TrustDevice   bool // record device trust on completion
	TrustTTLHours int
	ExpiresAt     time.Time
}

// Store holds pending login attempts by challenge ID.
type Store interface {
	// Put stores the state until its ExpiresAt.
	Put(ctx context.Context, challengeID string, st State)
	// Get returns the state if present and not expired.
	Get(ctx context.Context, challengeID string) (State, bool)
	// Delete drops the state. Deleting a missing key is a no-op.
	Delete(ctx context.Context, challengeID string)
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]State
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory attempt store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]State),
		nowF: time.Now().UTC,
	}
}

// Put stores the state until its ExpiresAt.
func (s *MemoryStore) Put(ctx context.Context, challengeID string, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[challengeID] = st
}

// Get returns the state if present and not expired.
func (s *MemoryStore) Get(ctx context.Context, challengeID string) (State, bool) {
	s.mu.RLock()
	st, ok := s.m[challengeID]
	s.mu.RUnlock()
	if !ok {
		return State{}, false
	}
	if !st.ExpiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, challengeID)
		s.mu.Unlock()
		return State{}, false
	}
	return st, true
}

// Delete drops the state.
func (s *MemoryStore) Delete(ctx context.Context, challengeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, challengeID)
}
