// Package timelock provides persistence for pending time locks: an
// in-memory store for tests and single-process deployments, and a SQLite
// store that survives restarts.
package timelock

import (
	"context"
	"fmt"
	"sync"

	"github.com/goldengate/goldengate/internal/domain/policy"
)

// MemoryStore is a map-backed policy.Store, safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	locks map[string]policy.TimeLock
}

var _ policy.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locks: make(map[string]policy.TimeLock)}
}

func (s *MemoryStore) Insert(_ context.Context, lock policy.TimeLock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.locks[lock.ID]; exists {
		return fmt.Errorf("time lock %s already exists", lock.ID)
	}
	s.locks[lock.ID] = lock
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (policy.TimeLock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lock, ok := s.locks[id]
	if !ok {
		return policy.TimeLock{}, policy.ErrLockNotFound
	}
	return lock, nil
}

func (s *MemoryStore) Cancel(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		return policy.ErrLockNotFound
	}
	lock.Cancelled = true
	s.locks[id] = lock
	return nil
}
