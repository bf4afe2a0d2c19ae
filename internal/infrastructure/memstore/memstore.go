// Package memstore provides an in-process ledger.Store for local runs
// and tests. It mirrors the atomic-increment contract of the persistent
// store but loses all state on restart.
package memstore

import (
	"context"
	"sync"
)

// Store is a mutex-guarded counter map implementing ledger.Store.
type Store struct {
	mu       sync.Mutex
	counters map[string]int64
}

func New() *Store {
	return &Store{counters: make(map[string]int64)}
}

func (s *Store) GetInt(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[key], nil
}

func (s *Store) IncrementBy(_ context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key] += delta
	return s.counters[key], nil
}
