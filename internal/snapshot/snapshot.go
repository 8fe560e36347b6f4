// Package snapshot keeps last-known-good copies of datasets so read paths
// can keep answering while the backing store is unreachable.
package snapshot

import "sync"

// Store holds one collection per key. Values are copied on the way in and
// on the way out.
type Store[T any] struct {
	mu    sync.RWMutex
	items map[string][]T
}

// New creates an empty snapshot store.
func New[T any]() *Store[T] {
	return &Store[T]{items: make(map[string][]T)}
}

// Set replaces the snapshot for key.
func (s *Store[T]) Set(key string, items []T) {
	cp := make([]T, len(items))
	copy(cp, items)
	s.mu.Lock()
	s.items[key] = cp
	s.mu.Unlock()
}

// Get returns a copy of the snapshot for key. ok is false when nothing was
// ever stored under key.
func (s *Store[T]) Get(key string) (items []T, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.items[key]
	if !ok {
		return nil, false
	}
	cp := make([]T, len(stored))
	copy(cp, stored)
	return cp, true
}

// Keys returns the keys currently held.
func (s *Store[T]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	return keys
}
