// SPDX-License-Identifier: MIT

package mode

import "sync"

// Store is the persistent key-value state that crosses a reload boundary.
// Implementations must make each operation atomic; the reconciler never
// assumes read-modify-write across calls.
type Store interface {
	Get(key string) (value string, found bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// MemStore is an in-memory Store for tests and ephemeral setups.
type MemStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{values: make(map[string]string)}
}

// Get implements Store.
func (s *MemStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set implements Store.
func (s *MemStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Remove implements Store.
func (s *MemStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
