package cache

import (
	"context"
	"sync"

	"github.com/krbiz/backend/internal/domain/settings"
)

// InMemorySettingsStore implements settings.Store using an in-memory map.
// Suitable for single-user local runs and tests; values are lost on restart.
type InMemorySettingsStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewInMemorySettingsStore creates an empty store
func NewInMemorySettingsStore() *InMemorySettingsStore {
	return &InMemorySettingsStore{values: make(map[string]string)}
}

// Get returns a value and whether it exists
func (s *InMemorySettingsStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores a value
func (s *InMemorySettingsStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Ensure InMemorySettingsStore implements settings.Store
var _ settings.Store = (*InMemorySettingsStore)(nil)
