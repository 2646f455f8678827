// Package delivery models the courier's delivery confirmation and the match
// keys that join it to order rows.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/krbiz/backend/internal/domain/platform"
)

var (
	ErrEmptyDeliveryColumn = errors.New("delivery: delivery column is required")
	ErrEmptyVariable       = errors.New("delivery: unified variable is required")
)

// MatchKey links a delivery confirmation column to a unified variable
type MatchKey struct {
	DeliveryColumn string `json:"delivery_column"`
	Variable       string `json:"variable"`
}

// Validate checks both sides of the key are set
func (k MatchKey) Validate() error {
	if strings.TrimSpace(k.DeliveryColumn) == "" {
		return ErrEmptyDeliveryColumn
	}
	if strings.TrimSpace(k.Variable) == "" {
		return ErrEmptyVariable
	}
	return nil
}

// ColumnPair is a match key resolved for one platform
type ColumnPair struct {
	DeliveryColumn string
	OrderColumn    string
}

// KeyRepository persists the match key list
type KeyRepository interface {
	LoadKeys(ctx context.Context) ([]MatchKey, error)
	SaveKeys(ctx context.Context, keys []MatchKey) error
}

// KeyRegistry is the user-configured match key list. Mutations are written
// through to the repository before they become visible.
type KeyRegistry struct {
	mu   sync.RWMutex
	repo KeyRepository
	keys []MatchKey
}

// LoadKeyRegistry reads the current key list from the repository
func LoadKeyRegistry(ctx context.Context, repo KeyRepository) (*KeyRegistry, error) {
	keys, err := repo.LoadKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("delivery: load match keys: %w", err)
	}
	return &KeyRegistry{repo: repo, keys: keys}, nil
}

// Keys returns a copy of the key list, newest first
func (r *KeyRegistry) Keys() []MatchKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]MatchKey(nil), r.keys...)
}

// Add upserts a key. Any key bound to the same delivery column is replaced
// and the new key goes first.
func (r *KeyRegistry) Add(ctx context.Context, key MatchKey) error {
	key.DeliveryColumn = strings.TrimSpace(key.DeliveryColumn)
	key.Variable = strings.TrimSpace(key.Variable)
	if err := key.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]MatchKey, 0, len(r.keys)+1)
	next = append(next, key)
	for _, k := range r.keys {
		if k.DeliveryColumn != key.DeliveryColumn {
			next = append(next, k)
		}
	}
	return r.commit(ctx, next)
}

// Delete removes the key bound to a delivery column and reports whether one
// existed. Deleting an unknown column is a no-op and saves nothing.
func (r *KeyRegistry) Delete(ctx context.Context, deliveryColumn string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]MatchKey, 0, len(r.keys))
	for _, k := range r.keys {
		if k.DeliveryColumn != deliveryColumn {
			next = append(next, k)
		}
	}
	if len(next) == len(r.keys) {
		return false, nil
	}
	return true, r.commit(ctx, next)
}

// Replace swaps the whole key list, used on settings reset
func (r *KeyRegistry) Replace(ctx context.Context, keys []MatchKey) error {
	for _, k := range keys {
		if err := k.Validate(); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commit(ctx, append([]MatchKey(nil), keys...))
}

// commit must be called with the write lock held
func (r *KeyRegistry) commit(ctx context.Context, next []MatchKey) error {
	if err := r.repo.SaveKeys(ctx, next); err != nil {
		return fmt.Errorf("delivery: save match keys: %w", err)
	}
	r.keys = next
	return nil
}

// Resolve turns the key list into delivery/order column pairs for one
// platform. Keys whose variable the platform does not map are dropped.
func (r *KeyRegistry) Resolve(schema platform.Schema) []ColumnPair {
	return ResolveKeys(r.Keys(), schema)
}

// ResolveAll resolves the key list for every platform of a registry
func (r *KeyRegistry) ResolveAll(reg *platform.Registry) map[string][]ColumnPair {
	keys := r.Keys()
	out := make(map[string][]ColumnPair, reg.Len())
	for _, s := range reg.Schemas() {
		out[s.Platform] = ResolveKeys(keys, s)
	}
	return out
}

// ResolveKeys resolves a key list against one platform schema
func ResolveKeys(keys []MatchKey, schema platform.Schema) []ColumnPair {
	pairs := make([]ColumnPair, 0, len(keys))
	for _, k := range keys {
		col := schema.Column(k.Variable)
		if col == "" {
			continue
		}
		pairs = append(pairs, ColumnPair{DeliveryColumn: k.DeliveryColumn, OrderColumn: col})
	}
	return pairs
}
