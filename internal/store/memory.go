// Package store provides the key-value stores the snippet tree is persisted
// to. Every store enforces a per-value size ceiling; the library layer
// chunks the serialized tree to fit under it.
package store

import (
	"fmt"
	"sort"
	"sync"

	"snip-go/internal/snip"
)

// ErrItemTooLarge is returned by Set when a value exceeds MaxItemSize.
var ErrItemTooLarge = snip.ErrItemTooLarge

// checkSize rejects values over max. A non-positive max means unlimited.
func checkSize(key string, value []byte, max int) error {
	if max > 0 && len(value) > max {
		return fmt.Errorf("set %q: %d bytes > %d: %w", key, len(value), max, ErrItemTooLarge)
	}
	return nil
}

// MemoryStore is an in-memory implementation of the Store interface,
// useful for tests and ephemeral sessions. It is safe for concurrent use.
type MemoryStore struct {
	maxItemSize int
	items       map[string][]byte
	mu          sync.RWMutex
}

// NewMemoryStore creates an empty store with the given size ceiling.
func NewMemoryStore(maxItemSize int) *MemoryStore {
	return &MemoryStore{
		maxItemSize: maxItemSize,
		items:       make(map[string][]byte),
	}
}

// Get returns a copy of the stored value.
func (m *MemoryStore) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores a copy of value.
func (m *MemoryStore) Set(key string, value []byte) error {
	if err := checkSize(key, value, m.maxItemSize); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = append([]byte(nil), value...)
	return nil
}

// Remove deletes key.
func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}

// MaxItemSize returns the per-value ceiling.
func (m *MemoryStore) MaxItemSize() int { return m.maxItemSize }

// Keys returns the stored keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Compile-time check that MemoryStore implements snip.Store
var _ snip.Store = (*MemoryStore)(nil)
