package cache

import (
	"context"
	"sync"

	"well-go/internal/well"
)

// MemoryStore is a process-local well.CacheStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[well.CacheKey]well.CacheEntry
}

var _ well.CacheStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[well.CacheKey]well.CacheEntry)}
}

func (m *MemoryStore) GetEntry(_ context.Context, key well.CacheKey) (*well.CacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	e.Payload = append([]byte(nil), e.Payload...)
	return &e, nil
}

func (m *MemoryStore) PutEntry(_ context.Context, entry *well.CacheEntry) error {
	e := *entry
	e.Payload = append([]byte(nil), entry.Payload...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.Key] = e
	return nil
}

func (m *MemoryStore) DeleteEntry(_ context.Context, key well.CacheKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
