package cache

import (
	"context"
	"testing"
	"time"

	"well-go/internal/config"
	"well-go/internal/well"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	key := well.CacheKey{UserID: "alice", Period: well.PeriodWeekly}
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("returns nil when missing", func(t *testing.T) {
		m := NewMemoryStore()

		entry, err := m.GetEntry(ctx, key)
		if err != nil {
			t.Fatalf("GetEntry() error = %v", err)
		}
		if entry != nil {
			t.Errorf("GetEntry() = %+v, want nil", entry)
		}
	})

	t.Run("put replaces and copies payload", func(t *testing.T) {
		m := NewMemoryStore()

		payload := []byte(`{"v":1}`)
		if err := m.PutEntry(ctx, &well.CacheEntry{Key: key, Payload: payload, StoredAt: at}); err != nil {
			t.Fatalf("PutEntry() error = %v", err)
		}
		payload[0] = 'X' // caller mutation must not leak into the store

		if err := m.PutEntry(ctx, &well.CacheEntry{Key: key, Payload: []byte(`{"v":2}`), StoredAt: at.Add(time.Second)}); err != nil {
			t.Fatalf("PutEntry() error = %v", err)
		}
		entry, err := m.GetEntry(ctx, key)
		if err != nil {
			t.Fatalf("GetEntry() error = %v", err)
		}
		if string(entry.Payload) != `{"v":2}` {
			t.Errorf("Payload = %s, want {\"v\":2}", entry.Payload)
		}
		if m.Len() != 1 {
			t.Errorf("Len() = %d, want 1", m.Len())
		}
	})

	t.Run("composite keys are distinct", func(t *testing.T) {
		m := NewMemoryStore()

		_ = m.PutEntry(ctx, &well.CacheEntry{Key: well.CacheKey{UserID: "a:b", Period: "c"}, Payload: []byte("1"), StoredAt: at})
		entry, _ := m.GetEntry(ctx, well.CacheKey{UserID: "a", Period: "b:c"})
		if entry != nil {
			t.Error("GetEntry() matched a different composite key")
		}
	})

	t.Run("delete removes entry", func(t *testing.T) {
		m := NewMemoryStore()

		_ = m.PutEntry(ctx, &well.CacheEntry{Key: key, Payload: []byte("{}"), StoredAt: at})
		if err := m.DeleteEntry(ctx, key); err != nil {
			t.Fatalf("DeleteEntry() error = %v", err)
		}
		if m.Len() != 0 {
			t.Errorf("Len() = %d after delete, want 0", m.Len())
		}
	})
}

func TestNewCacheStoreFromConfig(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		got, err := NewCacheStoreFromConfig(config.CacheConfig{Type: "memory"}, nil)
		if err != nil {
			t.Fatalf("NewCacheStoreFromConfig() error = %v", err)
		}
		if _, ok := got.(*MemoryStore); !ok {
			t.Errorf("NewCacheStoreFromConfig() = %T, want *MemoryStore", got)
		}
	})

	t.Run("database reuses the given store", func(t *testing.T) {
		db := NewMemoryStore()
		got, err := NewCacheStoreFromConfig(config.CacheConfig{Type: "database"}, db)
		if err != nil {
			t.Fatalf("NewCacheStoreFromConfig() error = %v", err)
		}
		if got != well.CacheStore(db) {
			t.Error("NewCacheStoreFromConfig() did not return the database store")
		}
	})

	t.Run("database without store", func(t *testing.T) {
		if _, err := NewCacheStoreFromConfig(config.CacheConfig{Type: "database"}, nil); err == nil {
			t.Fatal("NewCacheStoreFromConfig() expected error without database")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := NewCacheStoreFromConfig(config.CacheConfig{Type: "redis"}, nil); err == nil {
			t.Fatal("NewCacheStoreFromConfig() expected error for unknown type")
		}
	})
}
