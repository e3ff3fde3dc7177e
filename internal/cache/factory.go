package cache

import (
	"fmt"

	"well-go/internal/config"
	"well-go/internal/well"
)

// NewCacheStoreFromConfig returns the insight cache store for cfg.Type.
// The "database" type reuses db, which must also implement well.CacheStore.
func NewCacheStoreFromConfig(cfg config.CacheConfig, db well.CacheStore) (well.CacheStore, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "database":
		if db == nil {
			return nil, fmt.Errorf("database cache requires a database")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}
