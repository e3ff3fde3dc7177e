package well

import (
	"context"
	"time"
)

// CacheKey identifies an insight cache entry. It is a struct rather than a
// joined string so delimiter characters inside a user ID cannot collide.
type CacheKey struct {
	UserID string
	Period Period
}

// CacheEntry is a stored insight payload. Entries are replaced whole, never merged.
type CacheEntry struct {
	Key      CacheKey
	Payload  []byte // JSON-encoded *Insights
	StoredAt time.Time
}

// CacheStore persists insight cache entries. Expiry is decided by the caller;
// stores only hold entries.
type CacheStore interface {
	// GetEntry returns the entry for key, or nil if there is none.
	GetEntry(ctx context.Context, key CacheKey) (*CacheEntry, error)

	// PutEntry stores entry, replacing any existing entry for the same key.
	PutEntry(ctx context.Context, entry *CacheEntry) error

	// DeleteEntry removes the entry for key. Deleting a missing key is not an error.
	DeleteEntry(ctx context.Context, key CacheKey) error
}
