package well

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultInsightTTL is how long a generated insight payload is served from cache.
const DefaultInsightTTL = 10 * time.Minute

// insightCount is the number of insights and of recommendations in every payload.
const insightCount = 3

// Insights is the payload returned for an insight request.
type Insights struct {
	Insights        []string       `json:"insights"`
	Recommendations []string       `json:"recommendations"`
	Details         map[string]any `json:"details,omitempty"`
	GeneratedAt     time.Time      `json:"generated_at"`
	Fallback        bool           `json:"fallback,omitempty"`
}

var fallbackInsights = []string{
	"Keep logging your activities, meals and sleep to unlock personalised insights.",
	"Consistent daily tracking makes trends easier to spot.",
	"Small improvements sustained over several days add up to real progress.",
}

var fallbackRecommendations = []string{
	"Aim for at least 6000 steps each day.",
	"Try to get more than 7 hours of sleep tonight.",
	"Log every meal today to keep your calorie balance accurate.",
}

// FallbackInsights returns the fixed payload served when insights cannot be generated.
func FallbackInsights(at time.Time) *Insights {
	return &Insights{
		Insights:        append([]string(nil), fallbackInsights...),
		Recommendations: append([]string(nil), fallbackRecommendations...),
		GeneratedAt:     at.UTC(),
		Fallback:        true,
	}
}

// ComputeFunc produces a fresh insight payload.
type ComputeFunc func(ctx context.Context) (*Insights, error)

// InsightCache memoizes insight payloads per user and period for a fixed TTL.
// Entries are replaced whole. Concurrent misses for the same key may both
// compute; the later write wins.
type InsightCache struct {
	store   CacheStore
	clock   Clock
	ttl     time.Duration
	logger  Logger
	metrics Instrumentation
}

func NewInsightCache(store CacheStore, clock Clock, ttl time.Duration, logger Logger, metrics Instrumentation) *InsightCache {
	if ttl <= 0 {
		ttl = DefaultInsightTTL
	}
	if metrics == nil {
		metrics = NopInstrumentation{}
	}
	return &InsightCache{store: store, clock: clock, ttl: ttl, logger: logger, metrics: metrics}
}

// GetOrCompute returns the cached payload for key unless regenerate is set or
// the entry has expired, in which case compute is called and its result stored.
// A failing compute yields FallbackInsights and leaves the cache unchanged.
// A payload that does not survive a JSON round trip is returned uncached.
func (c *InsightCache) GetOrCompute(ctx context.Context, key CacheKey, regenerate bool, compute ComputeFunc) *Insights {
	if !regenerate {
		if cached := c.lookup(ctx, key); cached != nil {
			c.metrics.InsightServed(InsightHit)
			return cached
		}
	}

	payload, err := compute(ctx)
	if err == nil && payload == nil {
		err = errors.New("compute returned no payload")
	}
	if err != nil {
		c.logger.Warn("insight generation failed, serving fallback", "user", key.UserID, "period", key.Period, "error", err)
		c.metrics.InsightServed(InsightFallback)
		return FallbackInsights(c.clock.Now())
	}

	data, decoded, err := encodeInsights(payload)
	if err != nil {
		c.logger.Warn("insight payload not cached", "user", key.UserID, "period", key.Period, "error", err)
		c.metrics.InsightServed(InsightUncacheable)
		return payload
	}

	entry := &CacheEntry{Key: key, Payload: data, StoredAt: c.clock.Now()}
	if err := c.store.PutEntry(ctx, entry); err != nil {
		c.logger.Warn("storing insight cache entry", "user", key.UserID, "period", key.Period, "error", err)
	}
	c.metrics.InsightServed(InsightMiss)
	return decoded
}

// Invalidate drops the cached entry for key.
func (c *InsightCache) Invalidate(ctx context.Context, key CacheKey) error {
	if err := c.store.DeleteEntry(ctx, key); err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// lookup returns the live entry for key, purging it if it has expired or
// cannot be decoded.
func (c *InsightCache) lookup(ctx context.Context, key CacheKey) *Insights {
	entry, err := c.store.GetEntry(ctx, key)
	if err != nil {
		c.logger.Warn("reading insight cache entry", "user", key.UserID, "period", key.Period, "error", err)
		return nil
	}
	if entry == nil {
		return nil
	}
	if c.clock.Now().Sub(entry.StoredAt) >= c.ttl {
		c.purge(ctx, key, "expired")
		return nil
	}
	var out Insights
	if err := json.Unmarshal(entry.Payload, &out); err != nil {
		c.purge(ctx, key, "undecodable")
		return nil
	}
	return &out
}

func (c *InsightCache) purge(ctx context.Context, key CacheKey, reason string) {
	if err := c.store.DeleteEntry(ctx, key); err != nil {
		c.logger.Warn("purging insight cache entry", "user", key.UserID, "period", key.Period, "error", err)
		return
	}
	c.logger.Debug("insight cache entry purged", "user", key.UserID, "period", key.Period, "reason", reason)
}

// encodeInsights marshals p and decodes it back, so the value handed to the
// caller on a miss is the same value a later hit will return.
func encodeInsights(p *Insights) ([]byte, *Insights, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, nil, &SerializationError{Err: err}
	}
	var decoded Insights
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, nil, &SerializationError{Err: err}
	}
	return data, &decoded, nil
}
