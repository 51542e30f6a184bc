package cache

import (
	"context"
	"time"
)

// Cache is a bounded, TTL-aware in-memory key/value store.
// All methods are safe for concurrent use by multiple goroutines.
//
// Every entry carries an absolute expiration deadline. When a new key is
// inserted into a full cache, the entry with the earliest deadline is
// evicted first. This approximates recency (short-lived entries go first)
// but is not LRU: access time is not tracked.
type Cache[K comparable, V any] interface {
	// Set inserts or updates k→v using the cache's DefaultTTL.
	// Inserting a new key into a full cache evicts the entry with the
	// earliest expiration deadline before the write; Set never rejects.
	Set(k K, v V)

	// SetWithTTL inserts or updates k→v with a per-entry TTL.
	// A non-positive ttl falls back to the cache's DefaultTTL.
	SetWithTTL(k K, v V, ttl time.Duration)

	// Get returns the value for k and a presence flag. An entry past its
	// deadline is removed on the spot and reported as a miss; expiration
	// is lazy, so Cleanup is still needed for keys nobody reads again.
	Get(k K) (V, bool)

	// Has reports whether k is present and unexpired. Like Get it purges
	// an expired entry, but it does not touch the hit/miss counters.
	Has(k K) bool

	// Delete removes k if present and returns true on success.
	// A caller-initiated delete does not count as an eviction and does
	// not invoke the OnEvict callback.
	Delete(k K) bool

	// Cleanup removes every expired entry and returns the count removed.
	Cleanup() int

	// Clear removes all entries as one bulk delete and returns the prior
	// size. No per-entry callbacks fire.
	Clear() int

	// Len returns the number of resident entries, expired or not.
	Len() int

	// Stats returns a point-in-time snapshot of counters and the
	// estimated memory footprint. The byte figure is a heuristic, not a
	// measurement.
	Stats() Stats

	// GetOrLoad returns the value for k, loading it via Options.Loader on
	// miss. Concurrent loads for the same key are coalesced. If no Loader
	// was configured, returns ErrNoLoader.
	GetOrLoad(ctx context.Context, k K) (V, error)

	// Close marks the cache closed. Future operations are ignored.
	Close() error
}
