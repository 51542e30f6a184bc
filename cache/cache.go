package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/adaptivecache/internal/singleflight"
	"github.com/IvanBrykalov/adaptivecache/internal/util"
)

// ErrNoLoader is returned by GetOrLoad when no Loader was configured in Options.
var ErrNoLoader = errors.New("cache: no Loader provided")

// Defaults applied by New() when the corresponding Options field is unset.
const (
	DefaultMaxEntries      = 1000
	DefaultEntryTTL        = 5 * time.Minute
	DefaultWarningCooldown = time.Minute
)

// entry is a stored value with its absolute expiration deadline.
// exp is UnixNano and is strictly in the future at insertion time.
type entry[V any] struct {
	val V
	exp int64
}

// cache is a mutex-guarded bounded TTL map. A single lock per cache keeps
// get/set/delete/cleanup linearizable and lets capacity eviction pick the
// earliest deadline across the whole map. Critical sections never block on
// I/O, so the lock is held only briefly.
type cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[V]

	opt    Options[K, V]
	closed atomic.Bool

	// UnixNano of the last OnWarning call (capacity pressure cool-down).
	lastWarning atomic.Int64

	// singleflight group for coalescing concurrent loads in GetOrLoad.
	sf singleflight.Group[K, V]

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicInt64
	misses util.PaddedAtomicInt64
	evicts util.PaddedAtomicInt64
}

// New constructs a cache with the provided Options.
// Defaults:
//   - MaxEntries <= 0      -> DefaultMaxEntries
//   - DefaultTTL <= 0      -> DefaultEntryTTL
//   - WarningCooldown <= 0 -> DefaultWarningCooldown
//   - nil Metrics          -> NoopMetrics
//   - nil Logger           -> slog.Default()
func New[K comparable, V any](opt Options[K, V]) Cache[K, V] {
	if opt.MaxEntries <= 0 {
		opt.MaxEntries = DefaultMaxEntries
	}
	if opt.DefaultTTL <= 0 {
		opt.DefaultTTL = DefaultEntryTTL
	}
	if opt.WarningCooldown <= 0 {
		opt.WarningCooldown = DefaultWarningCooldown
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}

	// Cap the map prealloc; adaptive limits can be in the hundreds of
	// thousands on large hosts and most caches never fill up.
	prealloc := opt.MaxEntries
	if prealloc > 1024 {
		prealloc = 1024
	}

	return &cache[K, V]{
		entries: make(map[K]*entry[V], prealloc),
		opt:     opt,
	}
}

// ---- Cache[K,V] implementation ----

// Set inserts or updates k→v with the cache's DefaultTTL.
func (c *cache[K, V]) Set(k K, v V) {
	c.SetWithTTL(k, v, 0)
}

// SetWithTTL inserts or updates k→v with a per-entry TTL.
// A non-positive ttl falls back to DefaultTTL. If the key is new and the
// cache is full, the earliest-expiring entry is evicted before the insert;
// the write itself is never rejected.
func (c *cache[K, V]) SetWithTTL(k K, v V, ttl time.Duration) {
	if c.closed.Load() {
		return
	}
	if ttl <= 0 {
		ttl = c.opt.DefaultTTL
	}
	exp := c.now() + int64(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[k]; ok {
		// In-place update: size is unchanged, no eviction needed.
		e.val = v
		e.exp = exp
		return
	}
	if len(c.entries) >= c.opt.MaxEntries {
		c.evictEarliestLocked()
	}
	c.entries[k] = &entry[V]{val: v, exp: exp}
	c.sizeChangedLocked()
}

// Get returns the value for k. An expired entry is removed on the spot and
// reported as a miss.
func (c *cache[K, V]) Get(k K) (V, bool) {
	var zero V
	if c.closed.Load() {
		return zero, false
	}
	now := c.now()

	c.mu.Lock()
	e, ok := c.entries[k]
	if !ok {
		c.mu.Unlock()
		c.miss()
		return zero, false
	}
	if now >= e.exp {
		c.removeLocked(k, ReasonExpired)
		c.sizeChangedLocked()
		c.mu.Unlock()
		c.miss()
		return zero, false
	}
	v := e.val
	c.mu.Unlock()
	c.hit()
	return v, true
}

// Has reports whether k is present and unexpired, purging the entry if its
// deadline passed. Hit/miss counters are not touched.
func (c *cache[K, V]) Has(k K) bool {
	if c.closed.Load() {
		return false
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		return false
	}
	if now >= e.exp {
		c.removeLocked(k, ReasonExpired)
		c.sizeChangedLocked()
		return false
	}
	return true
}

// Delete removes k if present. Caller-initiated deletes are not counted as
// evictions and do not invoke OnEvict.
func (c *cache[K, V]) Delete(k K) bool {
	if c.closed.Load() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.removeLocked(k, ReasonManual) {
		return false
	}
	c.sizeChangedLocked()
	return true
}

// Cleanup sweeps the whole map and removes every expired entry.
// Complements lazy expiration: entries nobody reads again are reclaimed
// here rather than on access.
func (c *cache[K, V]) Cleanup() int {
	if c.closed.Load() {
		return 0
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if now >= e.exp {
			c.removeLocked(k, ReasonExpired)
			removed++
		}
	}
	if removed > 0 {
		c.sizeChangedLocked()
	}
	return removed
}

// Clear removes all entries as a single bulk delete and returns the prior
// size. No per-entry callbacks fire and the eviction counter is untouched.
func (c *cache[K, V]) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	prior := len(c.entries)
	clear(c.entries)
	c.sizeChangedLocked()
	return prior
}

// Len returns the number of resident entries, including not-yet-purged
// expired ones.
func (c *cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *cache[K, V]) Stats() Stats {
	c.mu.Lock()
	size := len(c.entries)
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	gets := hits + misses
	return Stats{
		Size:           size,
		Hits:           hits,
		Misses:         misses,
		Evictions:      c.evicts.Load(),
		HitRate:        float64(hits) / float64(max(int64(1), gets)),
		EstimatedBytes: EstimateBytes(size),
	}
}

// GetOrLoad returns the value for k; on miss it loads via Options.Loader,
// coalescing concurrent loads for the same key (singleflight).
// If no Loader is configured, returns ErrNoLoader.
func (c *cache[K, V]) GetOrLoad(ctx context.Context, k K) (V, error) {
	// fast path
	if v, ok := c.Get(k); ok {
		return v, nil
	}
	if c.opt.Loader == nil {
		var zero V
		return zero, ErrNoLoader
	}

	return c.sf.Do(ctx, k, func() (V, error) {
		// double-check after flight join
		if v, ok := c.Get(k); ok {
			return v, nil
		}
		v, err := c.opt.Loader(ctx, k)
		if err == nil {
			c.Set(k, v)
		}
		return v, err
	})
}

// Close marks the cache as closed. Future operations are ignored.
func (c *cache[K, V]) Close() error {
	c.closed.Store(true)
	return nil
}

// -------------------- internals (mu held) --------------------

// evictEarliestLocked removes the entry with the smallest deadline.
// Deadline order approximates recency (short TTLs go first) but is not
// LRU; access time is not tracked.
func (c *cache[K, V]) evictEarliestLocked() {
	var (
		victim   K
		earliest int64
		found    bool
	)
	for k, e := range c.entries {
		if !found || e.exp < earliest {
			victim, earliest, found = k, e.exp, true
		}
	}
	if !found {
		return
	}
	c.removeLocked(victim, ReasonCapacity)
	c.warnCapacity()
}

// removeLocked deletes k and, for non-manual reasons, updates eviction
// accounting and fires OnEvict. Returns whether the key existed.
func (c *cache[K, V]) removeLocked(k K, reason EvictReason) bool {
	e, ok := c.entries[k]
	if !ok {
		return false
	}
	delete(c.entries, k)
	if reason != ReasonManual {
		if !c.opt.DisableStats {
			c.evicts.Add(1)
		}
		c.opt.Metrics.Evict(reason)
		c.fireEvict(k, e.val, reason)
	}
	return true
}

// sizeChangedLocked pushes the current size to the metrics backend.
func (c *cache[K, V]) sizeChangedLocked() {
	n := len(c.entries)
	c.opt.Metrics.Size(n, EstimateBytes(n))
}

func (c *cache[K, V]) hit() {
	if !c.opt.DisableStats {
		c.hits.Add(1)
	}
	c.opt.Metrics.Hit()
}

func (c *cache[K, V]) miss() {
	if !c.opt.DisableStats {
		c.misses.Add(1)
	}
	c.opt.Metrics.Miss()
}

// fireEvict invokes OnEvict with panic isolation: a failing callback is
// logged and the triggering operation still completes.
func (c *cache[K, V]) fireEvict(k K, v V, reason EvictReason) {
	cb := c.opt.OnEvict
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.opt.Logger.Error("cache eviction callback panicked",
				slog.String("cache", c.opt.Name),
				slog.String("reason", reason.String()),
				slog.Any("panic", r))
		}
	}()
	cb(k, v, reason)
}

// warnCapacity notifies OnWarning about capacity pressure, suppressing
// repeats within WarningCooldown to avoid storms on a hot full cache.
func (c *cache[K, V]) warnCapacity() {
	cb := c.opt.OnWarning
	if cb == nil {
		return
	}
	now := c.now()
	last := c.lastWarning.Load()
	if last != 0 && now-last < int64(c.opt.WarningCooldown) {
		return
	}
	if !c.lastWarning.CompareAndSwap(last, now) {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.opt.Logger.Error("cache warning callback panicked",
				slog.String("cache", c.opt.Name),
				slog.Any("panic", r))
		}
	}()
	cb("cache at capacity, evicting earliest-expiring entries", map[string]any{
		"cache":       c.opt.Name,
		"max_entries": c.opt.MaxEntries,
	})
}

// now returns the current time in UnixNano, honoring Options.Clock.
func (c *cache[K, V]) now() int64 {
	if c.opt.Clock != nil {
		return c.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}
