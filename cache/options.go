package cache

import (
	"context"
	"log/slog"
	"time"
)

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// ReasonCapacity — evicted to make room for a new entry.
	ReasonCapacity EvictReason = iota
	// ReasonExpired — removed because its deadline passed (lazily on
	// access, or by Cleanup).
	ReasonExpired
	// ReasonManual — removed by an explicit Delete or Clear.
	ReasonManual
)

// String returns a stable label for the reason, suitable for metrics.
func (r EvictReason) String() string {
	switch r {
	case ReasonCapacity:
		return "capacity"
	case ReasonExpired:
		return "expired"
	default:
		return "manual"
	}
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int, estimatedBytes int64)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures a cache. Zero values are safe; defaults are applied
// in New():
//   - MaxEntries <= 0 => DefaultMaxEntries
//   - DefaultTTL <= 0 => DefaultTTL constant
//   - nil Metrics     => NoopMetrics
type Options[K comparable, V any] struct {
	// Name identifies the cache in logs. Set by the manager when the
	// cache is created through a registry.
	Name string

	// MaxEntries is the entry count limit. Inserting a new key at the
	// limit evicts the earliest-expiring entry first.
	MaxEntries int

	// DefaultTTL applies to Set and to SetWithTTL calls with a
	// non-positive ttl.
	DefaultTTL time.Duration

	// Loader fetches a value on cache miss. Used by GetOrLoad.
	Loader func(ctx context.Context, k K) (V, error)

	// OnEvict is called for capacity and expiry evictions (not for
	// caller-initiated deletes). It runs under the cache lock; keep it
	// lightweight. A panicking callback is logged and swallowed.
	OnEvict func(k K, v V, reason EvictReason)

	// OnWarning receives capacity-pressure notices, rate-limited to one
	// per WarningCooldown. Panics are logged and swallowed.
	OnWarning func(msg string, details map[string]any)

	// WarningCooldown is the minimum gap between OnWarning calls.
	// Zero means the default of one minute.
	WarningCooldown time.Duration

	// DisableStats turns off hit/miss/eviction counters; Stats() then
	// reports zero for them. Entry counts and byte estimates are always
	// tracked since eviction depends on them.
	DisableStats bool

	// Metrics receives Hit/Miss/Evict/Size signals. Nil => NoopMetrics.
	Metrics Metrics

	// Logger is used for callback failures. Nil => slog.Default().
	Logger *slog.Logger

	// Clock allows overriding the time source (tests). Nil => time.Now().
	Clock Clock
}
