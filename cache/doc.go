// Package cache provides a generic, bounded, TTL-aware in-memory key/value
// store with eviction callbacks, usage statistics, optional singleflight
// loading, and lightweight metrics hooks.
//
// Design
//
//   - Concurrency: one mutex per cache guards the entry map and makes
//     Set/Get/Has/Delete/Cleanup/Clear linearizable with respect to one
//     another. No operation blocks on I/O, so critical sections are short.
//
//   - Bounds: MaxEntries is enforced by evicting before inserting, never
//     after — the size limit holds at every observable instant and a write
//     is never rejected. The victim is the entry with the earliest
//     expiration deadline. This approximates recency (short-lived entries
//     go first) but is NOT true LRU, since access time is not tracked.
//
//   - TTL: every entry carries an absolute deadline (UnixNano). Expiration
//     is lazy: Get and Has purge an expired entry when they touch it, and
//     Cleanup sweeps the rest on a schedule (typically driven by the
//     manager package).
//
//   - Stats: hit/miss/eviction counters live in cache-line padded atomics.
//     The byte figure in Stats is estimated from the entry count, never
//     measured.
//
//   - Callbacks: OnEvict(k, v, reason) fires for capacity and expiry
//     evictions; OnWarning fires on capacity pressure with a cool-down.
//     Both run with panic isolation — a failing callback is logged and the
//     triggering operation still completes.
//
// Basic usage
//
//	c := cache.New[string, []byte](cache.Options[string, []byte]{
//	    MaxEntries: 10_000,
//	    DefaultTTL: time.Minute,
//	})
//	c.Set("a", []byte("1"))
//	if v, ok := c.Get("a"); ok {
//	    _ = v // use value
//	}
//	c.Delete("a")
//
// With a per-entry TTL
//
//	c.SetWithTTL("tmp", []byte("v"), 200*time.Millisecond)
//	time.Sleep(300 * time.Millisecond)
//	_, ok := c.Get("tmp") // ok == false (expired)
//
// With GetOrLoad (singleflight)
//
//	c := cache.New[string, string](cache.Options[string, string]{
//	    MaxEntries: 1024,
//	    Loader: func(ctx context.Context, k string) (string, error) {
//	        // e.g. fetch from DB
//	        return "v:" + k, nil
//	    },
//	})
//	v, err := c.GetOrLoad(context.Background(), "key")
//
// Caches are usually created through the manager package, which names them,
// seeds MaxEntries from host memory, sweeps them on a schedule, and watches
// aggregate usage against memory-pressure thresholds.
package cache
