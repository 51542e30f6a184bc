// Package manager owns a named collection of bounded TTL caches sized from
// host memory.
//
// A Manager probes the host once at construction (see package hardware),
// derives adaptive limits from the snapshot, and then:
//
//   - registers caches via CreateCache, enforcing the cache-count limit and
//     seeding per-cache entry limits;
//   - sweeps every cache for expired entries on CleanupInterval;
//   - aggregates estimated usage on MetricsInterval and alerts when it
//     crosses the warning (rate-limited) or critical (forces an immediate
//     sweep) threshold;
//   - tears everything down exactly once on Shutdown, with a bounded wait
//     for the background loops.
//
// The manager never touches individual entries; consumers hold the
// cache.Cache handles returned by CreateCache and operate on them directly.
// Signal handling is deliberately external: wire SIGINT/SIGTERM to
// Shutdown in the process's main (see examples/http_metrics).
//
//	cfg, _ := manager.LoadConfig()
//	m := manager.New(cfg, manager.Options{Logger: slog.Default()})
//	if err := m.Start(); err != nil { ... }
//	defer m.Shutdown()
//
//	sessions, err := manager.CreateCache(m, "sessions", cache.Options[string, Session]{
//	    DefaultTTL: 30 * time.Minute,
//	})
package manager
