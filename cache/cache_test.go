package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

type fakeClock struct{ t int64 }

func (f *fakeClock) NowUnixNano() int64  { return f.t }
func (f *fakeClock) add(d time.Duration) { f.t += int64(d) }

func newFakeClock() *fakeClock {
	// Start away from zero so deadlines are always positive.
	return &fakeClock{t: int64(time.Hour)}
}

// Uses a fake clock to avoid timing flakiness.
// Ensures that per-entry TTL is respected independent of Cleanup.
func TestCache_TTL_FakeClock(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := New[string, string](Options[string, string]{MaxEntries: 4, Clock: clk})
	t.Cleanup(func() { _ = c.Close() })

	c.SetWithTTL("x", "v", 100*time.Millisecond)
	if v, ok := c.Get("x"); !ok || v != "v" {
		t.Fatalf("fresh read: want v, got %q ok=%v", v, ok)
	}
	clk.add(200 * time.Millisecond)
	if _, ok := c.Get("x"); ok {
		t.Fatal("expired hit")
	}
}

// Basic Set/Get/Delete semantics: round-trip, overwrite, delete idempotence.
func TestCache_BasicSetGetDelete(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{MaxEntries: 8})
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get a: want 1, got %v ok=%v", v, ok)
	}

	c.Set("a", 11)
	if v, _ := c.Get("a"); v != 11 {
		t.Fatalf("overwrite: want 11, got %v", v)
	}

	if !c.Delete("a") {
		t.Fatal("Delete a must be true")
	}
	if c.Delete("a") {
		t.Fatal("Delete of absent key must be false")
	}
	if c.Len() != 0 {
		t.Fatalf("size after deletes: want 0, got %d", c.Len())
	}
}

// The size limit holds after every Set: eviction happens before the
// insert, and the new write is never rejected.
func TestCache_CapacityInvariant(t *testing.T) {
	t.Parallel()

	const maxEntries = 8
	c := New[string, int](Options[string, int]{MaxEntries: maxEntries})
	t.Cleanup(func() { _ = c.Close() })

	for i := 0; i < 100; i++ {
		k := fmt.Sprintf("k:%d", i)
		c.Set(k, i)
		if n := c.Len(); n > maxEntries {
			t.Fatalf("after set %d: size %d exceeds limit %d", i, n, maxEntries)
		}
		if !c.Has(k) {
			t.Fatalf("freshly written key %q must be present", k)
		}
	}
}

// Capacity eviction removes the entry with the smallest deadline, not the
// least recently inserted one.
func TestCache_EvictEarliestDeadline(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := New[string, int](Options[string, int]{MaxEntries: 2, Clock: clk})
	t.Cleanup(func() { _ = c.Close() })

	c.SetWithTTL("a", 1, 1000*time.Millisecond)
	c.SetWithTTL("b", 2, 5000*time.Millisecond)
	c.SetWithTTL("c", 3, 5000*time.Millisecond) // evicts "a"

	if c.Len() != 2 {
		t.Fatalf("size: want 2, got %d", c.Len())
	}
	if c.Has("a") {
		t.Fatal("a must be evicted (earliest deadline)")
	}
	if !c.Has("b") || !c.Has("c") {
		t.Fatal("b and c must survive")
	}
}

// An expired entry is purged by the Get that discovers it: the miss counter
// moves and the size drops, without any Cleanup call.
func TestCache_LazyPurgeOnGet(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := New[string, int](Options[string, int]{MaxEntries: 4, Clock: clk})
	t.Cleanup(func() { _ = c.Close() })

	c.SetWithTTL("x", 1, 10*time.Millisecond)
	clk.add(20 * time.Millisecond)

	if _, ok := c.Get("x"); ok {
		t.Fatal("expired entry must read as a miss")
	}
	s := c.Stats()
	if s.Misses != 1 {
		t.Fatalf("misses: want 1, got %d", s.Misses)
	}
	if s.Size != 0 {
		t.Fatalf("size after lazy purge: want 0, got %d", s.Size)
	}
	if s.Evictions != 1 {
		t.Fatalf("evictions: want 1, got %d", s.Evictions)
	}
}

// Has purges expired entries like Get but leaves hit/miss counters alone.
func TestCache_HasDoesNotCount(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := New[string, int](Options[string, int]{MaxEntries: 4, Clock: clk})
	t.Cleanup(func() { _ = c.Close() })

	c.SetWithTTL("x", 1, 10*time.Millisecond)
	if !c.Has("x") {
		t.Fatal("fresh Has must be true")
	}
	clk.add(20 * time.Millisecond)
	if c.Has("x") {
		t.Fatal("expired Has must be false")
	}

	s := c.Stats()
	if s.Hits != 0 || s.Misses != 0 {
		t.Fatalf("Has must not count: hits=%d misses=%d", s.Hits, s.Misses)
	}
	if s.Size != 0 {
		t.Fatalf("Has must purge: size=%d", s.Size)
	}
}

// Cleanup reclaims expired entries nobody reads again.
func TestCache_CleanupSweeps(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := New[string, int](Options[string, int]{MaxEntries: 16, Clock: clk})
	t.Cleanup(func() { _ = c.Close() })

	c.SetWithTTL("short1", 1, 10*time.Millisecond)
	c.SetWithTTL("short2", 2, 10*time.Millisecond)
	c.SetWithTTL("long", 3, time.Hour)
	clk.add(50 * time.Millisecond)

	if n := c.Cleanup(); n != 2 {
		t.Fatalf("Cleanup: want 2 removed, got %d", n)
	}
	if c.Len() != 1 || !c.Has("long") {
		t.Fatal("long-lived entry must survive the sweep")
	}
	if n := c.Cleanup(); n != 0 {
		t.Fatalf("second Cleanup: want 0, got %d", n)
	}
}

// Clear is one bulk delete: returns the prior size, fires no per-entry
// callbacks, leaves the eviction counter alone.
func TestCache_ClearBulk(t *testing.T) {
	t.Parallel()

	var evictCalls atomic.Int64
	c := New[string, int](Options[string, int]{
		MaxEntries: 16,
		OnEvict:    func(string, int, EvictReason) { evictCalls.Add(1) },
	})
	t.Cleanup(func() { _ = c.Close() })

	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k:%d", i), i)
	}
	if n := c.Clear(); n != 5 {
		t.Fatalf("Clear: want prior size 5, got %d", n)
	}
	if c.Len() != 0 {
		t.Fatalf("size after Clear: want 0, got %d", c.Len())
	}
	if got := evictCalls.Load(); got != 0 {
		t.Fatalf("Clear must not fire OnEvict, got %d calls", got)
	}
	if s := c.Stats(); s.Evictions != 0 {
		t.Fatalf("Clear must not count evictions, got %d", s.Evictions)
	}
}

// Hit rate is hits / max(1, gets); Has and Delete do not participate.
func TestCache_StatsHitRate(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{MaxEntries: 8})
	t.Cleanup(func() { _ = c.Close() })

	if s := c.Stats(); s.HitRate != 0 {
		t.Fatalf("empty cache hit rate: want 0, got %v", s.HitRate)
	}

	c.Set("a", 1)
	c.Get("a")    // hit
	c.Get("a")    // hit
	c.Get("miss") // miss

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Fatalf("counters: hits=%d misses=%d", s.Hits, s.Misses)
	}
	want := 2.0 / 3.0
	if diff := s.HitRate - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("hit rate: want %v, got %v", want, s.HitRate)
	}
	if s.EstimatedBytes != EstimateBytes(1) {
		t.Fatalf("estimated bytes: want %d, got %d", EstimateBytes(1), s.EstimatedBytes)
	}
}

// Eviction reasons: capacity for size-pressure, expired for TTL.
func TestCache_EvictReasons(t *testing.T) {
	t.Parallel()

	type evt struct {
		key    string
		reason EvictReason
	}
	var events []evt

	clk := newFakeClock()
	c := New[string, int](Options[string, int]{
		MaxEntries: 1,
		Clock:      clk,
		OnEvict: func(k string, _ int, r EvictReason) {
			events = append(events, evt{k, r})
		},
	})
	t.Cleanup(func() { _ = c.Close() })

	c.SetWithTTL("a", 1, time.Second)
	c.SetWithTTL("b", 2, time.Second) // capacity-evicts "a"
	clk.add(2 * time.Second)
	c.Get("b") // expiry-evicts "b"

	if len(events) != 2 {
		t.Fatalf("want 2 eviction events, got %d", len(events))
	}
	if events[0] != (evt{"a", ReasonCapacity}) {
		t.Fatalf("first event: %+v", events[0])
	}
	if events[1] != (evt{"b", ReasonExpired}) {
		t.Fatalf("second event: %+v", events[1])
	}
}

// A panicking OnEvict callback must not abort the triggering operation.
func TestCache_CallbackPanicIsolated(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{
		MaxEntries: 1,
		OnEvict:    func(string, int, EvictReason) { panic("boom") },
	})
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", 1)
	c.Set("b", 2) // eviction of "a" panics inside the callback

	if !c.Has("b") {
		t.Fatal("write must complete despite the callback panic")
	}
	if c.Has("a") {
		t.Fatal("a must still have been evicted")
	}
	if s := c.Stats(); s.Evictions != 1 {
		t.Fatalf("eviction must still be counted, got %d", s.Evictions)
	}
}

// DisableStats zeroes the counters but keeps sizes and eviction behavior.
func TestCache_DisableStats(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{MaxEntries: 2, DisableStats: true})
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", 1)
	c.Get("a")
	c.Get("miss")

	s := c.Stats()
	if s.Hits != 0 || s.Misses != 0 {
		t.Fatalf("disabled counters must read zero: %+v", s)
	}
	if s.Size != 1 {
		t.Fatalf("size must still be tracked, got %d", s.Size)
	}
}

// After Close all operations are ignored.
func TestCache_ClosedIsNoop(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{MaxEntries: 4})
	c.Set("a", 1)
	_ = c.Close()

	c.Set("b", 2)
	if _, ok := c.Get("a"); ok {
		t.Fatal("Get after Close must miss")
	}
	if c.Delete("a") {
		t.Fatal("Delete after Close must be false")
	}
	if n := c.Cleanup(); n != 0 {
		t.Fatalf("Cleanup after Close: want 0, got %d", n)
	}
}

// Singleflight test: concurrent GetOrLoad calls for the same key
// should trigger the Loader at most once; subsequent calls are cache hits.
func TestCache_GetOrLoad_Singleflight(t *testing.T) {
	var calls int64

	c := New[string, string](Options[string, string]{
		MaxEntries: 64,
		Loader: func(_ context.Context, k string) (string, error) {
			atomic.AddInt64(&calls, 1)
			time.Sleep(5 * time.Millisecond) // simulate I/O
			return "v:" + k, nil
		},
	})
	t.Cleanup(func() { _ = c.Close() })

	const N = 64
	var g errgroup.Group
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 0; i < N; i++ {
		g.Go(func() error {
			v, err := c.GetOrLoad(ctx, "k")
			if err != nil {
				return err
			}
			if v != "v:k" {
				return fmt.Errorf("got %q", v)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("loader must run exactly once, got %d", got)
	}

	if v, err := c.GetOrLoad(context.Background(), "k"); err != nil || v != "v:k" {
		t.Fatalf("second GetOrLoad failed: v=%q err=%v", v, err)
	}
}

// GetOrLoad without a Loader reports ErrNoLoader on a miss.
func TestCache_GetOrLoad_NoLoader(t *testing.T) {
	t.Parallel()

	c := New[string, string](Options[string, string]{MaxEntries: 4})
	t.Cleanup(func() { _ = c.Close() })

	if _, err := c.GetOrLoad(context.Background(), "k"); err != ErrNoLoader {
		t.Fatalf("want ErrNoLoader, got %v", err)
	}
}
