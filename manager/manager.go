package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/adaptivecache/cache"
	"github.com/IvanBrykalov/adaptivecache/hardware"
)

var (
	// ErrNotRunning is returned by operations invoked outside the
	// Running state (before Start or during/after Shutdown).
	ErrNotRunning = errors.New("manager: not running")

	// ErrAlreadyStarted is returned by a second Start call.
	ErrAlreadyStarted = errors.New("manager: already started")

	// ErrManagerFull is returned by CreateCache at the cache limit.
	ErrManagerFull = errors.New("manager: cache limit reached")

	// ErrInvalidName rejects empty or oversized cache names.
	ErrInvalidName = errors.New("manager: invalid cache name")

	// ErrTypeMismatch is returned when a cache name exists with
	// different key/value type parameters than requested.
	ErrTypeMismatch = errors.New("manager: cache exists with different types")
)

const maxNameLen = 128

// State is the manager lifecycle: Initializing → Running → ShuttingDown →
// Stopped. CreateCache, DestroyCache, GlobalCleanup and the threshold
// checks are valid only in Running; elsewhere they are graceful no-ops or
// return ErrNotRunning.
type State int32

const (
	StateInitializing State = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "stopped"
	}
}

// store is the manager-facing subset of a cache. The manager never touches
// individual entries; it owns the collection and drives sweeps.
type store interface {
	Cleanup() int
	Clear() int
	Len() int
	Stats() cache.Stats
	Close() error
}

// holder pairs the management view of a cache with the typed handle needed
// to answer idempotent duplicate creates.
type holder struct {
	store  store
	handle any
}

// Options configures a Manager beyond the scheduling Config.
type Options struct {
	// Logger for sweep failures, alerts and lifecycle events.
	// Nil => slog.Default().
	Logger *slog.Logger

	// Alert receives warning/critical notifications. Optional.
	Alert AlertFunc

	// Metrics receives aggregate gauges and counters. Nil => NoopMetrics.
	Metrics Metrics

	// Snapshot overrides the hardware probe; used by tests and by hosts
	// that size the manager explicitly. Nil => hardware.Probe.
	Snapshot *hardware.Snapshot
}

// Manager owns a named collection of caches: it enforces the adaptive
// cache-count limit, sweeps all caches on a schedule, aggregates usage, and
// alerts on memory pressure. Construct one per process and pass it by
// reference; there is no package-level instance.
type Manager struct {
	cfg    Config
	snap   hardware.Snapshot
	limits hardware.Limits
	log    *slog.Logger
	alert  AlertFunc
	met    Metrics

	state atomic.Int32

	mu     sync.RWMutex
	caches map[string]holder

	cancel context.CancelFunc
	group  *errgroup.Group

	aggEntries atomic.Int64
	aggBytes   atomic.Int64

	cleanupCycles atomic.Int64
	lastCleanup   atomic.Int64 // UnixNano
	lastWarning   atomic.Int64 // UnixNano, warning alert cool-down
}

// New constructs a Manager in the Initializing state. The hardware probe
// runs here (unless Options.Snapshot overrides it); a failed probe degrades
// to conservative limits and fires a warning alert, never an error.
func New(cfg Config, opt Options) *Manager {
	m := &Manager{
		cfg:    cfg.withDefaults(),
		caches: make(map[string]holder),
	}
	m.log = opt.Logger
	if m.log == nil {
		m.log = slog.Default()
	}
	m.alert = opt.Alert
	m.met = opt.Metrics
	if m.met == nil {
		m.met = NoopMetrics{}
	}

	if opt.Snapshot != nil {
		m.snap = *opt.Snapshot
	} else {
		m.snap = hardware.Probe(func(msg string, err error) {
			m.log.Warn(msg, slog.Any("error", err))
			m.fireAlert(AlertWarning, msg, map[string]any{"error": fmt.Sprint(err)})
		})
	}

	m.limits = hardware.ComputeLimits(m.snap)
	if m.cfg.MaxCaches > 0 {
		m.limits.MaxCaches = m.cfg.MaxCaches
	}
	if m.cfg.MaxEntriesPerCache > 0 {
		m.limits.MaxEntriesPerCache = m.cfg.MaxEntriesPerCache
	}
	return m
}

// Limits returns the effective capacity limits (adaptive plus overrides).
func (m *Manager) Limits() hardware.Limits { return m.limits }

// State returns the current lifecycle state.
func (m *Manager) State() State { return State(m.state.Load()) }

// Start transitions the manager to Running and launches the cleanup and
// metrics loops. Returns ErrAlreadyStarted if Start already ran.
func (m *Manager) Start() error {
	if !m.state.CompareAndSwap(int32(StateInitializing), int32(StateRunning)) {
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	g, ctx := errgroup.WithContext(ctx)
	m.group = g
	g.Go(func() error { m.cleanupLoop(ctx); return nil })
	g.Go(func() error { m.metricsLoop(ctx); return nil })

	m.log.Info("cache manager started",
		slog.Int("max_caches", m.limits.MaxCaches),
		slog.Int("max_entries_per_cache", m.limits.MaxEntriesPerCache),
		slog.Uint64("warning_threshold_bytes", m.limits.WarningBytes),
		slog.Uint64("critical_threshold_bytes", m.limits.CriticalBytes),
		slog.Bool("degraded_probe", m.snap.Degraded))
	return nil
}

// CreateCache registers (or returns) the cache under name. Duplicate
// creates are idempotent and hand back the existing cache, unless its type
// parameters differ from the requested ones (ErrTypeMismatch). MaxEntries
// is seeded from the adaptive limits when the options leave it unset.
//
// This is a free function because Go methods cannot carry type parameters.
func CreateCache[K comparable, V any](m *Manager, name string, opts cache.Options[K, V]) (cache.Cache[K, V], error) {
	if name == "" || len(name) > maxNameLen {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if m.State() != StateRunning {
		return nil, ErrNotRunning
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.caches[name]; ok {
		if c, ok := h.handle.(cache.Cache[K, V]); ok {
			return c, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrTypeMismatch, name)
	}
	if len(m.caches) >= m.limits.MaxCaches {
		return nil, fmt.Errorf("%w (%d)", ErrManagerFull, len(m.caches))
	}

	opts.Name = name
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = m.limits.MaxEntriesPerCache
	}
	if opts.Logger == nil {
		opts.Logger = m.log
	}
	c := cache.New(opts)
	m.caches[name] = holder{store: c, handle: c}
	m.met.SetCaches(len(m.caches))
	m.log.Debug("cache created", slog.String("cache", name),
		slog.Int("max_entries", opts.MaxEntries))
	return c, nil
}

// DestroyCache clears, closes and removes the named cache. Returns false
// if the name is unknown or the manager is not running.
func (m *Manager) DestroyCache(name string) bool {
	if m.State() != StateRunning {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.caches[name]
	if !ok {
		return false
	}
	delete(m.caches, name)
	h.store.Clear()
	_ = h.store.Close()
	m.met.SetCaches(len(m.caches))
	m.log.Debug("cache destroyed", slog.String("cache", name))
	return true
}

// Sweep reports the outcome of one global cleanup pass. Removed counts
// only the caches that swept successfully.
type Sweep struct {
	Removed int
	Errors  map[string]error
}

// GlobalCleanup sweeps every registered cache. One cache's failure is
// recorded and logged but does not abort the sweep of the remaining
// caches. Outside Running this is a no-op.
func (m *Manager) GlobalCleanup() Sweep {
	if m.State() != StateRunning {
		return Sweep{}
	}

	// Snapshot the collection so an in-flight create/destroy never
	// blocks behind a long sweep.
	m.mu.RLock()
	targets := make(map[string]store, len(m.caches))
	for name, h := range m.caches {
		targets[name] = h.store
	}
	m.mu.RUnlock()

	var sw Sweep
	for name, st := range targets {
		n, err := sweepOne(st)
		if err != nil {
			if sw.Errors == nil {
				sw.Errors = make(map[string]error)
			}
			sw.Errors[name] = err
			m.log.Error("cache cleanup failed",
				slog.String("cache", name), slog.Any("error", err))
			continue
		}
		sw.Removed += n
	}

	m.cleanupCycles.Add(1)
	m.lastCleanup.Store(time.Now().UnixNano())
	m.met.CleanupCycle(sw.Removed)
	return sw
}

// sweepOne isolates a single cache's sweep so a panic there cannot take
// down the whole pass.
func sweepOne(st store) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cleanup panicked: %v", r)
		}
	}()
	return st.Cleanup(), nil
}

// updateMetrics recomputes aggregate entry count and estimated bytes. The
// result is a best-effort snapshot: it is not atomic across caches.
func (m *Manager) updateMetrics() {
	m.mu.RLock()
	n := len(m.caches)
	var entries, bytes int64
	for _, h := range m.caches {
		s := h.store.Stats()
		entries += int64(s.Size)
		bytes += s.EstimatedBytes
	}
	m.mu.RUnlock()

	m.aggEntries.Store(entries)
	m.aggBytes.Store(bytes)
	m.met.SetCaches(n)
	m.met.SetUsage(entries, bytes)
}

// checkThresholds compares aggregate estimated usage against the adaptive
// thresholds. A critical breach alerts unconditionally and forces an
// out-of-cycle cleanup; a warning breach alerts at most once per
// WarningCooldown.
func (m *Manager) checkThresholds() {
	if m.State() != StateRunning {
		return
	}
	bytes := uint64(m.aggBytes.Load())

	switch {
	case m.limits.CriticalBytes > 0 && bytes >= m.limits.CriticalBytes:
		m.fireAlert(AlertCritical, "estimated cache usage above critical threshold", map[string]any{
			"estimated_bytes": bytes,
			"threshold_bytes": m.limits.CriticalBytes,
		})
		m.GlobalCleanup()

	case m.limits.WarningBytes > 0 && bytes >= m.limits.WarningBytes:
		now := time.Now().UnixNano()
		last := m.lastWarning.Load()
		if last != 0 && now-last < int64(m.cfg.WarningCooldown) {
			return
		}
		if !m.lastWarning.CompareAndSwap(last, now) {
			return
		}
		m.fireAlert(AlertWarning, "estimated cache usage above warning threshold", map[string]any{
			"estimated_bytes": bytes,
			"threshold_bytes": m.limits.WarningBytes,
		})
	}
}

// fireAlert logs the alert, counts it, and invokes the consumer callback
// with panic isolation.
func (m *Manager) fireAlert(level AlertLevel, msg string, details map[string]any) {
	m.met.Alert(level)
	if level == AlertCritical {
		m.log.Error(msg, slog.Any("details", details))
	} else {
		m.log.Warn(msg, slog.Any("details", details))
	}
	cb := m.alert
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("alert callback panicked", slog.Any("panic", r))
		}
	}()
	cb(level, msg, details)
}

// Aggregate is the manager-wide usage summary.
type Aggregate struct {
	Caches         int
	Entries        int64
	EstimatedBytes int64
	CleanupCycles  int64
	LastCleanup    time.Time
}

// ManagerStats is the full observability snapshot answered by Stats.
type ManagerStats struct {
	State     State
	Hardware  hardware.Snapshot
	Limits    hardware.Limits
	PerCache  map[string]cache.Stats
	Aggregate Aggregate
}

// Stats returns per-cache snapshots plus the aggregate view. Like
// updateMetrics, the per-cache figures are read one cache at a time.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	per := make(map[string]cache.Stats, len(m.caches))
	for name, h := range m.caches {
		per[name] = h.store.Stats()
	}
	n := len(m.caches)
	m.mu.RUnlock()

	var last time.Time
	if ns := m.lastCleanup.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return ManagerStats{
		State:    m.State(),
		Hardware: m.snap,
		Limits:   m.limits,
		PerCache: per,
		Aggregate: Aggregate{
			Caches:         n,
			Entries:        m.aggEntries.Load(),
			EstimatedBytes: m.aggBytes.Load(),
			CleanupCycles:  m.cleanupCycles.Load(),
			LastCleanup:    last,
		},
	}
}

// Shutdown stops the background loops, destroys every cache, and moves the
// manager to Stopped. Idempotent: concurrent or repeated calls return
// immediately. The loop join is bounded by ShutdownTimeout; an in-flight
// sweep that overruns it is abandoned, not interrupted.
func (m *Manager) Shutdown() {
	for {
		s := m.State()
		if s == StateShuttingDown || s == StateStopped {
			return
		}
		if m.state.CompareAndSwap(int32(s), int32(StateShuttingDown)) {
			break
		}
	}

	if m.cancel != nil {
		m.cancel()
	}
	if m.group != nil {
		done := make(chan struct{})
		go func() {
			_ = m.group.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(m.cfg.ShutdownTimeout):
			m.log.Warn("shutdown timed out waiting for background loops",
				slog.Duration("timeout", m.cfg.ShutdownTimeout))
		}
	}

	// Caches are independent; release order does not matter.
	m.mu.Lock()
	for name, h := range m.caches {
		h.store.Clear()
		_ = h.store.Close()
		delete(m.caches, name)
	}
	m.mu.Unlock()

	m.aggEntries.Store(0)
	m.aggBytes.Store(0)
	m.met.SetCaches(0)
	m.met.SetUsage(0, 0)
	m.state.Store(int32(StateStopped))
	m.log.Info("cache manager stopped")
}

// cleanupLoop drives GlobalCleanup on CleanupInterval until cancelled.
func (m *Manager) cleanupLoop(ctx context.Context) {
	t := time.NewTicker(m.cfg.CleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.GlobalCleanup()
		}
	}
}

// metricsLoop refreshes aggregates and checks thresholds on
// MetricsInterval until cancelled.
func (m *Manager) metricsLoop(ctx context.Context) {
	t := time.NewTicker(m.cfg.MetricsInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.updateMetrics()
			m.checkThresholds()
		}
	}
}
