// Package prom exports cache and manager metrics to Prometheus.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/adaptivecache/cache"
	"github.com/IvanBrykalov/adaptivecache/manager"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evicts    *prometheus.CounterVec
	sizeEnt   prometheus.Gauge
	sizeBytes prometheus.Gauge
}

// New constructs a Prometheus metrics adapter for one cache.
//   - reg:         registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns:          Prometheus namespace
//   - cacheName:   becomes the "cache" const label on every metric
func New(reg prometheus.Registerer, ns, cacheName string) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := prometheus.Labels{"cache": cacheName}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   "cache",
			Name:        "hits_total",
			Help:        "Cache hits",
			ConstLabels: labels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   "cache",
			Name:        "misses_total",
			Help:        "Cache misses",
			ConstLabels: labels,
		}),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "cache",
				Name:        "evictions_total",
				Help:        "Cache evictions by reason",
				ConstLabels: labels,
			},
			[]string{"reason"},
		),
		sizeEnt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   "cache",
			Name:        "size_entries",
			Help:        "Number of resident entries",
			ConstLabels: labels,
		}),
		sizeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   "cache",
			Name:        "estimated_bytes",
			Help:        "Estimated resident bytes (heuristic, not measured)",
			ConstLabels: labels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.sizeEnt, a.sizeBytes)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(r.String()).Inc()
}

// Size updates gauges for the entry count and the byte estimate.
func (a *Adapter) Size(entries int, estimatedBytes int64) {
	a.sizeEnt.Set(float64(entries))
	a.sizeBytes.Set(float64(estimatedBytes))
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)

// ManagerAdapter implements manager.Metrics with manager-wide gauges and
// counters.
type ManagerAdapter struct {
	caches  prometheus.Gauge
	entries prometheus.Gauge
	bytes   prometheus.Gauge
	cycles  prometheus.Counter
	removed prometheus.Counter
	alerts  *prometheus.CounterVec
}

// NewManager constructs the manager-level adapter.
func NewManager(reg prometheus.Registerer, ns string) *ManagerAdapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &ManagerAdapter{
		caches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "manager",
			Name:      "caches",
			Help:      "Number of registered caches",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "manager",
			Name:      "entries_total",
			Help:      "Aggregate resident entries across all caches",
		}),
		bytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "manager",
			Name:      "estimated_bytes",
			Help:      "Aggregate estimated bytes across all caches",
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "manager",
			Name:      "cleanup_cycles_total",
			Help:      "Completed global cleanup passes",
		}),
		removed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "manager",
			Name:      "cleanup_removed_total",
			Help:      "Entries removed by global cleanup passes",
		}),
		alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "manager",
				Name:      "alerts_total",
				Help:      "Memory-pressure alerts by level",
			},
			[]string{"level"},
		),
	}
	reg.MustRegister(a.caches, a.entries, a.bytes, a.cycles, a.removed, a.alerts)
	return a
}

// SetCaches updates the registered-cache gauge.
func (a *ManagerAdapter) SetCaches(n int) { a.caches.Set(float64(n)) }

// SetUsage updates the aggregate usage gauges.
func (a *ManagerAdapter) SetUsage(entries, estimatedBytes int64) {
	a.entries.Set(float64(entries))
	a.bytes.Set(float64(estimatedBytes))
}

// CleanupCycle counts one completed pass and the entries it removed.
func (a *ManagerAdapter) CleanupCycle(removed int) {
	a.cycles.Inc()
	a.removed.Add(float64(removed))
}

// Alert counts one alert with its level label.
func (a *ManagerAdapter) Alert(level manager.AlertLevel) {
	a.alerts.WithLabelValues(string(level)).Inc()
}

var _ manager.Metrics = (*ManagerAdapter)(nil)
