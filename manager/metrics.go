package manager

// AlertLevel classifies memory-pressure alerts.
type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// AlertFunc receives memory-pressure and degraded-probe notifications.
// It is best-effort: panics are logged and swallowed.
type AlertFunc func(level AlertLevel, msg string, details map[string]any)

// Metrics exposes manager-level observability hooks, mirroring the
// cache.Metrics pattern. NoopMetrics is the default.
type Metrics interface {
	SetCaches(n int)
	SetUsage(entries, estimatedBytes int64)
	CleanupCycle(removed int)
	Alert(level AlertLevel)
}

// NoopMetrics is the default Metrics implementation.
type NoopMetrics struct{}

func (NoopMetrics) SetCaches(int)         {}
func (NoopMetrics) SetUsage(int64, int64) {}
func (NoopMetrics) CleanupCycle(int)      {}
func (NoopMetrics) Alert(AlertLevel)      {}

var _ Metrics = NoopMetrics{}
