// Package hardware reads host memory characteristics once at startup and
// derives the adaptive capacity limits used by the manager package.
//
// The limits are policy, not physics: they exist to keep small hosts from
// thrashing while letting large hosts scale, and they are floored so a
// mis-probed or tiny machine still gets workable capacity.
package hardware

import "github.com/shirou/gopsutil/v4/mem"

// Conservative fallback used when the OS probe fails (unsupported
// platform, permission error). Startup must never abort on a probe
// failure; degraded mode is surfaced through the warn callback instead.
const (
	fallbackTotalBytes     = 512 << 20 // 512 MiB
	fallbackAvailableBytes = 256 << 20 // 256 MiB
)

// Sizing and threshold constants; see ComputeLimits.
const (
	bytesPerCache      = 50 << 20 // one cache slot per 50 MiB of total memory
	bytesPerEntry      = 1 << 20  // one entry slot per 1 MiB of available memory
	minCaches          = 10
	minEntriesPerCache = 1000

	warningFraction  = 0.70
	criticalFraction = 0.90
)

// Snapshot holds OS-reported memory figures, captured once and treated as
// immutable for the process lifetime.
type Snapshot struct {
	TotalBytes     uint64
	AvailableBytes uint64

	// Degraded marks a failed probe that fell back to conservative
	// defaults.
	Degraded bool
}

// Limits are the capacity constants derived from a Snapshot.
type Limits struct {
	// MaxCaches bounds the number of named caches a manager will hold.
	MaxCaches int

	// MaxEntriesPerCache seeds a cache's entry limit when the caller
	// does not override it.
	MaxEntriesPerCache int

	// WarningBytes and CriticalBytes are aggregate estimated-usage
	// thresholds for memory-pressure alerting.
	WarningBytes  uint64
	CriticalBytes uint64
}

// Probe queries OS-reported total/available memory. On failure it returns
// the conservative fallback Snapshot with Degraded set and reports the
// error through warn (if non-nil); it never fails.
func Probe(warn func(msg string, err error)) Snapshot {
	vm, err := mem.VirtualMemory()
	if err != nil || vm == nil || vm.Total == 0 {
		if warn != nil {
			warn("memory probe failed, using conservative defaults", err)
		}
		return Snapshot{
			TotalBytes:     fallbackTotalBytes,
			AvailableBytes: fallbackAvailableBytes,
			Degraded:       true,
		}
	}
	return Snapshot{
		TotalBytes:     vm.Total,
		AvailableBytes: vm.Available,
	}
}

// ComputeLimits derives adaptive limits from a snapshot. Pure and
// deterministic, so unit tests can drive it with synthetic snapshots.
//
//   - MaxCaches          = max(10, total / 50MiB)
//   - MaxEntriesPerCache = max(1000, available / 1MiB)
//   - WarningBytes       = 0.70 × total
//   - CriticalBytes      = 0.90 × total
func ComputeLimits(s Snapshot) Limits {
	maxCaches := int(s.TotalBytes / bytesPerCache)
	if maxCaches < minCaches {
		maxCaches = minCaches
	}
	maxEntries := int(s.AvailableBytes / bytesPerEntry)
	if maxEntries < minEntriesPerCache {
		maxEntries = minEntriesPerCache
	}
	return Limits{
		MaxCaches:          maxCaches,
		MaxEntriesPerCache: maxEntries,
		WarningBytes:       uint64(float64(s.TotalBytes) * warningFraction),
		CriticalBytes:      uint64(float64(s.TotalBytes) * criticalFraction),
	}
}
