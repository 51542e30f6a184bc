package cache

// Byte estimation is a heuristic: resident size is inferred from the entry
// count, never measured. The constants assume a map/entry overhead of a few
// hundred bytes plus a typical small-document payload.
const (
	entryOverheadBytes = 512
	avgPayloadBytes    = 4096
)

// EstimateBytes converts an entry count into an approximate memory
// footprint. Used both for per-cache stats and for the manager's aggregate
// threshold checks.
func EstimateBytes(entries int) int64 {
	return int64(entries) * (entryOverheadBytes + avgPayloadBytes)
}

// Stats is a point-in-time snapshot of a cache's counters.
type Stats struct {
	Size      int
	Hits      int64
	Misses    int64
	Evictions int64

	// HitRate is hits / max(1, hits+misses).
	HitRate float64

	// EstimatedBytes is approximate; see EstimateBytes.
	EstimatedBytes int64
}
