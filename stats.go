package tagcache

// Stats is a point-in-time snapshot of a backend's counters.
type Stats struct {
	Size             int   `json:"size"` // live entries; 0 if not tracked (e.g., Redis)
	Hits             int64 `json:"hits"`
	Misses           int64 `json:"misses"`
	Sets             int64 `json:"sets"`
	Removals         int64 `json:"removals"`
	Evictions        int64 `json:"evictions"` // 0 if not tracked (e.g., Redis)
	TagInvalidations int64 `json:"tag_invalidations"`
}

// StatsSource is implemented by backends that expose counters. The metrics
// package consumes it to publish Prometheus metrics.
type StatsSource interface {
	Stats() Stats
}
