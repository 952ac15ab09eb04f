// Package metrics exposes cache counters as Prometheus metrics. Register
// the Collector with a prometheus.Registerer and register each cache under
// a name; counters are read as Stats snapshots at gather time.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wudi/tagcache"
)

// Collector implements prometheus.Collector over registered caches,
// labeled by cache name.
type Collector struct {
	mu      sync.RWMutex
	sources map[string]tagcache.StatsSource

	entries          *prometheus.Desc
	hits             *prometheus.Desc
	misses           *prometheus.Desc
	sets             *prometheus.Desc
	removals         *prometheus.Desc
	evictions        *prometheus.Desc
	tagInvalidations *prometheus.Desc
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	labels := []string{"cache"}
	return &Collector{
		sources: make(map[string]tagcache.StatsSource),
		entries: prometheus.NewDesc("tagcache_entries",
			"Entries currently held by the cache store.", labels, nil),
		hits: prometheus.NewDesc("tagcache_hits_total",
			"Reads that found a live entry.", labels, nil),
		misses: prometheus.NewDesc("tagcache_misses_total",
			"Reads that found nothing.", labels, nil),
		sets: prometheus.NewDesc("tagcache_sets_total",
			"Write operations.", labels, nil),
		removals: prometheus.NewDesc("tagcache_removals_total",
			"Keys removed explicitly or by prefix.", labels, nil),
		evictions: prometheus.NewDesc("tagcache_evictions_total",
			"Keys dropped by expiry or capacity pressure.", labels, nil),
		tagInvalidations: prometheus.NewDesc("tagcache_tag_invalidations_total",
			"Keys removed through tag invalidation.", labels, nil),
	}
}

// Register adds a cache's counters under name, replacing any previous
// registration with the same name.
func (c *Collector) Register(name string, src tagcache.StatsSource) {
	c.mu.Lock()
	c.sources[name] = src
	c.mu.Unlock()
}

// Unregister removes a cache's counters.
func (c *Collector) Unregister(name string) {
	c.mu.Lock()
	delete(c.sources, name)
	c.mu.Unlock()
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.hits
	ch <- c.misses
	ch <- c.sets
	ch <- c.removals
	ch <- c.evictions
	ch <- c.tagInvalidations
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, src := range c.sources {
		s := src.Stats()
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Size), name)
		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits), name)
		ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses), name)
		ch <- prometheus.MustNewConstMetric(c.sets, prometheus.CounterValue, float64(s.Sets), name)
		ch <- prometheus.MustNewConstMetric(c.removals, prometheus.CounterValue, float64(s.Removals), name)
		ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions), name)
		ch <- prometheus.MustNewConstMetric(c.tagInvalidations, prometheus.CounterValue, float64(s.TagInvalidations), name)
	}
}
