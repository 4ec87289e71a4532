package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Merge outcomes.
const (
	MergeResultSuccess  = "success"
	MergeResultFailed   = "failed"
	MergeResultConflict = "conflict"
	MergeResultEmpty    = "empty"
)

// Cache lookup outcomes.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// CartMetrics instruments cart merges and the persisted cart cache.
type CartMetrics struct {
	mergeDuration *prometheus.HistogramVec
	mergeItems    *prometheus.CounterVec
	mergeRuns     *prometheus.CounterVec
	cache         *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on reg. A nil registerer yields a
// no-op recorder.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	m := &CartMetrics{
		mergeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_merge_duration_seconds",
			Help:      "Duration of login-time cart merges.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"result"}),
		mergeItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_merge_items_total",
			Help:      "Local cart lines merged, by how they landed.",
		}, []string{"result"}),
		mergeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_merge_runs_total",
			Help:      "Cart merge attempts by outcome.",
		}, []string{"result"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_cache_requests_total",
			Help:      "Persisted cart cache lookups by outcome.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.mergeDuration, m.mergeItems, m.mergeRuns, m.cache)
	return m
}

// ObserveMerge records one merge attempt.
func (c *CartMetrics) ObserveMerge(result string, duration time.Duration, updated, inserted int) {
	if c == nil || c.mergeRuns == nil {
		return
	}
	result = normalizeLabel(result)
	c.mergeRuns.WithLabelValues(result).Inc()
	c.mergeDuration.WithLabelValues(result).Observe(duration.Seconds())
	if updated > 0 {
		c.mergeItems.WithLabelValues("updated").Add(float64(updated))
	}
	if inserted > 0 {
		c.mergeItems.WithLabelValues("inserted").Add(float64(inserted))
	}
}

// IncCache records one cache lookup.
func (c *CartMetrics) IncCache(result string) {
	if c == nil || c.cache == nil {
		return
	}
	c.cache.WithLabelValues(normalizeLabel(result)).Inc()
}
