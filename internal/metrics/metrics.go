// Package metrics exposes Prometheus instrumentation for the recompute
// pipeline and HTTP layer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recompute directions and outcomes used as label values.
const (
	DirectionBorrower = "borrower"
	DirectionPolicy   = "policy"

	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Collector holds the service's Prometheus metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	recomputesTotal   *prometheus.CounterVec
	recomputeDuration prometheus.Histogram
	matchesWritten    prometheus.Counter
	scoreDistribution prometheus.Histogram
}

// NewCollector creates a collector with a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		recomputesTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_recomputes_total",
			Help: "Total recompute jobs by direction and outcome",
		}, []string{"direction", "outcome"}),
		recomputeDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "kestrel_recompute_duration_seconds",
			Help:    "Time taken to recompute an entity's match set",
			Buckets: prometheus.DefBuckets,
		}),
		matchesWritten: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "kestrel_matches_written_total",
			Help: "Total matches written by replace-all operations",
		}),
		scoreDistribution: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "kestrel_match_score_distribution",
			Help:    "Distribution of final match scores",
			Buckets: []float64{0, 20, 50, 75, 90, 100},
		}),
	}
}

// RecordRecompute records one finished recompute job.
func (c *Collector) RecordRecompute(direction string, duration time.Duration, matches int, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	c.recomputesTotal.WithLabelValues(direction, outcome).Inc()
	c.recomputeDuration.Observe(duration.Seconds())
	if err == nil {
		c.matchesWritten.Add(float64(matches))
	}
}

// RecordScore records one final match score.
func (c *Collector) RecordScore(score float64) {
	c.scoreDistribution.Observe(score)
}

// Handler returns the HTTP handler serving this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
