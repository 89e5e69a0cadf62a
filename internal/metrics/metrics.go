package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the counters the catalog services report into.
// A nil *Collector is valid and records nothing.
type Collector struct {
	updateConflicts *prometheus.CounterVec
	engagementBusy  *prometheus.CounterVec
	ingestedBytes   prometheus.Counter
	ingestsTotal    *prometheus.CounterVec
	orphanedObjects prometheus.Counter
	ingestDuration  prometheus.Histogram
}

// NewCollector registers the catalog metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		updateConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_update_conflicts_total",
			Help: "Versioned updates that lost a race and were retried",
		}, []string{"operation"}),

		engagementBusy: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_engagement_busy_total",
			Help: "Comment or rating requests that exhausted their retry budget",
		}, []string{"operation"}),

		ingestedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "catalog_ingested_bytes_total",
			Help: "Bytes written to the object store by successful ingests",
		}),

		ingestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_ingests_total",
			Help: "Ingest attempts by outcome",
		}, []string{"outcome"}),

		orphanedObjects: factory.NewCounter(prometheus.CounterOpts{
			Name: "catalog_orphaned_objects_total",
			Help: "Stored objects whose catalog record could not be created",
		}),

		ingestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_ingest_duration_seconds",
			Help:    "Wall time of successful ingests",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}

func (c *Collector) UpdateConflict(operation string) {
	if c == nil {
		return
	}
	c.updateConflicts.WithLabelValues(operation).Inc()
}

func (c *Collector) EngagementBusy(operation string) {
	if c == nil {
		return
	}
	c.engagementBusy.WithLabelValues(operation).Inc()
}

func (c *Collector) IngestSucceeded(bytes int64, seconds float64) {
	if c == nil {
		return
	}
	c.ingestsTotal.WithLabelValues("ok").Inc()
	c.ingestedBytes.Add(float64(bytes))
	c.ingestDuration.Observe(seconds)
}

func (c *Collector) IngestFailed() {
	if c == nil {
		return
	}
	c.ingestsTotal.WithLabelValues("failed").Inc()
}

func (c *Collector) OrphanedObject() {
	if c == nil {
		return
	}
	c.orphanedObjects.Inc()
}
