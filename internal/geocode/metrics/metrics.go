package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the enrichment pipeline.
type Metrics struct {
	Resolved     prometheus.Counter
	Failed       *prometheus.CounterVec
	Dropped      prometheus.Counter
	QueueDepth   prometheus.Gauge
	ResolveSecs  prometheus.Histogram
}

// New creates and registers enrichment metrics.
func New() *Metrics {
	return &Metrics{
		Resolved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coalition_geocode_resolved_total",
			Help: "Stakeholders successfully geocoded",
		}),
		Failed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coalition_geocode_failed_total",
			Help: "Geocoding failures by kind",
		}, []string{"kind"}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coalition_geocode_jobs_dropped_total",
			Help: "Enrichment jobs dropped because the queue was full",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "coalition_geocode_queue_depth",
			Help: "Enrichment jobs waiting in the queue",
		}),
		ResolveSecs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "coalition_geocode_resolve_seconds",
			Help:    "Latency of geocoder resolution calls",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
