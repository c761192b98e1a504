package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the spam filter.
type Metrics struct {
	Accepted prometheus.Counter
	Rejected *prometheus.CounterVec
}

// New creates and registers spam filter metrics.
func New() *Metrics {
	return &Metrics{
		Accepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coalition_spam_accepted_total",
			Help: "Submissions that passed the spam filter",
		}),
		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coalition_spam_rejected_total",
			Help: "Submissions rejected by the spam filter, by reason",
		}, []string{"reason"}),
	}
}
