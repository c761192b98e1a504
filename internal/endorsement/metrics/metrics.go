package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the endorsement state machine.
type Metrics struct {
	Submissions   prometheus.Counter
	Verifications *prometheus.CounterVec
	Transitions   *prometheus.CounterVec
}

// New creates and registers endorsement metrics.
func New() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coalition_endorsement_submissions_total",
			Help: "Endorsement submissions accepted into the pipeline",
		}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coalition_endorsement_verifications_total",
			Help: "Token verification attempts by result",
		}, []string{"result"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coalition_endorsement_transitions_total",
			Help: "State transitions by target status",
		}, []string{"to"}),
	}
}
