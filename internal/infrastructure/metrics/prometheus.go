package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smbgAlokk/bharatforce/internal/application/port"
)

// Recorder implements port.MetricsRecorder with Prometheus collectors
type Recorder struct {
	transitions        *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	effects            *prometheus.CounterVec
}

// NewRecorder registers the workflow collectors on reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bharatforce_transitions_total",
				Help: "Total number of transition requests by workflow, action and outcome",
			},
			[]string{"workflow", "action", "outcome"},
		),
		transitionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bharatforce_transition_duration_seconds",
				Help:    "Transition request duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"workflow"},
		),
		effects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bharatforce_effects_total",
				Help: "Total number of side-effect runs by effect and outcome",
			},
			[]string{"effect", "outcome"},
		),
	}
}

// ObserveTransition counts one transition request
func (r *Recorder) ObserveTransition(workflow, action, outcome string, duration time.Duration) {
	r.transitions.WithLabelValues(workflow, action, outcome).Inc()
	r.transitionDuration.WithLabelValues(workflow).Observe(duration.Seconds())
}

// ObserveEffect counts one side-effect run
func (r *Recorder) ObserveEffect(effect, outcome string) {
	r.effects.WithLabelValues(effect, outcome).Inc()
}

var _ port.MetricsRecorder = (*Recorder)(nil)
