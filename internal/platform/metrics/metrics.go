package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the consistency engine. All helpers are
// nil-safe so wiring metrics stays optional in tests.
type Metrics struct {
	// Merge outcomes by status: "merged", "not_found", "partial", "error"
	MergeOutcome *prometheus.CounterVec

	// Full merge saga latency including relink
	MergeLatency prometheus.Histogram

	// Relink pass latency
	RelinkLatency prometheus.Histogram

	// Lifecycle transitions by action: soft-delete, undo, finalize
	LifecycleTransitions *prometheus.CounterVec

	// Change notifications emitted by action
	Notifications *prometheus.CounterVec

	// HTTP request latency by method and status
	RequestLatency *prometheus.HistogramVec
}

// New creates a Metrics instance with all engine metrics registered.
func New() *Metrics {
	return &Metrics{
		MergeOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cohere_merge_outcomes_total",
			Help: "Total merge operations by outcome",
		}, []string{"status"}),

		MergeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cohere_merge_duration_seconds",
			Help:    "Duration of the full merge sequence including relinking",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		RelinkLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cohere_relink_duration_seconds",
			Help:    "Duration of cross-collection reference relinking",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		LifecycleTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cohere_lifecycle_transitions_total",
			Help: "Total soft-delete lifecycle transitions by action",
		}, []string{"action"}),

		Notifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cohere_change_notifications_total",
			Help: "Total change notifications emitted by action",
		}, []string{"action"}),

		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cohere_http_request_duration_seconds",
			Help:    "HTTP request duration by method and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "status"}),
	}
}

// ObserveRequestLatency records one HTTP request duration.
func (m *Metrics) ObserveRequestLatency(method, status string, d time.Duration) {
	if m != nil {
		m.RequestLatency.WithLabelValues(method, status).Observe(d.Seconds())
	}
}

// IncrementMergeOutcome records how a merge attempt ended.
func (m *Metrics) IncrementMergeOutcome(status string) {
	if m != nil {
		m.MergeOutcome.WithLabelValues(status).Inc()
	}
}

// ObserveMergeLatency records the full merge sequence duration.
func (m *Metrics) ObserveMergeLatency(d time.Duration) {
	if m != nil {
		m.MergeLatency.Observe(d.Seconds())
	}
}

// ObserveRelinkLatency records a relink pass duration.
func (m *Metrics) ObserveRelinkLatency(d time.Duration) {
	if m != nil {
		m.RelinkLatency.Observe(d.Seconds())
	}
}

// IncrementLifecycle records a lifecycle transition.
func (m *Metrics) IncrementLifecycle(action string) {
	if m != nil {
		m.LifecycleTransitions.WithLabelValues(action).Inc()
	}
}

// IncrementNotification records an emitted change notification.
func (m *Metrics) IncrementNotification(action string) {
	if m != nil {
		m.Notifications.WithLabelValues(action).Inc()
	}
}
