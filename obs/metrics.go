package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "argus"

// Metrics is the Prometheus surface, grouped by the counters spec.md
// §4.7 requires GET /metrics to expose plus the per-error-kind
// counters from §7's error-handling table.
//
// Each Metrics carries its own Registry rather than registering onto
// prometheus.DefaultRegisterer, mirroring the teacher's
// utils/metrics/metrics.go registry swap. A package-global registerer
// means a second New() call (a second broadcaster/endpoint in the same
// process, or a second test in the same binary) panics with "duplicate
// metrics collector registration attempted"; a private Registry per
// instance lets New() be called more than once per process safely.
type Metrics struct {
	Registry *prometheus.Registry

	EventsIn          *prometheus.CounterVec
	EventsDropped     *prometheus.CounterVec
	EventsBroadcast   prometheus.Counter
	SubscribersActive prometheus.Gauge
	SubscriberDropped prometheus.Counter
	SubscriberQueue   prometheus.Histogram
	SerializationFail prometheus.Counter
	AnalyzerErrors    prometheus.Counter
}

// New creates a fresh metrics surface registered on its own Registry.
// Safe to call more than once per process.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,

		EventsIn: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_in_total",
			Help:      "Events pulled off a ring buffer by the broadcaster, by stream.",
		}, []string{"stream"}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Ring-buffer overwrites of an unread slot, by stream.",
		}, []string{"stream"}),
		EventsBroadcast: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_broadcast_total",
			Help:      "Frames successfully enqueued to at least one subscriber.",
		}),
		SubscribersActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers_active",
			Help:      "Currently connected dashboard subscribers.",
		}),
		SubscriberDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriber_frames_dropped_total",
			Help:      "Frames dropped from a subscriber's outbound queue on overflow.",
		}),
		SubscriberQueue: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "subscriber_queue_depth",
			Help:      "Observed subscriber outbound queue depth at enqueue time.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		SerializationFail: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "serialization_failures_total",
			Help:      "Events dropped because serialization failed.",
		}),
		AnalyzerErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyzer_errors_total",
			Help:      "Records dropped because an analyzer panicked or errored internally.",
		}),
	}
}
