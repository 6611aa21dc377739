package relay

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flashfusion"

var (
	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "queue_depth",
			Help:      "Number of events pending in the fan-out queue",
		},
	)

	eventsEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "events_enqueued_total",
			Help:      "Total events accepted into the queue",
		},
	)

	dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "dispatches_total",
			Help:      "Total per-platform delivery attempts by outcome",
		},
		[]string{"platform", "outcome"},
	)

	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "dispatch_duration_seconds",
			Help:      "Time to deliver one event to one platform",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"platform"},
	)

	eventRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "event_retries_total",
			Help:      "Total events re-queued after a failed dispatch",
		},
	)

	eventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "events_dropped_total",
			Help:      "Total events dropped after exhausting retries",
		},
	)
)

func recordQueueDepth(depth int) {
	queueDepth.Set(float64(depth))
}

func recordEnqueued() {
	eventsEnqueued.Inc()
}

func recordDispatch(platform, outcome string, duration time.Duration) {
	dispatches.WithLabelValues(platform, outcome).Inc()
	dispatchDuration.WithLabelValues(platform).Observe(duration.Seconds())
}

func recordRetry() {
	eventRetries.Inc()
}

func recordDropped() {
	eventsDropped.Inc()
}
