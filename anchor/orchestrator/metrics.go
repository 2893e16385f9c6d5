package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusAnchorsSent    prometheus.CounterVec
	prometheusAnchorsFailed  prometheus.CounterVec
	prometheusSendDuration   prometheus.Histogram
	prometheusHeartbeatMoves prometheus.Histogram
)

var prometheusMetricsInitialised = false

// initPrometheusMetrics registers the orchestrator's counters exactly once,
// mirroring services/validator/metrics.go's guarded promauto registration.
func initPrometheusMetrics() {
	if prometheusMetricsInitialised {
		return
	}

	prometheusAnchorsSent = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "anchorcore",
			Name:      "anchors_sent_total",
			Help:      "Number of anchors successfully sent, by type",
		},
		[]string{"type"},
	)

	prometheusAnchorsFailed = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "anchorcore",
			Name:      "anchors_failed_total",
			Help:      "Number of anchor send attempts that failed, by type and classification",
		},
		[]string{"type", "reason"},
	)

	prometheusSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "anchorcore",
			Name:      "anchor_send_duration_seconds",
			Help:      "Duration of a single manualSend call",
			Buckets:   prometheus.DefBuckets,
		},
	)

	prometheusHeartbeatMoves = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "anchorcore",
			Name:      "heartbeat_move_count",
			Help:      "Number of moves drained into a single heartbeat anchor",
			Buckets:   []float64{0, 1, 4, 16, 64, 128, 255},
		},
	)

	prometheusMetricsInitialised = true
}
