package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	PollCount              prometheus.Counter
	MessagesProcessed      prometheus.Counter
	MessagesSkipped        *prometheus.CounterVec
	ClassificationFailures prometheus.Counter
	ForwardSuccesses       prometheus.Counter
	ForwardFailures        prometheus.Counter
	FallbackRoutes         prometheus.Counter
	RetryQueueSize         prometheus.Gauge
	ProcessingTime         prometheus.Histogram
	ClassificationCostUSD  prometheus.Counter
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		PollCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_triage_poll_count",
			Help: "Total number of mailbox poll cycles",
		}),
		MessagesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_triage_messages_processed",
			Help: "Total number of messages that reached a terminal processing record",
		}),
		MessagesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mail_triage_messages_skipped",
			Help: "Total number of skipped messages by reason",
		}, []string{"reason"}),
		ClassificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_triage_classification_failures",
			Help: "Total number of messages whose classification failed on all endpoints",
		}),
		ForwardSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_triage_forward_successes",
			Help: "Total number of successful forwards",
		}),
		ForwardFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_triage_forward_failures",
			Help: "Total number of forwards that failed after retries",
		}),
		FallbackRoutes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_triage_fallback_routes",
			Help: "Total number of messages routed to their original destination",
		}),
		RetryQueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mail_triage_retry_queue_size",
			Help: "Messages forwarded but awaiting a mark-read retry",
		}),
		ProcessingTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mail_triage_processing_duration_seconds",
			Help:    "Per-message turn-around time",
			Buckets: prometheus.DefBuckets,
		}),
		ClassificationCostUSD: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_triage_classification_cost_usd",
			Help: "Cumulative classification spend in USD",
		}),
	}
}
