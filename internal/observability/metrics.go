// Package observability exposes the process-wide Prometheus metrics for
// the relay. Metrics are registered lazily on first use so any package
// can record without wiring a registry through its constructor.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	messagesReceived prometheus.Counter
	messagesSent     prometheus.Counter
	repliesFailed    prometheus.Counter

	completionDuration *prometheus.HistogramVec

	memoryFetchDuration  prometheus.Histogram
	memoryAppendDuration prometheus.Histogram
	primaryErrors        *prometheus.CounterVec
	fallbackActivations  *prometheus.CounterVec
	fallbackPartitions   prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
	registry    *prometheus.Registry
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		registry = prometheus.NewRegistry()

		m := &moduleMetrics{
			messagesReceived: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "relay_messages_received_total",
					Help: "Total inbound chat messages accepted from the webhook.",
				},
			),
			messagesSent: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "relay_messages_sent_total",
					Help: "Total replies delivered to the messaging platform.",
				},
			),
			repliesFailed: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "relay_replies_failed_total",
					Help: "Total replies that could not be delivered.",
				},
			),
			completionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "completion_duration_seconds",
					Help:    "Completion call duration in seconds by provider and status.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider", "status"},
			),
			memoryFetchDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_fetch_duration_seconds",
					Help:    "Context window fetch duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			memoryAppendDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_append_duration_seconds",
					Help:    "Record append duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			primaryErrors: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "memory_primary_errors_total",
					Help: "Primary store failures by operation.",
				},
				[]string{"op"},
			),
			fallbackActivations: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "memory_fallback_activations_total",
					Help: "Reads served by the fallback store after a primary failure, by operation.",
				},
				[]string{"op"},
			),
			fallbackPartitions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "memory_fallback_partitions",
					Help: "Chat partitions currently held in the fallback store.",
				},
			),
		}

		registry.MustRegister(
			m.messagesReceived,
			m.messagesSent,
			m.repliesFailed,
			m.completionDuration,
			m.memoryFetchDuration,
			m.memoryAppendDuration,
			m.primaryErrors,
			m.fallbackActivations,
			m.fallbackPartitions,
		)

		metricsInst = m
	})
	return metricsInst
}

// EnsureRegistered forces metric registration. Callers that only record
// later may invoke this at construction time so /metrics is complete
// before the first request.
func EnsureRegistered() {
	getMetrics()
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	getMetrics()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// RecordMessageReceived counts one accepted inbound message.
func RecordMessageReceived() {
	getMetrics().messagesReceived.Inc()
}

// RecordMessageSent counts one delivered reply.
func RecordMessageSent() {
	getMetrics().messagesSent.Inc()
}

// RecordReplyFailed counts one reply that could not be delivered.
func RecordReplyFailed() {
	getMetrics().repliesFailed.Inc()
}

// RecordCompletion records one completion call.
func RecordCompletion(provider, status string, d time.Duration) {
	getMetrics().completionDuration.WithLabelValues(provider, status).Observe(d.Seconds())
}

// RecordMemoryFetch records one context window fetch.
func RecordMemoryFetch(d time.Duration) {
	getMetrics().memoryFetchDuration.Observe(d.Seconds())
}

// RecordMemoryAppend records one record append.
func RecordMemoryAppend(d time.Duration) {
	getMetrics().memoryAppendDuration.Observe(d.Seconds())
}

// RecordPrimaryError counts one primary store failure for op.
func RecordPrimaryError(op string) {
	getMetrics().primaryErrors.WithLabelValues(op).Inc()
}

// RecordFallbackActivation counts one operation served by the fallback
// store after a primary failure.
func RecordFallbackActivation(op string) {
	getMetrics().fallbackActivations.WithLabelValues(op).Inc()
}

// SetFallbackPartitions updates the fallback partition gauge.
func SetFallbackPartitions(n int) {
	getMetrics().fallbackPartitions.Set(float64(n))
}
