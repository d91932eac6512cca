// Package telemetry exposes Prometheus collectors for the indexer service.
package telemetry

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Message outcomes recorded per inbound topic.
const (
	OutcomeIndexed   = "indexed"
	OutcomeDuplicate = "duplicate"
	OutcomeDiscarded = "discarded"
	OutcomeError     = "error"
)

var (
	indexerMessagesTotal       *prometheus.CounterVec
	indexerDedupSkipsTotal     *prometheus.CounterVec
	indexerTasksEnqueuedTotal  *prometheus.CounterVec
	indexerAuditPublishedTotal *prometheus.CounterVec
	indexerAuditDroppedTotal   prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		indexerMessagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_messages_total",
				Help: "Total number of push messages handled, labeled by topic and outcome.",
			},
			[]string{"topic", "outcome"},
		)

		indexerDedupSkipsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_dedup_skips_total",
				Help: "Total number of items skipped as already known, labeled by which layer knew them.",
			},
			[]string{"kind"},
		)

		indexerTasksEnqueuedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_tasks_enqueued_total",
				Help: "Total number of scrape tasks enqueued, labeled by spider.",
			},
			[]string{"spider"},
		)

		indexerAuditPublishedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_audit_published_total",
				Help: "Total number of audit events published, labeled by topic.",
			},
			[]string{"topic"},
		)

		indexerAuditDroppedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "indexer_audit_dropped_total",
				Help: "Total audit events dropped due to hub backpressure.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveMessage increments the per-topic message counter.
func ObserveMessage(topic, outcome string) {
	indexerMessagesTotal.WithLabelValues(topic, outcome).Inc()
}

// ObserveDedupSkip records a debounce hit in the given layer (cache, ledger, catalog).
func ObserveDedupSkip(kind string) {
	indexerDedupSkipsTotal.WithLabelValues(kind).Inc()
}

// ObserveTaskEnqueued increments the scrape task counter for a spider.
func ObserveTaskEnqueued(spider string) {
	indexerTasksEnqueuedTotal.WithLabelValues(spider).Inc()
}

// ObserveAuditPublished increments the audit publish counter for a topic.
func ObserveAuditPublished(topic string, n int) {
	indexerAuditPublishedTotal.WithLabelValues(topic).Add(float64(n))
}

// ObserveAuditDropped counts events the hub had to drop.
func ObserveAuditDropped(n int64) {
	indexerAuditDroppedTotal.Add(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
