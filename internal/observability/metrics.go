package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	pushesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pushgate",
			Subsystem: "apns",
			Name:      "pushes_total",
			Help:      "Push frames written to the gateway.",
		},
		[]string{"result"},
	)
	pushBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pushgate",
			Subsystem: "apns",
			Name:      "push_bytes_total",
			Help:      "Wire bytes written on push channels.",
		},
	)
	bulkBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pushgate",
			Subsystem: "apns",
			Name:      "bulk_batch_size",
			Help:      "Tokens per bulk send.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)
	feedbackRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pushgate",
			Subsystem: "apns",
			Name:      "feedback_records_total",
			Help:      "Invalidation records read from the feedback stream.",
		},
	)
	consumerDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pushgate",
			Subsystem: "consumer",
			Name:      "deliveries_total",
			Help:      "Queue deliveries by outcome.",
		},
		[]string{"outcome"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pushgate",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total ops HTTP requests.",
		},
		[]string{"app", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pushgate",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Ops HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"app", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			pushesSent, pushBytes, bulkBatchSize,
			feedbackRecords, consumerDeliveries,
			httpRequests, httpDuration,
		)
	})
}

func RecordPush(result string, bytes int) {
	RegisterMetrics()
	pushesSent.WithLabelValues(result).Inc()
	if bytes > 0 {
		pushBytes.Add(float64(bytes))
	}
}

func RecordBulkBatch(size int) {
	RegisterMetrics()
	bulkBatchSize.Observe(float64(size))
}

func RecordFeedback(records int) {
	RegisterMetrics()
	feedbackRecords.Add(float64(records))
}

func RecordDelivery(outcome string) {
	RegisterMetrics()
	consumerDeliveries.WithLabelValues(outcome).Inc()
}

func RecordHTTPRequest(app, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(app, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(app, method, path, statusLabel).Observe(duration.Seconds())
}
