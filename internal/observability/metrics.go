package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	ledgerOpCounter       *prometheus.CounterVec
	ledgerOpDuration      *prometheus.HistogramVec
	idempotencyCounter    *prometheus.CounterVec
	eventPublishCounter   *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		ledgerOpCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Deposits, withdrawals and transfers by outcome",
		}, []string{"operation", "outcome"})

		ledgerOpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Time spent in ledger money movements",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Transfer idempotency outcomes",
		}, []string{"outcome"})

		eventPublishCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_events_published_total",
			Help: "Ledger event publish attempts",
		}, []string{"result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			ledgerOpCounter,
			ledgerOpDuration,
			idempotencyCounter,
			eventPublishCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

// ObserveLedgerOperation records one money movement. outcome is the audit status
// or the error category of a rejected request.
func ObserveLedgerOperation(operation, outcome string, duration time.Duration) {
	if ledgerOpCounter == nil {
		return
	}
	ledgerOpCounter.WithLabelValues(operation, outcome).Inc()
	ledgerOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementEventPublish(result string) {
	if eventPublishCounter == nil {
		return
	}
	eventPublishCounter.WithLabelValues(result).Inc()
}
