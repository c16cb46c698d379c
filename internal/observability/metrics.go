package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "clubledger"

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	settlementCounter     *prometheus.CounterVec
	webhookCounter        *prometheus.CounterVec
	topUpCounter          *prometheus.CounterVec
	ledgerBreakCounter    *prometheus.CounterVec
	idempotencyCounter    *prometheus.CounterVec
	staleChargeGauge      prometheus.Gauge
	notificationCounter   *prometheus.CounterVec
	workerRunCounter      *prometheus.CounterVec
	rateLimitedCounter    *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		settlementCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Settlement decisions by path taken",
		}, []string{"path"})

		webhookCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_webhooks_total",
			Help:      "Gateway webhook outcomes",
		}, []string{"type", "outcome"})

		topUpCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_topups_total",
			Help:      "Off-session top-up attempts by result",
		}, []string{"result"})

		ledgerBreakCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_integrity_breaks_total",
			Help:      "Balance chain or sequence violations observed",
		}, []string{"account_kind"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotency_events_total",
			Help:      "Idempotency middleware outcomes",
		}, []string{"outcome"})

		staleChargeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stale_pending_charges",
			Help:      "Pending gateway charges older than the staleness age",
		})

		notificationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Member notifications by result",
		}, []string{"result"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_runs_total",
			Help:      "Background worker run outcomes",
		}, []string{"worker", "result"})

		rateLimitedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by a rate limiter",
		}, []string{"scope"})

		prometheus.MustRegister(
			httpDurationHistogram,
			settlementCounter,
			webhookCounter,
			topUpCounter,
			ledgerBreakCounter,
			idempotencyCounter,
			staleChargeGauge,
			notificationCounter,
			workerRunCounter,
			rateLimitedCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

// IncrementSettlement records the path: balance, auto_topup, card, declined.
func IncrementSettlement(path string) {
	if settlementCounter == nil {
		return
	}
	settlementCounter.WithLabelValues(path).Inc()
}

func IncrementWebhook(eventType, outcome string) {
	if webhookCounter == nil {
		return
	}
	webhookCounter.WithLabelValues(eventType, outcome).Inc()
}

func IncrementTopUp(result string) {
	if topUpCounter == nil {
		return
	}
	topUpCounter.WithLabelValues(result).Inc()
}

func AddLedgerBreaks(accountKind string, n int64) {
	if ledgerBreakCounter == nil || n <= 0 {
		return
	}
	ledgerBreakCounter.WithLabelValues(accountKind).Add(float64(n))
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func SetStaleCharges(n int64) {
	if staleChargeGauge == nil {
		return
	}
	staleChargeGauge.Set(float64(n))
}

func IncrementNotification(result string) {
	if notificationCounter == nil {
		return
	}
	notificationCounter.WithLabelValues(result).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}

func IncrementRateLimited(scope string) {
	if rateLimitedCounter == nil {
		return
	}
	rateLimitedCounter.WithLabelValues(scope).Inc()
}
