// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// RPC transport metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallsTotal  *prometheus.CounterVec

	// Ledger client metrics
	CacheLookups     *prometheus.CounterVec
	RateLimitRetries *prometheus.CounterVec
	LedgerFailures   *prometheus.CounterVec

	// Confirmation metrics
	WatchesStarted  prometheus.Counter
	WatchOutcomes   *prometheus.CounterVec
	WatchChecks     prometheus.Histogram
	ActiveWatches   prometheus.Gauge
	TimeToConfirmed prometheus.Histogram

	// History metrics
	HistoryListings       prometheus.Counter
	HistoryDroppedFetches prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tap_to_pay"
	}

	return &Metrics{
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_calls_total",
			Help:      "Total number of Solana RPC calls by method and outcome",
		}, []string{"method", "outcome"}),

		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "cache_lookups_total",
			Help:      "Total number of request cache lookups by method and result",
		}, []string{"method", "result"}),
		RateLimitRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rate_limit_retries_total",
			Help:      "Total number of backoff retries after a rate-limited attempt",
		}, []string{"method"}),
		LedgerFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "failures_total",
			Help:      "Total number of ledger calls surfaced as errors by kind",
		}, []string{"method", "kind"}),

		WatchesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "confirmation",
			Name:      "watches_started_total",
			Help:      "Total number of payment watches started",
		}),
		WatchOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "confirmation",
			Name:      "watch_outcomes_total",
			Help:      "Total number of finished payment watches by outcome",
		}, []string{"outcome"}),
		WatchChecks: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "confirmation",
			Name:      "watch_checks",
			Help:      "Number of poll ticks a watch ran before finishing",
			Buckets:   []float64{1, 2, 3, 5, 8, 10, 15},
		}),
		ActiveWatches: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "confirmation",
			Name:      "active_watches",
			Help:      "Number of payment watches currently polling",
		}),
		TimeToConfirmed: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "confirmation",
			Name:      "time_to_confirmed_seconds",
			Help:      "Time from watch start to confirmed payment in seconds",
			Buckets:   []float64{2, 5, 10, 20, 30, 60, 90, 120, 180},
		}),

		HistoryListings: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "listings_total",
			Help:      "Total number of transfer history listings",
		}),
		HistoryDroppedFetches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "dropped_fetches_total",
			Help:      "Total number of transactions skipped after a failed fetch",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRPCCall records RPC call latency and outcome.
func RecordRPCCall(method string, seconds float64, outcome string) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	DefaultMetrics.RPCCallsTotal.WithLabelValues(method, outcome).Inc()
}

// RecordCacheLookup records a request cache hit or miss.
func RecordCacheLookup(method string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.CacheLookups.WithLabelValues(method, result).Inc()
}

// RecordRateLimitRetry increments the backoff retry counter.
func RecordRateLimitRetry(method string) {
	DefaultMetrics.RateLimitRetries.WithLabelValues(method).Inc()
}

// RecordLedgerFailure records an error surfaced by the ledger client.
func RecordLedgerFailure(method, kind string) {
	DefaultMetrics.LedgerFailures.WithLabelValues(method, kind).Inc()
}

// RecordWatchStarted records a new payment watch.
func RecordWatchStarted() {
	DefaultMetrics.WatchesStarted.Inc()
	DefaultMetrics.ActiveWatches.Inc()
}

// RecordWatchFinished records the outcome of a payment watch.
func RecordWatchFinished(outcome string, checks int) {
	DefaultMetrics.ActiveWatches.Dec()
	DefaultMetrics.WatchOutcomes.WithLabelValues(outcome).Inc()
	DefaultMetrics.WatchChecks.Observe(float64(checks))
}

// RecordTimeToConfirmed records how long a watch took to confirm.
func RecordTimeToConfirmed(seconds float64) {
	DefaultMetrics.TimeToConfirmed.Observe(seconds)
}

// RecordHistoryListing records a history listing and its dropped fetches.
func RecordHistoryListing(dropped int) {
	DefaultMetrics.HistoryListings.Inc()
	DefaultMetrics.HistoryDroppedFetches.Add(float64(dropped))
}
