package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "endpoint", "status"},
	)

	// RequestDuration tracks HTTP request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "endpoint"},
	)

	// CircuitBreakerState tracks circuit breaker state (0=closed, 1=open, 2=half-open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"service", "circuit_name"},
	)

	// CircuitBreakerFailures tracks circuit breaker failures
	CircuitBreakerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of circuit breaker failures",
		},
		[]string{"service", "circuit_name"},
	)

	// BulkheadActiveRequests tracks active upstream requests in the bulkhead
	BulkheadActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bulkhead_active_requests",
			Help: "Number of active requests in bulkhead",
		},
		[]string{"service", "bulkhead_name"},
	)

	// BulkheadRejectedRequests tracks rejected requests by bulkhead
	BulkheadRejectedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkhead_rejected_requests_total",
			Help: "Total number of rejected requests by bulkhead",
		},
		[]string{"service", "bulkhead_name"},
	)

	// QuotesTotal tracks remittance quote requests by outcome
	QuotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remittance_quotes_total",
			Help: "Total number of remittance quote requests",
		},
		[]string{"outcome"},
	)

	// TransactionsTotal tracks remittance transaction status transitions
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remittance_transactions_total",
			Help: "Total number of remittance transaction status transitions",
		},
		[]string{"status"},
	)

	// GrantContinuations tracks outgoing-payment grant continuation attempts
	GrantContinuations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grant_continuations_total",
			Help: "Total number of grant continuation attempts",
		},
		[]string{"outcome"},
	)

	// PollAttempts tracks background authorization poll ticks
	PollAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authorization_poll_attempts_total",
			Help: "Total number of background authorization poll attempts",
		},
	)

	// PollTimeouts tracks poll loops that gave up without a terminal state
	PollTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authorization_poll_timeouts_total",
			Help: "Total number of authorization polls that timed out",
		},
	)

	// PaymentAmount tracks debit amounts in major units of the source asset
	PaymentAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "remittance_debit_amount",
			Help:    "Remittance debit amounts in major units",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000},
		},
	)
)

// PrometheusMiddleware creates a Gin middleware for automatic metrics collection
func PrometheusMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		RequestsTotal.WithLabelValues(
			serviceName,
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()

		RequestDuration.WithLabelValues(
			serviceName,
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}
