package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method", "status_code"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status_code"},
	)
)

var (
	StarsMintedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stars_minted_total",
			Help: "Total number of stars minted",
		},
	)

	StarTransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "star_transfers_total",
			Help: "Total number of ownership transfers",
		},
		[]string{"kind"},
	)

	StarApprovalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "star_approvals_total",
			Help: "Total number of delegate and operator approvals",
		},
		[]string{"kind"},
	)

	StarListingsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "star_listings_total",
			Help: "Total number of stars put up for sale",
		},
	)

	StarSalesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "star_sales_total",
			Help: "Total number of completed star purchases",
		},
	)

	StarSaleVolumeTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "star_sale_volume_total",
			Help: "Sum of sale prices of completed purchases",
		},
	)

	StarOperationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "star_operation_failures_total",
			Help: "Total number of rejected registry operations",
		},
		[]string{"operation", "reason"},
	)

	PaymentReversalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_reversals_total",
			Help: "Total number of settled payments reversed after a failed commit",
		},
	)
)

var (
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"query_type", "table"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

var (
	RedisCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_command_duration_seconds",
			Help:    "Duration of Redis commands in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"command"},
	)

	LockAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "star_lock_attempts_total",
			Help: "Total number of item lock attempts",
		},
		[]string{"lock_type"},
	)

	LockFailureTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "star_lock_failure_total",
			Help: "Total number of failed item lock acquisitions",
		},
		[]string{"lock_type", "reason"},
	)

	LockDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "star_lock_duration_seconds",
			Help:    "Duration of item lock hold time in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"lock_type"},
	)
)

func TimeDBQuery(queryType, table string) func() {
	start := time.Now()
	return func() {
		duration := time.Since(start).Seconds()
		DBQueryDuration.WithLabelValues(queryType, table).Observe(duration)
	}
}

func TimeLock(lockKey string) func() {
	start := time.Now()
	return func() {
		LockDuration.WithLabelValues(getLockType(lockKey)).Observe(time.Since(start).Seconds())
	}
}

func RecordMint() {
	StarsMintedTotal.Inc()
}

func RecordTransfer(kind string) {
	StarTransfersTotal.WithLabelValues(kind).Inc()
}

func RecordApproval(kind string) {
	StarApprovalsTotal.WithLabelValues(kind).Inc()
}

func RecordListing() {
	StarListingsTotal.Inc()
}

func RecordSale(price int64) {
	StarSalesTotal.Inc()
	StarSaleVolumeTotal.Add(float64(price))
}

func RecordFailure(operation, reason string) {
	StarOperationFailuresTotal.WithLabelValues(operation, reason).Inc()
}

func RecordLockAttempt(lockKey string) {
	LockAttemptsTotal.WithLabelValues(getLockType(lockKey)).Inc()
}

func RecordLockFailure(lockKey, reason string) {
	LockFailureTotal.WithLabelValues(getLockType(lockKey), reason).Inc()
}

func getLockType(lockKey string) string {
	switch {
	case len(lockKey) >= 4 && lockKey[:4] == "star":
		return "star"
	case lockKey == "":
		return "unknown"
	default:
		return "other"
	}
}
