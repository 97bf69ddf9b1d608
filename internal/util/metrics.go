package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_confirmed_total",
		Help: "Total number of orders confirmed with verified payment",
	})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	OrdersExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_expired_total",
		Help: "Total number of orders expired past the confirmation window",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order operations",
	}, []string{"reason"})

	PaymentVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verifications_total",
		Help: "Chain payment verification attempts by outcome",
	}, []string{"outcome"})

	PaymentSoftPassTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_soft_pass_total",
		Help: "Confirmations accepted while the RPC provider was unreachable",
	})

	PaymentVerificationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_verification_latency_seconds",
		Help:    "Latency of chain payment verification",
		Buckets: prometheus.DefBuckets,
	})

	CatchesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catches_recorded_total",
		Help: "Total number of daily catches recorded",
	})

	DexEntriesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dex_entries_created_total",
		Help: "Total number of new pokedex entries",
	})

	CatchCooldownRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catch_cooldown_rejections_total",
		Help: "Catch attempts rejected by the cooldown window",
	})

	BadgesUnlockedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "badges_unlocked_total",
		Help: "Total number of badges unlocked",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
