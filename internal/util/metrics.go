package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_upstream_request_duration_seconds",
		Help:    "Latency of requests to the remote REST API",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_upstream_requests_total",
		Help: "Total number of requests to the remote REST API",
	}, []string{"method", "endpoint", "status"})

	TokenRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_token_refresh_total",
		Help: "Token refresh attempts by result",
	}, []string{"result"})

	ForcedLogoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_forced_logouts_total",
		Help: "Sessions cleared because the token could not be refreshed",
	})

	CartReconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_reconcile_total",
		Help: "Cart mirror resynchronizations by result",
	}, []string{"result"})

	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_mutations_total",
		Help: "Cart mutations sent to the server by operation and result",
	}, []string{"operation", "result"})

	OrdersPlacedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_placed_total",
		Help: "Orders placed through checkout by payment method",
	}, []string{"payment_method"})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_cancelled_total",
		Help: "Orders cancelled by customers",
	})

	PaymentVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_payment_verifications_total",
		Help: "Gateway return verifications by result",
	}, []string{"result"})

	ActiveContexts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_active_browsing_contexts",
		Help: "Browsing contexts currently held in memory",
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
