// Package metrics holds the Prometheus collectors shared by the services.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Orders committed, by payment method.",
		},
		[]string{"payment_method"},
	)
	OrderPlaceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_place_failures_total",
			Help: "Rejected or failed order placements, by reason.",
		},
		[]string{"reason"},
	)
	OrdersCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_cancelled_total",
			Help: "Orders moved to cancelled, by origin (user|admin).",
		},
		[]string{"origin"},
	)
	PaymentVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "Gateway signature checks, by outcome.",
		},
		[]string{"outcome"},
	)
	RestockJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restock_jobs_total",
			Help: "Restock job applications, by outcome.",
		},
		[]string{"outcome"},
	)
	ProductCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "product_cache_requests_total",
			Help: "Product cache lookups, by result (hit|miss|error).",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequests,
		HTTPDuration,
		OrdersPlaced,
		OrderPlaceFailures,
		OrdersCancelled,
		PaymentVerifications,
		RestockJobs,
		ProductCache,
	)
}
