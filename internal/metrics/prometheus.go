// Package metrics exposes the Prometheus instruments for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "likeshub_http_requests_total",
		Help: "HTTP requests processed, by method, route and status code.",
	}, []string{"method", "path", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "likeshub_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	CouponsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "likeshub_coupons_issued_total",
		Help: "Coupons successfully created.",
	})

	// CodeGenerationRetries counts unique-violation retries per created coupon.
	// A rising trend means the code space is getting crowded for some prefix.
	CodeGenerationRetries = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "likeshub_code_generation_retries",
		Help:    "Collision retries needed to mint one coupon code.",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
	})

	RedemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "likeshub_redemptions_total",
		Help: "Redemption attempts by outcome (success, invalid, error).",
	}, []string{"outcome"})

	CouponsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "likeshub_coupons_by_status",
		Help: "Current coupon counts by status.",
	}, []string{"status"})

	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "likeshub_admin_logins_total",
		Help: "Admin login attempts by outcome (success, failure).",
	}, []string{"outcome"})
)
