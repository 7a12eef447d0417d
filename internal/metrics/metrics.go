// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

// Package metrics defines the Prometheus collectors exported at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "souq_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "souq_db_query_errors_total",
			Help: "DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "souq_api_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "souq_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "souq_api_active_requests",
			Help: "In-flight HTTP requests",
		},
	)

	// Commerce
	OrdersPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "souq_orders_placed_total",
			Help: "Orders placed by payment gateway",
		},
		[]string{"gateway"},
	)

	OrderValue = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "souq_order_value_minor",
			Help:    "Order totals in minor currency units",
			Buckets: prometheus.ExponentialBuckets(500, 2, 12),
		},
		[]string{"currency"},
	)

	OrderStatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "souq_order_status_transitions_total",
			Help: "Order status changes",
		},
		[]string{"from", "to"},
	)

	CartOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "souq_cart_operations_total",
			Help: "Cart operations by type and result",
		},
		[]string{"operation", "result"},
	)

	// Payments
	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "souq_payments_total",
			Help: "Payment outcomes by gateway",
		},
		[]string{"gateway", "status"},
	)

	PaymentGatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "souq_payment_gateway_duration_seconds",
			Help:    "Latency of calls to payment providers",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{"gateway", "operation"},
	)

	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "souq_payment_webhooks_total",
			Help: "Payment webhooks by gateway and result",
		},
		[]string{"gateway", "result"},
	)

	// Circuit breakers around payment providers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "souq_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "souq_circuit_breaker_requests_total",
			Help: "Requests through circuit breakers",
		},
		[]string{"name", "result"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "souq_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Newsletter
	NewsletterDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "souq_newsletter_deliveries_total",
			Help: "Newsletter recipient deliveries by channel and status",
		},
		[]string{"channel", "status"},
	)

	NewsletterCampaignsRun = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "souq_newsletter_campaigns_total",
			Help: "Campaign executions by final status",
		},
		[]string{"status"},
	)

	// Authorization
	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "souq_authz_decisions_total",
			Help: "Admin authorization decisions by resource and result",
		},
		[]string{"object", "result"},
	)

	AuthzCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "souq_authz_cache_hits_total",
			Help: "Authorization decisions served from cache",
		},
	)

	// Realtime and events
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "souq_websocket_connections",
			Help: "Connected admin websocket clients",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "souq_events_published_total",
			Help: "Domain events published by topic",
		},
		[]string{"topic"},
	)

	EventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "souq_events_handled_total",
			Help: "Domain events handled by handler and result",
		},
		[]string{"handler", "result"},
	)

	// Jobs
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "souq_job_runs_total",
			Help: "Maintenance job runs by job and result",
		},
		[]string{"job", "result"},
	)
)

// RecordDBQuery records a query's latency and, when err is set, an error.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

// RecordOrderPlaced counts an order and observes its total.
func RecordOrderPlaced(gateway, currency string, totalMinor int64) {
	OrdersPlaced.WithLabelValues(gateway).Inc()
	OrderValue.WithLabelValues(currency).Observe(float64(totalMinor))
}

// RecordPayment counts a payment outcome (paid, failed, refunded, pending).
func RecordPayment(gateway, status string) {
	PaymentsTotal.WithLabelValues(gateway, status).Inc()
}

// RecordGatewayCall observes the latency of one provider call.
func RecordGatewayCall(gateway, operation string, duration time.Duration) {
	PaymentGatewayDuration.WithLabelValues(gateway, operation).Observe(duration.Seconds())
}

// RecordWebhook counts a webhook by result (processed, duplicate, ignored, rejected, error).
func RecordWebhook(gateway, result string) {
	WebhooksTotal.WithLabelValues(gateway, result).Inc()
}

// RecordCartOperation counts a cart mutation.
func RecordCartOperation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	CartOperations.WithLabelValues(operation, result).Inc()
}

// RecordJobRun counts a maintenance job execution.
func RecordJobRun(job string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	JobRuns.WithLabelValues(job, result).Inc()
}

// RecordAuthzDecision counts an allow or deny for object.
func RecordAuthzDecision(object string, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	AuthzDecisions.WithLabelValues(object, result).Inc()
}
