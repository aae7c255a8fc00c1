// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

// Package metrics provides Prometheus instrumentation for the tracking
// pipeline: ingest throughput, persistence failures, geolocation
// provider health, notification delivery, and API latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest Metrics
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_events_ingested_total",
			Help: "Total number of tracking events accepted by the ingest endpoint",
		},
		[]string{"event_type"},
	)

	EventPersistFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_event_persist_failures_total",
			Help: "Total number of tracking events that failed to persist (response stayed success-shaped)",
		},
		[]string{"event_type"},
	)

	VisitorUpserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visitor_upserts_total",
			Help: "Total number of visitor upserts",
		},
		[]string{"outcome"}, // "new", "returning", "error"
	)

	SubscriptionsCaptured = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_captured_total",
			Help: "Total number of subscription leads captured",
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of Postgres queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_errors_total",
			Help: "Total number of Postgres query errors",
		},
		[]string{"operation", "table"},
	)

	// Geolocation Metrics
	GeoLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoip_lookups_total",
			Help: "Total number of geolocation lookups by provider and outcome",
		},
		[]string{"provider", "outcome"}, // outcome: "success", "failure", "rejected"
	)

	GeoLookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geoip_lookup_duration_seconds",
			Help:    "Duration of geolocation provider calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	GeoCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geoip_cache_hits_total",
			Help: "Total number of geolocation cache hits",
		},
	)

	GeoCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geoip_cache_misses_total",
			Help: "Total number of geolocation cache misses",
		},
	)

	GeoPrivateSkips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geoip_private_skips_total",
			Help: "Total number of lookups short-circuited for private/loopback addresses",
		},
	)

	// Notification Metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notification delivery attempts by channel and outcome",
		},
		[]string{"channel", "outcome"}, // outcome: "delivered", "failed", "skipped"
	)

	NotificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_delivery_duration_seconds",
			Help:    "Duration of notification deliveries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)
)

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordGeoLookup records a provider call outcome.
func RecordGeoLookup(provider, outcome string, duration time.Duration) {
	GeoLookups.WithLabelValues(provider, outcome).Inc()
	GeoLookupDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordNotification records a notification delivery attempt.
func RecordNotification(channel, outcome string, duration time.Duration) {
	NotificationsSent.WithLabelValues(channel, outcome).Inc()
	NotificationDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
