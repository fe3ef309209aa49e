// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the core's request lifecycle (spec §4):
// cache efficiency, rate limiter admission/queueing, requester latency and
// circuit-breaker state, background-execute scheduling, and subscription-set
// occupancy. Exposed on METRICS_PORT when METRICS_ENABLED is true.

var (
	// Cache Metrics (component A)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eacore_cache_hits_total",
			Help: "Total number of cache lookups that returned a fresh entry",
		},
		[]string{"endpoint"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eacore_cache_misses_total",
			Help: "Total number of cache lookups that found no entry",
		},
		[]string{"endpoint"},
	)

	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eacore_cache_size",
			Help: "Current number of entries held by the cache",
		},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eacore_cache_evictions_total",
			Help: "Total number of cache entries evicted by capacity or TTL",
		},
		[]string{"reason"}, // reason: "ttl", "capacity"
	)

	CacheLockWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eacore_cache_lock_wait_duration_seconds",
			Help:    "Time spent waiting to acquire the distributed cache lock",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RateLimiter Metrics (component C)
	RateLimitAdmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eacore_rate_limit_admitted_total",
			Help: "Total number of requests admitted by the rate limiter",
		},
		[]string{"endpoint"},
	)

	RateLimitQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eacore_rate_limit_queued_total",
			Help: "Total number of requests queued waiting for rate limiter capacity",
		},
		[]string{"endpoint"},
	)

	RateLimitQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "eacore_rate_limit_queue_depth",
			Help: "Current number of requests queued per endpoint",
		},
		[]string{"endpoint"},
	)

	RateLimitQueueOverflows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eacore_rate_limit_queue_overflow_total",
			Help: "Total number of requests dropped because the endpoint queue was full",
		},
		[]string{"endpoint"},
	)

	RateLimitWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eacore_rate_limit_wait_duration_seconds",
			Help:    "Time a request spent waiting for rate limiter admission",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Requester Metrics (component D)
	RequesterDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eacore_requester_duration_seconds",
			Help:    "Duration of upstream requests issued through the Requester",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "result"}, // result: "success", "failure"
	)

	RequesterCoalesced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eacore_requester_coalesced_total",
			Help: "Total number of requests that joined an in-flight call instead of dispatching a new one",
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "eacore_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"endpoint"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eacore_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"endpoint", "from_state", "to_state"},
	)

	// BackgroundExecutor Metrics (component I)
	BackgroundExecuteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eacore_background_execute_duration_seconds",
			Help:    "Duration of a transport's BackgroundExecute invocation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "transport"},
	)

	BackgroundExecuteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eacore_background_execute_errors_total",
			Help: "Total number of BackgroundExecute invocations that returned an error or panicked",
		},
		[]string{"endpoint", "transport"},
	)

	BackgroundExecuteSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eacore_background_execute_skipped_total",
			Help: "Total number of scheduling ticks where no transport job was eligible yet",
		},
		[]string{"endpoint", "transport"},
	)

	// SubscriptionSet Metrics (component B)
	SubscriptionSetSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "eacore_subscription_set_size",
			Help: "Current number of keys tracked by a subscription set",
		},
		[]string{"endpoint", "transport"},
	)

	SubscriptionSetExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eacore_subscription_set_expired_total",
			Help: "Total number of subscription entries removed on TTL expiry",
		},
		[]string{"endpoint", "transport"},
	)

	// Ingress Metrics (HTTP API)
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eacore_api_requests_total",
			Help: "Total number of HTTP requests handled by the ingress API",
		},
		[]string{"method", "path", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eacore_api_request_duration_seconds",
			Help:    "Duration of HTTP requests handled by the ingress API",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eacore_api_active_requests",
			Help: "Current number of in-flight HTTP requests",
		},
	)

	// WebSocket Metrics (transport E.2)
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eacore_websocket_connections_active",
			Help: "Current number of active WebSocket connections to upstream",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eacore_websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eacore_websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eacore_websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "eacore_app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eacore_app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordCacheHit records a cache lookup that returned a fresh entry.
func RecordCacheHit(endpoint string) {
	CacheHits.WithLabelValues(endpoint).Inc()
}

// RecordCacheMiss records a cache lookup that found no entry.
func RecordCacheMiss(endpoint string) {
	CacheMisses.WithLabelValues(endpoint).Inc()
}

// RecordCacheEviction records an entry evicted from the cache, labelled by reason.
func RecordCacheEviction(reason string) {
	CacheEvictions.WithLabelValues(reason).Inc()
}

// RecordRateLimitAdmission records a request passing the rate limiter,
// with the total time it spent waiting to be admitted.
func RecordRateLimitAdmission(endpoint string, waited time.Duration) {
	RateLimitAdmitted.WithLabelValues(endpoint).Inc()
	RateLimitWaitDuration.WithLabelValues(endpoint).Observe(waited.Seconds())
}

// RecordRateLimitOverflow records a request dropped because its endpoint's
// queue was at capacity.
func RecordRateLimitOverflow(endpoint string) {
	RateLimitQueueOverflows.WithLabelValues(endpoint).Inc()
}

// UpdateRateLimitQueueDepth reflects the current queue length for an endpoint.
func UpdateRateLimitQueueDepth(endpoint string, depth int) {
	RateLimitQueueDepth.WithLabelValues(endpoint).Set(float64(depth))
}

// RecordRequesterCall records the outcome and duration of a Requester.Request
// call, distinguishing a fresh dispatch from one coalesced into an in-flight
// call by the shared singleflight group.
func RecordRequesterCall(endpoint string, duration time.Duration, coalesced bool, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	RequesterDuration.WithLabelValues(endpoint, result).Observe(duration.Seconds())
	if coalesced {
		RequesterCoalesced.WithLabelValues(endpoint).Inc()
	}
}

// RecordCircuitBreakerTransition records a gobreaker state change.
func RecordCircuitBreakerTransition(endpoint, from, to string, state float64) {
	CircuitBreakerTransitions.WithLabelValues(endpoint, from, to).Inc()
	CircuitBreakerState.WithLabelValues(endpoint).Set(state)
}

// RecordBackgroundExecute records one BackgroundExecutor scheduling tick.
func RecordBackgroundExecute(endpoint, transport string, duration time.Duration, err error) {
	BackgroundExecuteDuration.WithLabelValues(endpoint, transport).Observe(duration.Seconds())
	if err != nil {
		BackgroundExecuteErrors.WithLabelValues(endpoint, transport).Inc()
	}
}

// UpdateSubscriptionSetSize reflects a subscription set's current occupancy.
func UpdateSubscriptionSetSize(endpoint, transport string, size int) {
	SubscriptionSetSize.WithLabelValues(endpoint, transport).Set(float64(size))
}

// RecordSubscriptionExpired records an entry removed on TTL expiry.
func RecordSubscriptionExpired(endpoint, transport string) {
	SubscriptionSetExpired.WithLabelValues(endpoint, transport).Inc()
}

// RecordAPIRequest records a completed HTTP ingress request.
func RecordAPIRequest(method, path, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight HTTP request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
