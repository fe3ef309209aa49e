// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package metrics provides Prometheus instrumentation for the core's request
lifecycle, exposed on METRICS_PORT when METRICS_ENABLED is true.

# Available Metrics

Cache (component A):
  - eacore_cache_hits_total / eacore_cache_misses_total, labeled by endpoint
  - eacore_cache_size, eacore_cache_evictions_total (ttl|capacity)
  - eacore_cache_lock_wait_duration_seconds

RateLimiter (component C):
  - eacore_rate_limit_admitted_total, eacore_rate_limit_wait_duration_seconds
  - eacore_rate_limit_queue_depth, eacore_rate_limit_queue_overflow_total

Requester (component D):
  - eacore_requester_duration_seconds (labels: endpoint, result)
  - eacore_requester_coalesced_total
  - eacore_circuit_breaker_state, eacore_circuit_breaker_transitions_total

BackgroundExecutor (component I):
  - eacore_background_execute_duration_seconds
  - eacore_background_execute_errors_total
  - eacore_background_execute_skipped_total

SubscriptionSet (component B):
  - eacore_subscription_set_size, eacore_subscription_set_expired_total

Ingress:
  - eacore_api_requests_total, eacore_api_request_duration_seconds
  - eacore_api_active_requests

Transport E.2 (WebSocket):
  - eacore_websocket_connections_active
  - eacore_websocket_messages_sent_total / received_total
  - eacore_websocket_errors_total

# Usage

Metrics are exposed at GET /metrics on METRICS_PORT via promhttp.Handler,
wired up alongside the ingress server in cmd/server/main.go.

# Thread Safety

All recording functions are safe for concurrent use; the Prometheus client
library handles synchronization internally.
*/
package metrics
