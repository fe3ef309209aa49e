// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates every setting recognized by the core
// (spec §6), layered from built-in defaults, an optional YAML file, and
// environment variables (highest priority), via Koanf v2 exactly as the
// teacher loads its own configuration.
package config

import "time"

// Mode is EA_MODE: which loops a process runs (spec §4.I).
type Mode string

const (
	ModeReader       Mode = "reader"
	ModeWriter       Mode = "writer"
	ModeReaderWriter Mode = "reader-writer"
)

// CacheType is CACHE_TYPE.
type CacheType string

const (
	CacheTypeLocal CacheType = "local"
	CacheTypeRedis CacheType = "redis"
)

// RateLimitStrategy is RATE_LIMITING_STRATEGY (spec §4.C).
type RateLimitStrategy string

const (
	RateLimitStrategyBurst         RateLimitStrategy = "burst"
	RateLimitStrategyFixedInterval RateLimitStrategy = "fixed-interval"
	RateLimitStrategyAPICredit     RateLimitStrategy = "api-credit"
)

// Config holds every setting recognized by the core (spec §6's table),
// loaded once at process start and treated as immutable afterward —
// safe for concurrent reads from every component the Adapter wires up.
type Config struct {
	// Ingress binding and path prefix.
	Mode    Mode   `koanf:"ea_mode"`
	Host    string `koanf:"ea_host"`
	Port    int    `koanf:"ea_port"`
	BaseURL string `koanf:"base_url"`

	MetricsPort int `koanf:"metrics_port"`

	// Cache (component A).
	CacheType           CacheType     `koanf:"cache_type"`
	CacheMaxAge         time.Duration `koanf:"cache_max_age"`
	CacheMaxItems       int           `koanf:"cache_max_items"`
	CachePrefix         string        `koanf:"cache_prefix"`
	CachePollingRetries int           `koanf:"cache_polling_max_retries"`
	CachePollingSleep   time.Duration `koanf:"cache_polling_sleep_ms"`
	CacheLockDuration   time.Duration `koanf:"cache_lock_duration"`
	CacheLockRetries    int           `koanf:"cache_lock_retries"`

	RedisURL string `koanf:"redis_url"`

	// Cache-key / ingress limits.
	MaxCommonKeySize  int `koanf:"max_common_key_size"`
	MaxPayloadSizeLimit int `koanf:"max_payload_size_limit"`

	// RateLimiter (component C).
	RateLimitCapacitySecond float64           `koanf:"rate_limit_capacity_second"`
	RateLimitCapacityMinute float64           `koanf:"rate_limit_capacity_minute"`
	RateLimitCapacityCredit float64           `koanf:"rate_limit_capacity"`
	RateLimitingStrategy    RateLimitStrategy `koanf:"rate_limiting_strategy"`
	MaxHTTPRequestQueueLength int             `koanf:"max_http_request_queue_length"`

	// BackgroundExecutor (component I) per-transport minimum period.
	BackgroundExecuteMsHTTP time.Duration `koanf:"background_execute_ms_http"`
	BackgroundExecuteMsWS   time.Duration `koanf:"background_execute_ms_ws"`
	BackgroundExecuteMsSSE  time.Duration `koanf:"background_execute_ms_sse"`
	BackgroundExecuteTimeout time.Duration `koanf:"background_execute_timeout"`

	// Subscription set TTLs (component B) per transport lifecycle.
	WarmupSubscriptionTTL       time.Duration `koanf:"warmup_subscription_ttl"`
	SubscriptionSetMaxItems     int           `koanf:"subscription_set_max_items"`
	WSSubscriptionTTL           time.Duration `koanf:"ws_subscription_ttl"`
	WSSubscriptionUnresponsiveTTL time.Duration `koanf:"ws_subscription_unresponsive_ttl"`
	WSHeartbeatIntervalMs       time.Duration `koanf:"ws_heartbeat_interval_ms"`
	SSESubscriptionTTL          time.Duration `koanf:"sse_subscription_ttl"`
	SSEKeepaliveSleep           time.Duration `koanf:"sse_keepalive_sleep"`

	// Requester (component D).
	APITimeout time.Duration `koanf:"api_timeout"`

	CorrelationIDEnabled bool `koanf:"correlation_id_enabled"`

	// Observability.
	LogLevel                  string `koanf:"log_level"`
	LogFormat                 string `koanf:"log_format"`
	MetricsEnabled             bool   `koanf:"metrics_enabled"`
	ExperimentalMetricsEnabled bool   `koanf:"experimental_metrics_enabled"`

	// TLS / mTLS (external collaborator — the core only carries the
	// settings through to whatever listener setup consumes them).
	TLSEnabled     bool   `koanf:"tls_enabled"`
	MTLSEnabled    bool   `koanf:"mtls_enabled"`
	TLSPrivateKey  string `koanf:"tls_private_key"`
	TLSPublicKey   string `koanf:"tls_public_key"`
	TLSCA          string `koanf:"tls_ca"`
	TLSPassphrase  string `koanf:"tls_passphrase"`
}

// sensitiveKeys lists the settings IsSensitive reports as needing
// redaction (spec §7: "Sensitive settings matched in messages are redacted
// before logging").
var sensitiveKeys = map[string]bool{
	"tls_private_key": true,
	"tls_passphrase":  true,
	"redis_url":       true,
}

// IsSensitive reports whether a settings key (koanf tag) must be redacted
// wherever settings are logged or echoed back in error messages.
func IsSensitive(key string) bool {
	return sensitiveKeys[key]
}
