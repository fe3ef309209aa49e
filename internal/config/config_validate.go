// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "fmt"

// Validate enforces the testable properties spec §8 ties to configuration:
// property 6 (CACHE_TYPE=local requires EA_MODE=reader-writer) and the
// enum/range checks every setting needs before any component reads it.
func (c *Config) Validate() error {
	if err := c.validateMode(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	if err := c.validateTLS(); err != nil {
		return err
	}
	return c.validateServer()
}

func (c *Config) validateMode() error {
	switch c.Mode {
	case ModeReader, ModeWriter, ModeReaderWriter:
	default:
		return fmt.Errorf("EA_MODE must be one of reader|writer|reader-writer, got %q", c.Mode)
	}
	return nil
}

// validateCache enforces spec §8 property 6: a local cache has no shared
// backing store, so a reader-only process would never see entries a
// separate writer process fills, and a writer-only process would serve
// nothing. Only reader-writer may pair with CACHE_TYPE=local.
func (c *Config) validateCache() error {
	switch c.CacheType {
	case CacheTypeLocal:
		if c.Mode != ModeReaderWriter {
			return fmt.Errorf("CACHE_TYPE=local requires EA_MODE=reader-writer, got %q", c.Mode)
		}
	case CacheTypeRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when CACHE_TYPE=redis")
		}
	default:
		return fmt.Errorf("CACHE_TYPE must be local|redis, got %q", c.CacheType)
	}
	if c.CacheMaxItems <= 0 {
		return fmt.Errorf("CACHE_MAX_ITEMS must be positive, got %d", c.CacheMaxItems)
	}
	if c.MaxCommonKeySize <= 0 {
		return fmt.Errorf("MAX_COMMON_KEY_SIZE must be positive, got %d", c.MaxCommonKeySize)
	}
	if c.CachePollingRetries <= 0 {
		return fmt.Errorf("CACHE_POLLING_MAX_RETRIES must be positive, got %d", c.CachePollingRetries)
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	switch c.RateLimitingStrategy {
	case RateLimitStrategyBurst, RateLimitStrategyFixedInterval, RateLimitStrategyAPICredit:
	default:
		return fmt.Errorf("RATE_LIMITING_STRATEGY must be burst|fixed-interval|api-credit, got %q", c.RateLimitingStrategy)
	}
	if c.RateLimitCapacitySecond <= 0 && c.RateLimitCapacityMinute <= 0 {
		return fmt.Errorf("one of RATE_LIMIT_CAPACITY_SECOND or RATE_LIMIT_CAPACITY_MINUTE must be positive")
	}
	if c.MaxHTTPRequestQueueLength < 0 {
		return fmt.Errorf("MAX_HTTP_REQUEST_QUEUE_LENGTH must not be negative, got %d", c.MaxHTTPRequestQueueLength)
	}
	return nil
}

func (c *Config) validateTLS() error {
	if c.MTLSEnabled && !c.TLSEnabled {
		return fmt.Errorf("MTLS_ENABLED requires TLS_ENABLED=true")
	}
	if c.TLSEnabled && (c.TLSPrivateKey == "" || c.TLSPublicKey == "") {
		return fmt.Errorf("TLS_ENABLED=true requires TLS_PRIVATE_KEY and TLS_PUBLIC_KEY")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("EA_PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("BASE_URL must not be empty")
	}
	return nil
}
