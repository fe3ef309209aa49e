// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where an optional config file is
// searched, in priority order. The first one found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/eacore/config.yaml",
	"/etc/eacore/config.yml",
}

// ConfigPathEnvVar overrides the search list with a single explicit path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns every setting's documented default from spec §6.
func defaultConfig() *Config {
	return &Config{
		Mode:    ModeReaderWriter,
		Host:    "0.0.0.0",
		Port:    8080,
		BaseURL: "/",

		MetricsPort: 9080,

		CacheType:           CacheTypeLocal,
		CacheMaxAge:         30 * time.Second,
		CacheMaxItems:       10000,
		CachePrefix:         "",
		CachePollingRetries: 30,
		CachePollingSleep:   time.Second,
		CacheLockDuration:   30 * time.Second,
		CacheLockRetries:    10,

		RedisURL: "",

		MaxCommonKeySize:    1700,
		MaxPayloadSizeLimit: 1024 * 1024,

		RateLimitCapacitySecond:   0,
		RateLimitCapacityMinute:   60,
		RateLimitCapacityCredit:   0,
		RateLimitingStrategy:      RateLimitStrategyBurst,
		MaxHTTPRequestQueueLength: 100,

		BackgroundExecuteMsHTTP:  time.Second,
		BackgroundExecuteMsWS:    time.Second,
		BackgroundExecuteMsSSE:   time.Second,
		BackgroundExecuteTimeout: 180 * time.Second,

		WarmupSubscriptionTTL:         30 * time.Second,
		SubscriptionSetMaxItems:       10000,
		WSSubscriptionTTL:             120 * time.Second,
		WSSubscriptionUnresponsiveTTL: 120 * time.Second,
		WSHeartbeatIntervalMs:         15 * time.Second,
		SSESubscriptionTTL:            120 * time.Second,
		SSEKeepaliveSleep:             60 * time.Second,

		APITimeout: 30 * time.Second,

		CorrelationIDEnabled: true,

		LogLevel:                   "info",
		LogFormat:                  "json",
		MetricsEnabled:             true,
		ExperimentalMetricsEnabled: false,

		TLSEnabled:  false,
		MTLSEnabled: false,
	}
}

// Load builds a Config from defaults, an optional YAML file, then
// environment variables (highest priority), and validates the result.
// Settings are flat (no dotted namespacing): every env var maps 1:1 onto
// a lowercased koanf tag, e.g. CACHE_MAX_AGE -> "cache_max_age".
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first readable path among CONFIG_PATH (if
// set) and DefaultConfigPaths, or "" if none exist.
func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
