// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/adapterframework/eacore/internal/adapter"
	"github.com/adapterframework/eacore/internal/cache"
	"github.com/adapterframework/eacore/internal/config"
	"github.com/adapterframework/eacore/internal/httpapi"
	"github.com/adapterframework/eacore/internal/logging"
	"github.com/adapterframework/eacore/internal/middleware"
	"github.com/adapterframework/eacore/internal/supervisor"
)

// version is stamped by the release pipeline; left as a placeholder in
// source builds.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger := logging.Logger().With().Str("adapter", priceOracleAdapterName).Logger()

	c, redisClient, err := buildCache(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("building cache")
	}
	defer c.Close()

	a, _, err := buildPriceOracleAdapter(cfg, c, redisClient, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("building adapter")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logger.Fatal().Err(err).Msg("building supervisor tree")
	}

	runsBackground := cfg.Mode == config.ModeWriter || cfg.Mode == config.ModeReaderWriter
	runsIngress := cfg.Mode == config.ModeReader || cfg.Mode == config.ModeReaderWriter

	if cfg.CacheType == config.CacheTypeRedis {
		locker, ok := c.(cache.Locker)
		if !ok {
			logger.Fatal().Msg("CACHE_TYPE=redis cache does not implement cache.Locker")
		}
		lockName := fmt.Sprintf("%s-%s-writer-lock", cfg.CachePrefix, priceOracleAdapterName)
		tree.AddDataService(supervisor.NewLockService(supervisor.LockServiceConfig{
			Locker:  locker,
			Name:    lockName,
			TTL:     cfg.CacheLockDuration,
			Retries: cfg.CacheLockRetries,
			Logger:  logger,
		}))
	}

	if runsBackground {
		bg := adapter.NewBackgroundExecutor(adapter.BackgroundExecutorConfig{
			Adapter: a,
			Timeout: cfg.BackgroundExecuteTimeout,
			Logger:  logger,
		})
		tree.AddMessagingService(bg)
	}

	if runsIngress {
		router := httpapi.NewRouter(httpapi.Config{
			Adapter:             a,
			BaseURL:             cfg.BaseURL,
			Version:             version,
			MaxPayloadSizeLimit: int64(cfg.MaxPayloadSizeLimit),
		})

		mw := httpapi.NewChiMiddleware(httpapi.DefaultChiMiddlewareConfig())
		handler := httpapi.RequestIDWithLogging()(
			httpapi.APISecurityHeaders()(
				mw.CORS()(
					mw.RateLimitByIP()(
						httpapi.E2EDebugLogging()(
							gzipMiddleware(router),
						),
					),
				),
			),
		)

		addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
		tree.AddAPIService(httpapi.NewServer(addr, handler, 10*time.Second))
		logger.Info().Str("addr", addr).Str("base_url", cfg.BaseURL).Msg("ingress configured")
	}

	if cfg.MetricsEnabled {
		go serveMetrics(cfg, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("cache_type", string(cfg.CacheType)).
		Msg("starting")

	if err := tree.Serve(ctx); err != nil {
		logger.Error().Err(err).Msg("supervisor tree stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("shutdown complete")
}

// gzipMiddleware adapts internal/middleware's net/http-style Compression
// middleware to the chi http.Handler chain used for the ingress stack.
func gzipMiddleware(next http.Handler) http.Handler {
	return middleware.Compression(next.ServeHTTP)
}

// buildCache constructs component A per CACHE_TYPE, returning the redis
// client too (nil for local) so callers that need a raw client for
// subscription sets can reuse the same connection.
func buildCache(cfg *config.Config) (cache.Cache, *redis.Client, error) {
	switch cfg.CacheType {
	case config.CacheTypeRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		return cache.NewRemote(client, cfg.CachePrefix), client, nil
	default:
		return cache.NewLocal(cfg.CacheMaxItems), nil, nil
	}
}

func serveMetrics(cfg *config.Config, logger zerolog.Logger) {
	addr := fmt.Sprintf(":%d", cfg.MetricsPort)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info().Str("addr", addr).Msg("metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}
