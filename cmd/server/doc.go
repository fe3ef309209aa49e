// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package main is the entry point for the crypto-price-oracle example
adapter: a runnable binary demonstrating the EA core against three
endpoints backed by a fictitious crypto market data provider.

# Endpoints

  - "price" (alias "crypto-price"): HTTP-batch, input {from, to}, returns
    the spot price for the pair.
  - "crypto-ws": WebSocket push, input {base, quote}, returns the latest
    pushed value for the pair.
  - "crypto-lwba": HTTP-batch, input {from, to}, returns a {bid, mid, ask}
    spread honoring the invariant bid <= mid <= ask; a provider response
    violating it surfaces as an upstream fault.

See cmd/server/adapter.go for the endpoint wiring and provider contracts.

# Startup Sequence

The process initializes in this order:

 1. Configuration: config.Load() layers built-in defaults, an optional
    YAML file, and environment variables (highest priority) via Koanf v2.
 2. Logging: zerolog initialized per LOG_LEVEL/LOG_FORMAT.
 3. Cache (component A): a local LRU or Redis cache per CACHE_TYPE.
 4. Adapter (component H): the three endpoints above, each wired to its
    transport, a shared rate limiter (component C), and a shared
    requester (component D).
 5. Supervisor tree: a three-layer suture.Supervisor tree supervising the
    writer-lock service (data layer, CACHE_TYPE=redis only), the
    BackgroundExecutor (messaging layer, component I, writer|reader-writer
    modes), and the HTTP ingress server (api layer, component J,
    reader|reader-writer modes).
 6. Metrics: a Prometheus /metrics endpoint on METRICS_PORT, when
    METRICS_ENABLED.

# Configuration

Every setting is described in internal/config.Config; see spec §6 for the
full table. Common ones:

	EA_MODE       reader | writer | reader-writer
	EA_HOST       bind host (default 0.0.0.0)
	EA_PORT       bind port (default 8080)
	BASE_URL      ingress path prefix (default "/"; must not be empty)
	CACHE_TYPE    local | redis
	REDIS_URL     required when CACHE_TYPE=redis

# Graceful Shutdown

SIGINT and SIGTERM cancel the root context, which suture propagates to
every supervised service: the HTTP server stops accepting new connections
and drains in-flight requests, the BackgroundExecutor finishes its current
invocation and exits, and the writer lease (if held) is released.
*/
package main
