// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport implements component E: the transport contract and
// its three built-in shapes (HTTP batching, WebSocket, SSE). Each
// transport owns a ResponseCache handle scoped to (adapter, endpoint,
// transport), its own SubscriptionSet, and — for the streaming
// transports — its own connection.
package transport

import (
	"context"
	"time"

	"github.com/adapterframework/eacore/internal/cache"
	"github.com/adapterframework/eacore/internal/cachekey"
	"github.com/adapterframework/eacore/internal/oracle"
)

// Request is the inbound request shape a transport acts on: the
// normalized input params plus the fingerprint already derived by the
// endpoint (internal/cachekey) before dispatch reached the transport.
type Request struct {
	Data     oracle.InputParams
	CacheKey string
}

// Transport is the base contract every transport satisfies. The optional
// capabilities (RegisterRequest / ForegroundExecute / BackgroundExecute)
// are expressed as separate interfaces so the adapter and background
// executor can type-assert for them, mirroring the spec's "?" markers on
// each hook (§4.E).
type Transport interface {
	Name() string
}

// RequestRegisterer adds an inbound request's params to the transport's
// subscription set so background execute keeps it fresh.
type RequestRegisterer interface {
	RegisterRequest(ctx context.Context, req Request) error
}

// ForegroundExecutor synchronously produces a response without waiting on
// the background loop. A nil envelope and nil error means "fall through
// to background polling" (spec §9 Open Question decision).
type ForegroundExecutor interface {
	ForegroundExecute(ctx context.Context, req Request) (*oracle.Envelope, error)
}

// BackgroundExecutor is invoked repeatedly by component I's scheduler,
// subject to the transport's minimum period.
type BackgroundExecutor interface {
	BackgroundExecute(ctx context.Context) error
}

// MinPeriod exposes a transport's configured minimum background-execute
// interval (BACKGROUND_EXECUTE_MS_HTTP|WS|SSE) to the scheduler.
type MinPeriod interface {
	MinPeriod() time.Duration
}

// ResponseCache is the cache wrapper every transport writes through,
// scoped to (adapterName, endpointName, transportName) so transports
// never need to know the shared Cache's global key layout.
type ResponseCache struct {
	Cache        cache.Cache
	CachePrefix  string // CACHE_PREFIX; combined with AdapterName/EndpointName/Transport into the spec §6 storage key
	AdapterName  string
	EndpointName string
	Transport    string
	KeyGen       *cachekey.Generator
	Settings     map[string]interface{}
}

// DeriveKey computes the full persisted-state key for data: the request
// fingerprint (internal/cachekey.Generator.Derive) wrapped in the spec §6
// storage layout. internal/adapter derives the identical key for the same
// (adapter, endpoint, transport, data) tuple via cachekey.StorageKey, so
// a background-filled entry is always found by the read path.
func (rc *ResponseCache) DeriveKey(data oracle.InputParams) string {
	fingerprint := rc.KeyGen.Derive(rc.AdapterName, rc.EndpointName, rc.Transport, cachekey.InputParams(data), rc.Settings)
	return cachekey.StorageKey(rc.CachePrefix, rc.AdapterName, rc.EndpointName, rc.Transport, fingerprint)
}

func (rc *ResponseCache) Get(ctx context.Context, cacheKey string) (*cache.Entry, bool, error) {
	return rc.Cache.Get(ctx, cacheKey)
}

func (rc *ResponseCache) Set(ctx context.Context, cacheKey string, envelope *oracle.Envelope, ttl time.Duration) error {
	return rc.Cache.Set(ctx, cacheKey, envelope, ttl)
}

func (rc *ResponseCache) PollForKey(ctx context.Context, cacheKey string, opts cache.PollOptions) (*cache.Entry, bool, error) {
	return rc.Cache.PollForKey(ctx, cacheKey, opts)
}
