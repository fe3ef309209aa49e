// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package adapter implements component H (the composition root and
// handleRequest algorithm) and, in background.go, component I (the
// single-loop background executor). It is the only package that wires
// cache, endpoint, router, and transport together into one request
// lifecycle.
package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/adapterframework/eacore/internal/cache"
	"github.com/adapterframework/eacore/internal/cachekey"
	"github.com/adapterframework/eacore/internal/endpoint"
	"github.com/adapterframework/eacore/internal/metrics"
	"github.com/adapterframework/eacore/internal/oracle"
	"github.com/adapterframework/eacore/internal/transport"
)

// Config builds an Adapter.
type Config struct {
	Name        string // ADAPTER_NAME, used in cache-key derivation
	CachePrefix string // CACHE_PREFIX; must match the prefix every transport's ResponseCache was built with
	Endpoints   []*endpoint.Endpoint
	Cache       cache.Cache
	PollOptions cache.PollOptions // CACHE_POLLING_MAX_RETRIES / CACHE_POLLING_SLEEP_MS
	Settings    map[string]interface{}
	Logger      zerolog.Logger
}

// Adapter is the composition root: the fixed set of endpoints (and their
// transports) an instance of this binary serves, plus the shared Cache
// every transport and handleRequest call reads and writes through.
type Adapter struct {
	name         string
	cachePrefix  string
	endpoints    []*endpoint.Endpoint
	endpointsMap map[string]*endpoint.Endpoint
	cache        cache.Cache
	pollOptions  cache.PollOptions
	settings     map[string]interface{}
	logger       zerolog.Logger
}

// New builds an Adapter. endpointsMap is built from each endpoint's name
// and aliases; a name or alias claimed by more than one endpoint is a
// fatal construction error (spec §3).
func New(cfg Config) (*Adapter, error) {
	if cfg.Name == "" {
		return nil, oracle.Invariant("adapter name must not be empty")
	}
	if cfg.Cache == nil {
		return nil, oracle.Invariant("adapter requires a cache")
	}

	endpointsMap := make(map[string]*endpoint.Endpoint, len(cfg.Endpoints)*2)
	for _, ep := range cfg.Endpoints {
		keys := append([]string{ep.Name()}, ep.Aliases()...)
		for _, k := range keys {
			if existing, ok := endpointsMap[k]; ok {
				return nil, oracle.Invariant(fmt.Sprintf(
					"endpoint name/alias %q claimed by both %q and %q", k, existing.Name(), ep.Name()))
			}
			endpointsMap[k] = ep
		}
	}

	return &Adapter{
		name:         cfg.Name,
		cachePrefix:  cfg.CachePrefix,
		endpoints:    cfg.Endpoints,
		endpointsMap: endpointsMap,
		cache:        cfg.Cache,
		pollOptions:  cfg.PollOptions,
		settings:     cfg.Settings,
		logger:       cfg.Logger,
	}, nil
}

// Name returns the adapter's configured name.
func (a *Adapter) Name() string { return a.name }

// Endpoints returns every endpoint this adapter serves, in construction
// order, for use by the BackgroundExecutor and diagnostics.
func (a *Adapter) Endpoints() []*endpoint.Endpoint { return a.endpoints }

// resolveEndpoint looks an inbound endpoint name (or alias) up, lowercased.
func (a *Adapter) resolveEndpoint(name string) (*endpoint.Endpoint, error) {
	ep, ok := a.endpointsMap[strings.ToLower(name)]
	if !ok {
		return nil, oracle.NotFound(fmt.Sprintf("unknown endpoint %q", name))
	}
	return ep, nil
}

// HandleRequest implements spec §4.H end to end, from a raw inbound
// {endpoint?, transport?, ...inputs} body through to a wire envelope.
// endpointName defaults to the adapter's sole endpoint when the request
// omits one and the adapter serves exactly one.
func (a *Adapter) HandleRequest(ctx context.Context, endpointName string, data oracle.InputParams) (*oracle.Envelope, error) {
	if endpointName == "" {
		endpointName = a.implicitEndpointName()
	}
	ep, err := a.resolveEndpoint(endpointName)
	if err != nil {
		return nil, err
	}

	prepared, err := ep.Prepare(a.name, data, a.settings)
	if err != nil {
		return nil, err
	}

	t, err := ep.Router().Route(prepared, a.settings)
	if err != nil {
		return nil, err
	}

	fingerprint := ep.CacheKey(a.name, t.Name(), prepared, a.settings)
	cacheKey := cachekey.StorageKey(a.cachePrefix, a.name, ep.Name(), t.Name(), fingerprint)
	req := transport.Request{Data: prepared, CacheKey: cacheKey}

	return a.dispatch(ctx, ep.Name(), t, req)
}

// dispatch runs steps 2-7 of spec §4.H against an already-routed request.
func (a *Adapter) dispatch(ctx context.Context, endpointName string, t transport.Transport, req transport.Request) (*oracle.Envelope, error) {
	entry, hit, err := a.cache.Get(ctx, req.CacheKey)
	if err != nil {
		return nil, oracle.Internal("cache read failed", err)
	}
	if hit {
		metrics.RecordCacheHit(endpointName)
	} else {
		metrics.RecordCacheMiss(endpointName)
	}

	// replySent is closed the moment this function has a cached answer to
	// hand back, so a registerRequest fired concurrently can defer its
	// subscription-set write until after the client already has its reply
	// (spec §4.H step 3, §5 ordering guarantee).
	replySent := make(chan struct{})
	var registrationDone chan error

	if registerer, ok := t.(transport.RequestRegisterer); ok {
		registrationDone = make(chan error, 1)
		// Registration must survive the inbound request's own
		// cancellation (a client disconnect must not drop the
		// subscription-set write), so it runs under its own context.
		regCtx := context.Background()
		go func() {
			if hit {
				<-replySent
			}
			registrationDone <- registerer.RegisterRequest(regCtx, req)
		}()
	}

	if hit {
		close(replySent)
		return entry.Envelope, nil
	}

	if fg, ok := t.(transport.ForegroundExecutor); ok {
		envelope, err := fg.ForegroundExecute(ctx, req)
		if err != nil {
			close(replySent)
			return nil, err
		}
		if envelope != nil {
			close(replySent)
			return envelope, nil
		}
	}
	close(replySent)

	if registrationDone != nil {
		if regErr := <-registrationDone; regErr != nil {
			return nil, oracle.AsFault(regErr)
		}
	}

	found, ok, err := a.cache.PollForKey(ctx, req.CacheKey, a.pollOptions)
	if err != nil {
		return nil, oracle.Internal("cache poll failed", err)
	}
	if ok {
		return found.Envelope, nil
	}
	return nil, oracle.Timeout(fmt.Sprintf("no response for %q within polling window", endpointName))
}

// implicitEndpointName returns the sole endpoint's name when exactly one
// is configured, so single-endpoint adapters need not echo "endpoint" in
// every request body. Ambiguous (zero or multiple endpoints, none named)
// resolves to "" and fails NotFound in resolveEndpoint.
func (a *Adapter) implicitEndpointName() string {
	if len(a.endpoints) == 1 {
		return a.endpoints[0].Name()
	}
	return ""
}

// CacheWaitBudget is the worst-case time an inbound request can spend
// waiting on the cache before Timeout fires: CACHE_POLLING_MAX_RETRIES
// iterations spaced CACHE_POLLING_SLEEP_MS apart (spec §5).
func (a *Adapter) CacheWaitBudget() time.Duration {
	if a.pollOptions.MaxRetries <= 0 {
		return 0
	}
	return time.Duration(a.pollOptions.MaxRetries) * a.pollOptions.Sleep
}
