// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/adapterframework/eacore/internal/oracle"
	"github.com/adapterframework/eacore/internal/requester"
	"github.com/adapterframework/eacore/internal/subscription"
)

// BatchGroup is one user-prepared outbound DP call: a subset of the
// subscribed params batched together, plus the HTTP request and the
// coalesce key to request it under (spec §4.E.1).
type BatchGroup struct {
	Params      []oracle.InputParams
	CoalesceKey string
	Cost        float64
	Build       func() (*http.Request, error)
}

// BatchResult is one parsed DP answer, keyed back to the params it
// answers so the caller can derive its cache key.
type BatchResult struct {
	Params oracle.InputParams
	Result interface{}
	Data   map[string]interface{}
}

// PrepareRequestsFunc is the user-supplied prepareRequests callback.
type PrepareRequestsFunc func(params []oracle.InputParams, settings map[string]interface{}) ([]BatchGroup, error)

// ParseResponseFunc is the user-supplied parseResponse callback.
type ParseResponseFunc func(params []oracle.InputParams, resp *requester.Response) ([]BatchResult, error)

// HTTPBatch is the HTTP-batching transport (spec §4.E.1).
type HTTPBatch struct {
	name          string
	responseCache *ResponseCache
	subscriptions subscription.Set
	requester     *requester.Requester
	endpointName  string

	warmupTTL time.Duration
	cacheTTL  time.Duration
	minPeriod time.Duration

	prepareRequests PrepareRequestsFunc
	parseResponse   ParseResponseFunc
	settings        map[string]interface{}
}

// HTTPBatchConfig configures an HTTPBatch transport instance.
type HTTPBatchConfig struct {
	Name            string
	EndpointName    string
	ResponseCache   *ResponseCache
	Subscriptions   subscription.Set
	Requester       *requester.Requester
	WarmupTTL       time.Duration // WARMUP_SUBSCRIPTION_TTL
	CacheTTL        time.Duration // CACHE_MAX_AGE
	MinPeriod       time.Duration // BACKGROUND_EXECUTE_MS_HTTP
	PrepareRequests PrepareRequestsFunc
	ParseResponse   ParseResponseFunc
	Settings        map[string]interface{}
}

func NewHTTPBatch(cfg HTTPBatchConfig) *HTTPBatch {
	return &HTTPBatch{
		name:            cfg.Name,
		responseCache:   cfg.ResponseCache,
		subscriptions:   cfg.Subscriptions,
		requester:       cfg.Requester,
		endpointName:    cfg.EndpointName,
		warmupTTL:       cfg.WarmupTTL,
		cacheTTL:        cfg.CacheTTL,
		minPeriod:       cfg.MinPeriod,
		prepareRequests: cfg.PrepareRequests,
		parseResponse:   cfg.ParseResponse,
		settings:        cfg.Settings,
	}
}

func (h *HTTPBatch) Name() string            { return h.name }
func (h *HTTPBatch) MinPeriod() time.Duration { return h.minPeriod }

// RegisterRequest adds the request's params to the subscription set with
// WARMUP_SUBSCRIPTION_TTL, keyed by the already-derived cache key so
// duplicate requests for the same fingerprint collapse into one entry.
func (h *HTTPBatch) RegisterRequest(ctx context.Context, req Request) error {
	return h.subscriptions.Add(ctx, req.CacheKey, req.Data, h.warmupTTL)
}

// BackgroundExecute reads all subscribed params, batches them via the
// user's prepareRequests, issues each batch through the Requester, and
// writes each parsed result (or a cached error envelope on DP failure)
// back to the cache with CACHE_MAX_AGE.
func (h *HTTPBatch) BackgroundExecute(ctx context.Context) error {
	entries, err := h.subscriptions.GetAll(ctx)
	if err != nil {
		return oracle.Internal("failed to read subscription set", err)
	}
	if len(entries) == 0 {
		return nil
	}

	params := make([]oracle.InputParams, len(entries))
	for i, e := range entries {
		params[i] = e.Value
	}

	groups, err := h.prepareRequests(params, h.settings)
	if err != nil {
		return oracle.Internal("prepareRequests failed", err)
	}

	var firstErr error
	for _, group := range groups {
		resp, reqErr := h.requester.Request(ctx, h.endpointName, group.CoalesceKey, group.Cost, group.Build)
		if reqErr != nil {
			h.cacheProviderFailure(ctx, group.Params, reqErr)
			if firstErr == nil {
				firstErr = reqErr
			}
			continue
		}

		results, parseErr := h.parseResponse(group.Params, resp)
		if parseErr != nil {
			h.cacheProviderFailure(ctx, group.Params, oracle.Upstream("failed to parse provider response", parseErr))
			if firstErr == nil {
				firstErr = parseErr
			}
			continue
		}

		now := oracle.NowUnixMs()
		ts := oracle.Timestamps{ProviderDataRequestedUnixMs: now, ProviderDataReceivedUnixMs: now}
		for _, result := range results {
			key := h.responseCache.DeriveKey(result.Params)
			envelope := oracle.NewSuccessEnvelope(result.Result, result.Data, ts)
			if setErr := h.responseCache.Set(ctx, key, envelope, h.cacheTTL); setErr != nil && firstErr == nil {
				firstErr = setErr
			}
		}
	}
	return firstErr
}

// cacheProviderFailure writes a deterministic 502 error envelope for
// every param in the failed batch so subsequent requests fail fast
// instead of timing out (spec §4.E.1).
func (h *HTTPBatch) cacheProviderFailure(ctx context.Context, params []oracle.InputParams, err error) {
	fault := oracle.AsFault(err)
	if fault.Kind != oracle.KindUpstream {
		fault = oracle.Upstream(fault.Message, err)
	}
	envelope := oracle.NewErrorEnvelope(fault)
	for _, p := range params {
		key := h.responseCache.DeriveKey(p)
		_ = h.responseCache.Set(ctx, key, envelope, h.cacheTTL)
	}
}

var (
	_ Transport           = (*HTTPBatch)(nil)
	_ RequestRegisterer   = (*HTTPBatch)(nil)
	_ BackgroundExecutor  = (*HTTPBatch)(nil)
	_ MinPeriod           = (*HTTPBatch)(nil)
)
