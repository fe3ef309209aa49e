// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/adapterframework/eacore/internal/adapter"
	"github.com/adapterframework/eacore/internal/cache"
	"github.com/adapterframework/eacore/internal/cachekey"
	"github.com/adapterframework/eacore/internal/config"
	"github.com/adapterframework/eacore/internal/endpoint"
	"github.com/adapterframework/eacore/internal/oracle"
	"github.com/adapterframework/eacore/internal/ratelimit"
	"github.com/adapterframework/eacore/internal/requester"
	"github.com/adapterframework/eacore/internal/router"
	"github.com/adapterframework/eacore/internal/subscription"
	"github.com/adapterframework/eacore/internal/transport"
)

// priceOracleAdapterName identifies this binary's composition root for
// cache-key and persisted-state namespacing. It is a fixed identity of
// the bundled example, not a core setting, so it is not part of
// config.Config.
const priceOracleAdapterName = "crypto-price-oracle"

const (
	priceEndpointName = "price"
	wsEndpointName    = "crypto-ws"
	lwbaEndpointName  = "crypto-lwba"
)

// buildPriceOracleAdapter wires the three endpoints shipped with this
// binary onto one shared cache, requester, and rate limiter, exercising
// every core component end to end: an HTTP-batch endpoint ("price"), a
// WebSocket push endpoint ("crypto-ws"), and an HTTP-batch endpoint
// producing a bid/mid/ask spread with the LWBA invariant ("crypto-lwba").
func buildPriceOracleAdapter(cfg *config.Config, c cache.Cache, redisClient *redis.Client, logger zerolog.Logger) (*adapter.Adapter, *ratelimit.Limiter, error) {
	endpointNames := []string{priceEndpointName, wsEndpointName, lwbaEndpointName}

	allocations, err := ratelimit.ResolveAllocations(endpointNames, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving rate limit allocations: %w", err)
	}

	limiter := ratelimit.New(ratelimit.Config{
		Strategy:          ratelimit.Strategy(cfg.RateLimitingStrategy),
		CapacityPerSecond: cfg.RateLimitCapacitySecond,
		CapacityPerMinute: cfg.RateLimitCapacityMinute,
		MaxQueueLength:    cfg.MaxHTTPRequestQueueLength,
		Allocations:       allocations,
	})

	httpRequester := requester.New(requester.Config{
		Limiter: limiter,
		Timeout: cfg.APITimeout,
		Client:  &http.Client{Timeout: cfg.APITimeout},
	})

	ck := cachekey.NewGenerator(cfg.MaxCommonKeySize)

	priceEP, err := newPriceEndpoint(cfg, c, redisClient, ck, httpRequester)
	if err != nil {
		return nil, nil, fmt.Errorf("building %s endpoint: %w", priceEndpointName, err)
	}
	wsEP, err := newCryptoWSEndpoint(cfg, c, redisClient, ck)
	if err != nil {
		return nil, nil, fmt.Errorf("building %s endpoint: %w", wsEndpointName, err)
	}
	lwbaEP, err := newLWBAEndpoint(cfg, c, redisClient, ck, httpRequester)
	if err != nil {
		return nil, nil, fmt.Errorf("building %s endpoint: %w", lwbaEndpointName, err)
	}

	a, err := adapter.New(adapter.Config{
		Name:        priceOracleAdapterName,
		CachePrefix: cfg.CachePrefix,
		Endpoints:   []*endpoint.Endpoint{priceEP, wsEP, lwbaEP},
		Cache:       c,
		PollOptions: cache.PollOptions{MaxRetries: cfg.CachePollingRetries, Sleep: cfg.CachePollingSleep},
		Settings:    map[string]interface{}{},
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("building adapter: %w", err)
	}
	return a, limiter, nil
}

func newPriceEndpoint(cfg *config.Config, c cache.Cache, redisClient *redis.Client, ck *cachekey.Generator, req *requester.Requester) (*endpoint.Endpoint, error) {
	rc := newResponseCache(c, ck, cfg, priceEndpointName, router.DefaultSentinel)
	subs := newSubscriptionSet(cfg, redisClient, priceEndpointName, router.DefaultSentinel)

	t := transport.NewHTTPBatch(transport.HTTPBatchConfig{
		Name:            router.DefaultSentinel,
		EndpointName:    priceEndpointName,
		ResponseCache:   rc,
		Subscriptions:   subs,
		Requester:       req,
		WarmupTTL:       cfg.WarmupSubscriptionTTL,
		CacheTTL:        cfg.CacheMaxAge,
		MinPeriod:       cfg.BackgroundExecuteMsHTTP,
		PrepareRequests: pricePrepareRequests(priceProviderURL()),
		ParseResponse:   priceParseResponse(),
	})

	return endpoint.New(endpoint.Config{
		Name:    priceEndpointName,
		Aliases: []string{"crypto-price"},
		InputParameters: []endpoint.InputParameter{
			{Name: "from", Aliases: []string{"base"}, Required: true},
			{Name: "to", Aliases: []string{"quote"}, Required: true},
		},
		RequestTransforms: []endpoint.RequestTransformFunc{stripRoutingKeys},
		Transports:        []router.NamedTransport{{Name: router.DefaultSentinel, Transport: t}},
	}, ck)
}

func newLWBAEndpoint(cfg *config.Config, c cache.Cache, redisClient *redis.Client, ck *cachekey.Generator, req *requester.Requester) (*endpoint.Endpoint, error) {
	rc := newResponseCache(c, ck, cfg, lwbaEndpointName, router.DefaultSentinel)
	subs := newSubscriptionSet(cfg, redisClient, lwbaEndpointName, router.DefaultSentinel)

	t := transport.NewHTTPBatch(transport.HTTPBatchConfig{
		Name:            router.DefaultSentinel,
		EndpointName:    lwbaEndpointName,
		ResponseCache:   rc,
		Subscriptions:   subs,
		Requester:       req,
		WarmupTTL:       cfg.WarmupSubscriptionTTL,
		CacheTTL:        cfg.CacheMaxAge,
		MinPeriod:       cfg.BackgroundExecuteMsHTTP,
		PrepareRequests: lwbaPrepareRequests(priceProviderURL()),
		ParseResponse:   lwbaParseResponse(),
	})

	return endpoint.New(endpoint.Config{
		Name: lwbaEndpointName,
		InputParameters: []endpoint.InputParameter{
			{Name: "from", Aliases: []string{"base"}, Required: true},
			{Name: "to", Aliases: []string{"quote"}, Required: true},
		},
		RequestTransforms: []endpoint.RequestTransformFunc{stripRoutingKeys},
		Transports:        []router.NamedTransport{{Name: router.DefaultSentinel, Transport: t}},
	}, ck)
}

func newCryptoWSEndpoint(cfg *config.Config, c cache.Cache, redisClient *redis.Client, ck *cachekey.Generator) (*endpoint.Endpoint, error) {
	rc := newResponseCache(c, ck, cfg, wsEndpointName, router.DefaultSentinel)
	subs := newSubscriptionSet(cfg, redisClient, wsEndpointName, router.DefaultSentinel)

	t := transport.NewWebSocket(transport.WebSocketConfig{
		Name:              router.DefaultSentinel,
		ResponseCache:     rc,
		Subscriptions:     subs,
		SubscriptionTTL:   cfg.WSSubscriptionTTL,
		UnresponsiveTTL:   cfg.WSSubscriptionUnresponsiveTTL,
		HeartbeatInterval: cfg.WSHeartbeatIntervalMs,
		CacheTTL:          cfg.CacheMaxAge,
		MinPeriod:         cfg.BackgroundExecuteMsWS,
		Handlers: transport.WSHandlers{
			URL:                cryptoWSURL,
			SubscribeMessage:   cryptoWSSubscribeMessage,
			UnsubscribeMessage: cryptoWSUnsubscribeMessage,
			Message:            cryptoWSMessage,
			Open:               cryptoWSOpen,
			Heartbeat:          cryptoWSHeartbeat,
		},
	})

	return endpoint.New(endpoint.Config{
		Name: wsEndpointName,
		InputParameters: []endpoint.InputParameter{
			{Name: "base", Required: true},
			{Name: "quote", Required: true},
		},
		RequestTransforms: []endpoint.RequestTransformFunc{stripRoutingKeys},
		Transports:        []router.NamedTransport{{Name: router.DefaultSentinel, Transport: t}},
	}, ck)
}

// stripRoutingKeys removes the request-level routing fields ("endpoint",
// "transport") from the normalized data before cache-key derivation, so a
// background producer that only knows an endpoint's domain parameters
// (e.g. the WebSocket read loop, which never sees the inbound HTTP body)
// can reconstruct an identical fingerprint.
func stripRoutingKeys(data oracle.InputParams) (oracle.InputParams, error) {
	_, hasEndpoint := data["endpoint"]
	_, hasTransport := data["transport"]
	if !hasEndpoint && !hasTransport {
		return data, nil
	}
	out := make(oracle.InputParams, len(data))
	for k, v := range data {
		if k == "endpoint" || k == "transport" {
			continue
		}
		out[k] = v
	}
	return out, nil
}

func newResponseCache(c cache.Cache, ck *cachekey.Generator, cfg *config.Config, endpointName, transportName string) *transport.ResponseCache {
	return &transport.ResponseCache{
		Cache:        c,
		CachePrefix:  cfg.CachePrefix,
		AdapterName:  priceOracleAdapterName,
		EndpointName: endpointName,
		Transport:    transportName,
		KeyGen:       ck,
	}
}

func newSubscriptionSet(cfg *config.Config, redisClient *redis.Client, endpointName, transportName string) subscription.Set {
	if cfg.CacheType == config.CacheTypeRedis {
		name := fmt.Sprintf("%s-%s-%s-subscriptionSet", priceOracleAdapterName, endpointName, transportName)
		return subscription.NewRemote(redisClient, name)
	}
	return subscription.NewLocal(cfg.SubscriptionSetMaxItems)
}

// priceProviderURL is the upstream REST data provider base URL. Overridable
// for pointing the example at a sandbox or mock provider in tests.
func priceProviderURL() string {
	if v := os.Getenv("PRICE_PROVIDER_URL"); v != "" {
		return v
	}
	return "https://price-oracle.internal.example/v1"
}

// priceProviderWSURL is the upstream streaming data provider endpoint.
func priceProviderWSURL() string {
	if v := os.Getenv("PRICE_PROVIDER_WS_URL"); v != "" {
		return v
	}
	return "wss://price-oracle.internal.example/v1/stream"
}

// pairFromParams builds the provider-facing "FROM-TO" pair symbol from two
// string input params, used as both the provider query key and the
// cross-batch/cross-message correlation key.
func pairFromParams(p oracle.InputParams, fromKey, toKey string) (string, error) {
	from, ok := stringParam(p, fromKey)
	if !ok {
		return "", fmt.Errorf("missing %q parameter", fromKey)
	}
	to, ok := stringParam(p, toKey)
	if !ok {
		return "", fmt.Errorf("missing %q parameter", toKey)
	}
	return strings.ToUpper(from) + "-" + strings.ToUpper(to), nil
}

func stringParam(p oracle.InputParams, key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// batchByPairs groups subscribed params by their unique "FROM-TO" pair and
// issues a single GET against path with the distinct pairs as a query
// param, shared by the "price" and "crypto-lwba" endpoints.
func batchByPairs(providerURL, path string, params []oracle.InputParams, fromKey, toKey string) ([]transport.BatchGroup, error) {
	if len(params) == 0 {
		return nil, nil
	}

	pairSet := make(map[string]bool, len(params))
	for _, p := range params {
		pair, err := pairFromParams(p, fromKey, toKey)
		if err != nil {
			continue
		}
		pairSet[pair] = true
	}
	if len(pairSet) == 0 {
		return nil, nil
	}

	pairs := make([]string, 0, len(pairSet))
	for p := range pairSet {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	joined := strings.Join(pairs, ",")

	group := transport.BatchGroup{
		Params:      params,
		CoalesceKey: path + ":" + joined,
		Cost:        1,
		Build: func() (*http.Request, error) {
			return http.NewRequest(http.MethodGet, providerURL+path+"?pairs="+url.QueryEscape(joined), nil)
		},
	}
	return []transport.BatchGroup{group}, nil
}

func pricePrepareRequests(providerURL string) transport.PrepareRequestsFunc {
	return func(params []oracle.InputParams, _ map[string]interface{}) ([]transport.BatchGroup, error) {
		return batchByPairs(providerURL, "/prices", params, "from", "to")
	}
}

func lwbaPrepareRequests(providerURL string) transport.PrepareRequestsFunc {
	return func(params []oracle.InputParams, _ map[string]interface{}) ([]transport.BatchGroup, error) {
		return batchByPairs(providerURL, "/lwba", params, "from", "to")
	}
}

type priceQuote struct {
	Pair  string  `json:"pair"`
	Price float64 `json:"price"`
}

type priceProviderResponse struct {
	Prices []priceQuote `json:"prices"`
}

func priceParseResponse() transport.ParseResponseFunc {
	return func(params []oracle.InputParams, resp *requester.Response) ([]transport.BatchResult, error) {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("price provider returned status %d", resp.StatusCode)
		}
		var body priceProviderResponse
		if err := json.Unmarshal(resp.Body, &body); err != nil {
			return nil, fmt.Errorf("decoding price provider response: %w", err)
		}

		byPair := make(map[string]float64, len(body.Prices))
		for _, q := range body.Prices {
			byPair[strings.ToUpper(q.Pair)] = q.Price
		}

		results := make([]transport.BatchResult, 0, len(params))
		for _, p := range params {
			pair, err := pairFromParams(p, "from", "to")
			if err != nil {
				continue
			}
			price, ok := byPair[pair]
			if !ok {
				continue
			}
			results = append(results, transport.BatchResult{
				Params: p,
				Result: price,
				Data:   map[string]interface{}{"result": price},
			})
		}
		return results, nil
	}
}

type lwbaQuote struct {
	Pair string  `json:"pair"`
	Bid  float64 `json:"bid"`
	Mid  float64 `json:"mid"`
	Ask  float64 `json:"ask"`
}

type lwbaProviderResponse struct {
	Prices []lwbaQuote `json:"prices"`
}

// lwbaResult is the liquidity-weighted bid/mid/ask spread returned as a
// endpoint result, honoring the invariant bid <= mid <= ask.
type lwbaResult struct {
	Bid float64 `json:"bid"`
	Mid float64 `json:"mid"`
	Ask float64 `json:"ask"`
}

func lwbaParseResponse() transport.ParseResponseFunc {
	return func(params []oracle.InputParams, resp *requester.Response) ([]transport.BatchResult, error) {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("lwba provider returned status %d", resp.StatusCode)
		}
		var body lwbaProviderResponse
		if err := json.Unmarshal(resp.Body, &body); err != nil {
			return nil, fmt.Errorf("decoding lwba provider response: %w", err)
		}

		byPair := make(map[string]lwbaResult, len(body.Prices))
		for _, q := range body.Prices {
			if !(q.Bid <= q.Mid && q.Mid <= q.Ask) {
				return nil, fmt.Errorf("lwba invariant violated for pair %q: bid=%v mid=%v ask=%v", q.Pair, q.Bid, q.Mid, q.Ask)
			}
			byPair[strings.ToUpper(q.Pair)] = lwbaResult{Bid: q.Bid, Mid: q.Mid, Ask: q.Ask}
		}

		results := make([]transport.BatchResult, 0, len(params))
		for _, p := range params {
			pair, err := pairFromParams(p, "from", "to")
			if err != nil {
				continue
			}
			r, ok := byPair[pair]
			if !ok {
				continue
			}
			results = append(results, transport.BatchResult{
				Params: p,
				Result: r,
				Data:   map[string]interface{}{"result": r},
			})
		}
		return results, nil
	}
}

func cryptoWSURL(_ context.Context, _ []oracle.InputParams) (string, error) {
	return priceProviderWSURL(), nil
}

func cryptoWSSubscribeMessage(params oracle.InputParams) (interface{}, error) {
	pair, err := pairFromParams(params, "base", "quote")
	if err != nil {
		return nil, err
	}
	return map[string]string{"type": "subscribe", "pair": pair}, nil
}

func cryptoWSUnsubscribeMessage(params oracle.InputParams) (interface{}, error) {
	pair, err := pairFromParams(params, "base", "quote")
	if err != nil {
		return nil, err
	}
	return map[string]string{"type": "unsubscribe", "pair": pair}, nil
}

type cryptoWSTick struct {
	Pair  string  `json:"pair"`
	Value float64 `json:"value"`
}

func cryptoWSMessage(raw []byte) ([]transport.BatchResult, error) {
	var tick cryptoWSTick
	if err := json.Unmarshal(raw, &tick); err != nil {
		return nil, fmt.Errorf("decoding crypto-ws message: %w", err)
	}
	parts := strings.SplitN(tick.Pair, "-", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("crypto-ws: malformed pair %q", tick.Pair)
	}

	params := oracle.InputParams{"base": parts[0], "quote": parts[1]}
	return []transport.BatchResult{{
		Params: params,
		Result: tick.Value,
		Data:   map[string]interface{}{"result": tick.Value},
	}}, nil
}

func cryptoWSOpen(_ *websocket.Conn) error {
	return nil
}

func cryptoWSHeartbeat(conn *websocket.Conn) error {
	return conn.WriteMessage(websocket.PingMessage, nil)
}
