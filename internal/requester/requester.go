// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package requester implements component D: the central HTTP client that
// serializes DP access through rate-limiter admission, coalesces
// concurrent identical requests via golang.org/x/sync/singleflight, and
// wraps each call in a circuit breaker (sony/gobreaker/v2) so a DP outage
// fails fast instead of piling up timeouts.
package requester

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	"github.com/adapterframework/eacore/internal/oracle"
	"github.com/adapterframework/eacore/internal/ratelimit"
)

// Response is the buffered result of a DP call, safe to hand to every
// coalesced caller without re-reading a stream.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// Requester is the shared per-adapter DP client.
type Requester struct {
	client     *http.Client
	limiter    *ratelimit.Limiter
	group      singleflight.Group
	breakersMu sync.Mutex
	breakers   map[string]*gobreaker.CircuitBreaker[*Response]
	timeout    time.Duration
}

// Config configures the requester; Timeout is API_TIMEOUT.
type Config struct {
	Limiter *ratelimit.Limiter
	Timeout time.Duration
	Client  *http.Client
}

func New(cfg Config) *Requester {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Requester{
		client:   client,
		limiter:  cfg.Limiter,
		breakers: make(map[string]*gobreaker.CircuitBreaker[*Response]),
		timeout:  cfg.Timeout,
	}
}

// Request performs (or attaches to an in-flight) DP call. coalesceKey is
// derived by the caller from (endpoint, transport, input-batch) per spec
// §4.D; cost is the rate-limiter credit charge for this call (1 unless
// the caller's API-credit accounting says otherwise).
func (r *Requester) Request(ctx context.Context, endpointName, coalesceKey string, cost float64, build func() (*http.Request, error)) (*Response, error) {
	v, err, _ := r.group.Do(coalesceKey, func() (interface{}, error) {
		return r.doRequest(ctx, endpointName, cost, build)
	})
	if err != nil {
		return nil, wrapRequesterError(err)
	}
	return v.(*Response), nil
}

// wrapRequesterError ensures every error this package returns is already
// an *oracle.Fault, including gobreaker's own open-circuit sentinel which
// bypasses doRequest's oracle.Upstream wrapping entirely.
func wrapRequesterError(err error) error {
	if _, ok := err.(*oracle.Fault); ok {
		return err
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return oracle.Upstream("provider circuit breaker open", err)
	}
	return oracle.AsFault(err)
}

func (r *Requester) doRequest(ctx context.Context, endpointName string, cost float64, build func() (*http.Request, error)) (*Response, error) {
	if r.limiter != nil {
		if err := r.limiter.Admit(ctx, endpointName, cost); err != nil {
			return nil, err
		}
	}

	breaker := r.breakerFor(endpointName)
	return breaker.Execute(func() (*Response, error) {
		reqCtx := ctx
		var cancel context.CancelFunc
		if r.timeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		req, err := build()
		if err != nil {
			return nil, oracle.Input("failed to build provider request", err)
		}
		req = req.WithContext(reqCtx)

		start := time.Now()
		resp, err := r.client.Do(req)
		duration := time.Since(start)
		if err != nil {
			return nil, oracle.Upstream("provider request failed", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, oracle.Upstream("provider request failed: could not read response body", err)
		}

		return &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
			Duration:   duration,
		}, nil
	})
}

func (r *Requester) breakerFor(endpointName string) *gobreaker.CircuitBreaker[*Response] {
	r.breakersMu.Lock()
	defer r.breakersMu.Unlock()

	if b, ok := r.breakers[endpointName]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        "requester-" + endpointName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	r.breakers[endpointName] = b
	return b
}
