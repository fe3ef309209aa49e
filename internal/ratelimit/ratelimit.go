// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ratelimit implements component C: token/credit accounting
// shared across an adapter's endpoints, plus the bounded request queue.
// Per-endpoint capacity is carved out of the adapter-wide cap by
// allocation percentage (allocation.go) and enforced with
// golang.org/x/time/rate token buckets, the same library the teacher
// uses for its own request throttling.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/adapterframework/eacore/internal/oracle"
)

// Strategy selects how admission behaves once an endpoint's bucket is
// exhausted (spec §4.C).
type Strategy string

const (
	StrategyBurst         Strategy = "burst"
	StrategyFixedInterval Strategy = "fixed-interval"
	StrategyAPICredit     Strategy = "api-credit"
)

// Config builds a Limiter: CapacityPerSecond/CapacityPerMinute mirror
// RATE_LIMIT_CAPACITY_SECOND/_MINUTE; the
// chosen rate per endpoint is the minimum of per-second*60 and
// per-minute, scaled by that endpoint's allocation share.
type Config struct {
	Strategy          Strategy
	CapacityPerSecond float64
	CapacityPerMinute float64
	MaxQueueLength    int
	Allocations       map[string]float64 // resolved via ResolveAllocations, sums to 100
}

// Limiter is the per-adapter shared rate limiter.
type Limiter struct {
	strategy Strategy
	queueCap int
	mu       sync.Mutex
	entries  map[string]*endpointState
}

type endpointState struct {
	limiter *rate.Limiter
	mu      sync.Mutex
	waiting []*queuedRequest
}

type queuedRequest struct {
	cancel   context.CancelFunc
	resultCh chan error
}

// New builds a Limiter from Config, computing each endpoint's effective
// per-second rate from its allocation share of the adapter-wide cap.
func New(cfg Config) *Limiter {
	perMinuteFromSecond := cfg.CapacityPerSecond * 60
	capacityPerMinute := cfg.CapacityPerMinute
	if capacityPerMinute <= 0 || (perMinuteFromSecond > 0 && perMinuteFromSecond < capacityPerMinute) {
		capacityPerMinute = perMinuteFromSecond
	}

	l := &Limiter{
		strategy: cfg.Strategy,
		queueCap: cfg.MaxQueueLength,
		entries:  make(map[string]*endpointState, len(cfg.Allocations)),
	}
	for name, pct := range cfg.Allocations {
		endpointPerMinute := capacityPerMinute * pct / 100
		ratePerSecond := endpointPerMinute / 60
		burst := burstSize(l.strategy, ratePerSecond)
		l.entries[name] = &endpointState{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
	}
	return l
}

func burstSize(s Strategy, ratePerSecond float64) int {
	if s == StrategyFixedInterval || s == StrategyAPICredit {
		return 1
	}
	b := int(ratePerSecond)
	if b < 1 {
		b = 1
	}
	return b
}

// Admit blocks (or fails immediately for the burst strategy) until
// `cost` units of the endpoint's share are available, enforcing the
// bounded FIFO queue: appending this request may push the queue over
// MAX_HTTP_REQUEST_QUEUE_LENGTH, in which case the oldest queued (not
// in-flight) entry is dropped and fails with QueueOverflow (spec §4.C).
func (l *Limiter) Admit(ctx context.Context, endpointName string, cost float64) error {
	if cost <= 0 {
		cost = 1
	}
	l.mu.Lock()
	state, ok := l.entries[endpointName]
	l.mu.Unlock()
	if !ok {
		return oracle.Internal("rate limiter has no allocation for endpoint", nil)
	}

	if l.strategy == StrategyBurst {
		if state.limiter.AllowN(time.Now(), int(cost)) {
			return nil
		}
		return oracle.QueueOverflow("request queue overflowed: burst capacity exhausted for endpoint " + endpointName)
	}

	reqCtx, cancel := context.WithCancel(ctx)
	qr := &queuedRequest{cancel: cancel, resultCh: make(chan error, 1)}

	state.mu.Lock()
	state.waiting = append(state.waiting, qr)
	var dropped *queuedRequest
	if l.queueCap > 0 && len(state.waiting) > l.queueCap {
		dropped = state.waiting[0]
		state.waiting = state.waiting[1:]
	}
	state.mu.Unlock()

	if dropped != nil {
		dropped.cancel()
		select {
		case dropped.resultCh <- oracle.QueueOverflow("request queue overflowed for endpoint " + endpointName):
		default:
		}
	}

	go func() {
		waitErr := state.limiter.WaitN(reqCtx, int(cost))
		state.mu.Lock()
		for i, w := range state.waiting {
			if w == qr {
				state.waiting = append(state.waiting[:i], state.waiting[i+1:]...)
				break
			}
		}
		state.mu.Unlock()

		var result error
		if waitErr != nil {
			result = oracle.Upstream("rate limiter wait canceled", waitErr)
		}
		select {
		case qr.resultCh <- result:
		default:
		}
	}()

	select {
	case err := <-qr.resultCh:
		return err
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// QueueDepth reports the current waiting-queue length for an endpoint,
// for tests and metrics.
func (l *Limiter) QueueDepth(endpointName string) int {
	l.mu.Lock()
	state, ok := l.entries[endpointName]
	l.mu.Unlock()
	if !ok {
		return 0
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return len(state.waiting)
}
