// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package requester

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adapterframework/eacore/internal/oracle"
	"github.com/adapterframework/eacore/internal/ratelimit"
)

func newTestRequester(t *testing.T) *Requester {
	t.Helper()
	limiter := ratelimit.New(ratelimit.Config{
		Strategy:          ratelimit.StrategyFixedInterval,
		CapacityPerMinute: 6000,
		MaxQueueLength:    100,
		Allocations:       map[string]float64{"price": 100},
	})
	return New(Config{Limiter: limiter, Timeout: 2 * time.Second})
}

func TestRequestCoalescesConcurrentCalls(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	r := newTestRequester(t)
	build := func() (*http.Request, error) { return http.NewRequest(http.MethodGet, srv.URL, nil) }

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Request(context.Background(), "price", "same-fingerprint", 1, build)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 outbound call for coalesced requests, got %d", got)
	}
}

func TestRequestPassesThroughNon2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := newTestRequester(t)
	build := func() (*http.Request, error) { return http.NewRequest(http.MethodGet, srv.URL, nil) }

	resp, err := r.Request(context.Background(), "price", "k1", 1, build)
	if err != nil {
		t.Fatalf("transport-level call should succeed even for a 500 body: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 passed through, got %d", resp.StatusCode)
	}
}

func TestRequestBuildErrorIsInputFault(t *testing.T) {
	r := newTestRequester(t)
	_, err := r.Request(context.Background(), "price", "k2", 1, func() (*http.Request, error) {
		return nil, context.DeadlineExceeded
	})
	if err == nil || oracle.AsFault(err).Kind != oracle.KindInput {
		t.Fatalf("expected input fault from build failure, got %v", err)
	}
}
