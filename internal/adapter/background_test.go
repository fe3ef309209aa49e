// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package adapter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adapterframework/eacore/internal/cache"
	"github.com/adapterframework/eacore/internal/cachekey"
	"github.com/adapterframework/eacore/internal/endpoint"
	"github.com/adapterframework/eacore/internal/router"
	"github.com/adapterframework/eacore/internal/transport"
)

// countingBackgroundTransport implements transport.Transport,
// transport.BackgroundExecutor, and transport.MinPeriod so it can be
// scheduled by BackgroundExecutor without any HTTP/WS/SSE plumbing.
type countingBackgroundTransport struct {
	name      string
	minPeriod time.Duration
	runs      int32
	fail      bool
}

func (c *countingBackgroundTransport) Name() string             { return c.name }
func (c *countingBackgroundTransport) MinPeriod() time.Duration { return c.minPeriod }
func (c *countingBackgroundTransport) BackgroundExecute(ctx context.Context) error {
	atomic.AddInt32(&c.runs, 1)
	if c.fail {
		panic("boom")
	}
	return nil
}

func TestBackgroundExecutor_RunsEligibleJobs(t *testing.T) {
	bt := &countingBackgroundTransport{name: router.DefaultSentinel, minPeriod: 5 * time.Millisecond}

	ep, err := endpoint.New(endpoint.Config{
		Name:       "price",
		Transports: []router.NamedTransport{{Name: router.DefaultSentinel, Transport: bt}},
	}, cachekey.NewGenerator(0))
	if err != nil {
		t.Fatal(err)
	}

	a, err := New(Config{
		Name:      "testadapter",
		Endpoints: []*endpoint.Endpoint{ep},
		Cache:     cache.NewLocal(10),
	})
	if err != nil {
		t.Fatal(err)
	}

	exec := NewBackgroundExecutor(BackgroundExecutorConfig{Adapter: a, Timeout: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if err := exec.Serve(ctx); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}

	if atomic.LoadInt32(&bt.runs) < 2 {
		t.Errorf("expected at least 2 runs in 60ms with a 5ms period, got %d", bt.runs)
	}
}

func TestBackgroundExecutor_PanicDoesNotStopLoop(t *testing.T) {
	bt := &countingBackgroundTransport{name: router.DefaultSentinel, minPeriod: 5 * time.Millisecond, fail: true}

	ep, err := endpoint.New(endpoint.Config{
		Name:       "price",
		Transports: []router.NamedTransport{{Name: router.DefaultSentinel, Transport: bt}},
	}, cachekey.NewGenerator(0))
	if err != nil {
		t.Fatal(err)
	}

	a, err := New(Config{
		Name:      "testadapter",
		Endpoints: []*endpoint.Endpoint{ep},
		Cache:     cache.NewLocal(10),
	})
	if err != nil {
		t.Fatal(err)
	}

	exec := NewBackgroundExecutor(BackgroundExecutorConfig{Adapter: a, Timeout: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	if err := exec.Serve(ctx); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}

	if atomic.LoadInt32(&bt.runs) < 1 {
		t.Errorf("expected at least 1 run despite panics, got %d", bt.runs)
	}
}

func TestBackgroundExecutor_NoJobsWaitsForShutdown(t *testing.T) {
	ep, err := endpoint.New(endpoint.Config{
		Name: "price",
		Transports: []router.NamedTransport{
			{Name: router.DefaultSentinel, Transport: noBackgroundTransport{name: router.DefaultSentinel}},
		},
	}, cachekey.NewGenerator(0))
	if err != nil {
		t.Fatal(err)
	}

	a, err := New(Config{
		Name:      "testadapter",
		Endpoints: []*endpoint.Endpoint{ep},
		Cache:     cache.NewLocal(10),
	})
	if err != nil {
		t.Fatal(err)
	}

	exec := NewBackgroundExecutor(BackgroundExecutorConfig{Adapter: a, Timeout: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := exec.Serve(ctx); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}
}

type noBackgroundTransport struct{ name string }

func (n noBackgroundTransport) Name() string { return n.name }

var _ transport.Transport = noBackgroundTransport{}

// slowBackgroundTransport's BackgroundExecute takes longer than its own
// MinPeriod, so the scheduler would overlap it with itself unless the
// in-flight guard holds. It tracks the maximum number of concurrent
// invocations observed.
type slowBackgroundTransport struct {
	name      string
	minPeriod time.Duration
	sleep     time.Duration

	mu          sync.Mutex
	inFlight    int32
	maxInFlight int32
	runs        int32
}

func (s *slowBackgroundTransport) Name() string             { return s.name }
func (s *slowBackgroundTransport) MinPeriod() time.Duration { return s.minPeriod }
func (s *slowBackgroundTransport) BackgroundExecute(ctx context.Context) error {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)

	s.mu.Lock()
	if n > s.maxInFlight {
		s.maxInFlight = n
	}
	s.mu.Unlock()

	atomic.AddInt32(&s.runs, 1)
	time.Sleep(s.sleep)
	return nil
}

func TestBackgroundExecutor_NeverRunsSameJobConcurrently(t *testing.T) {
	// MinPeriod is far shorter than the invocation's own runtime, so the
	// scheduler would overlap this job with itself many times over the
	// test's duration if it didn't guard against it.
	bt := &slowBackgroundTransport{name: router.DefaultSentinel, minPeriod: time.Millisecond, sleep: 20 * time.Millisecond}

	ep, err := endpoint.New(endpoint.Config{
		Name:       "price",
		Transports: []router.NamedTransport{{Name: router.DefaultSentinel, Transport: bt}},
	}, cachekey.NewGenerator(0))
	if err != nil {
		t.Fatal(err)
	}

	a, err := New(Config{
		Name:      "testadapter",
		Endpoints: []*endpoint.Endpoint{ep},
		Cache:     cache.NewLocal(10),
	})
	if err != nil {
		t.Fatal(err)
	}

	exec := NewBackgroundExecutor(BackgroundExecutorConfig{Adapter: a, Timeout: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := exec.Serve(ctx); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}

	if atomic.LoadInt32(&bt.runs) < 2 {
		t.Errorf("expected at least 2 runs in 150ms with a 20ms invocation, got %d", bt.runs)
	}
	bt.mu.Lock()
	max := bt.maxInFlight
	bt.mu.Unlock()
	if max > 1 {
		t.Errorf("expected at most 1 concurrent invocation, observed %d", max)
	}
}
