// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/adapterframework/eacore/internal/oracle"
)

func TestBurstStrategyRejectsOverCapacity(t *testing.T) {
	l := New(Config{
		Strategy:          StrategyBurst,
		CapacityPerMinute: 60, // 1/sec
		MaxQueueLength:    10,
		Allocations:       map[string]float64{"price": 100},
	})

	ctx := context.Background()
	if err := l.Admit(ctx, "price", 1); err != nil {
		t.Fatalf("expected first admit to succeed, got %v", err)
	}
	err := l.Admit(ctx, "price", 1)
	if err == nil {
		t.Fatal("expected second immediate admit to be rejected under burst strategy")
	}
	if oracle.AsFault(err).Kind != oracle.KindQueueOverflow {
		t.Fatalf("expected QueueOverflow kind, got %v", oracle.AsFault(err).Kind)
	}
}

func TestFixedIntervalStrategyBlocksUntilSlot(t *testing.T) {
	l := New(Config{
		Strategy:          StrategyFixedInterval,
		CapacityPerMinute: 600, // 10/sec -> ~100ms per slot
		MaxQueueLength:    10,
		Allocations:       map[string]float64{"price": 100},
	})

	ctx := context.Background()
	start := time.Now()
	if err := l.Admit(ctx, "price", 1); err != nil {
		t.Fatalf("first admit: %v", err)
	}
	if err := l.Admit(ctx, "price", 1); err != nil {
		t.Fatalf("second admit: %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatal("expected second admission to wait for the next slot")
	}
}

func TestQueueOverflowDropsOldestWaiter(t *testing.T) {
	l := New(Config{
		Strategy:          StrategyFixedInterval,
		CapacityPerMinute: 60, // 1/sec, slow enough to force queueing
		MaxQueueLength:    1,
		Allocations:       map[string]float64{"price": 100},
	})

	ctx := context.Background()
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() { errs <- l.Admit(ctx, "price", 1) }()
	}

	var overflowCount int
	for i := 0; i < 3; i++ {
		select {
		case err := <-errs:
			if err != nil && oracle.AsFault(err).Kind == oracle.KindQueueOverflow {
				overflowCount++
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for admission results")
		}
	}
	if overflowCount == 0 {
		t.Fatal("expected at least one request to be dropped with QueueOverflow")
	}
}

func TestAdmitUnknownEndpointIsInternalError(t *testing.T) {
	l := New(Config{Strategy: StrategyBurst, CapacityPerMinute: 60, Allocations: map[string]float64{"price": 100}})
	err := l.Admit(context.Background(), "unknown", 1)
	if err == nil || oracle.AsFault(err).Kind != oracle.KindInternal {
		t.Fatalf("expected internal fault for unknown endpoint, got %v", err)
	}
}
