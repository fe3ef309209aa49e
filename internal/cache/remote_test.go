// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/adapterframework/eacore/internal/oracle"
)

func newTestRemote(t *testing.T) (*Remote, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRemote(client, "test-prefix"), mr
}

func TestRemoteGetSetRoundTrip(t *testing.T) {
	r, _ := newTestRemote(t)
	ctx := context.Background()

	env := oracle.NewSuccessEnvelope(99, nil, oracle.Timestamps{})
	if err := r.Set(ctx, "k1", env, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := r.Get(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Envelope.Result != float64(99) {
		t.Fatalf("unexpected result %v (%T)", got.Envelope.Result, got.Envelope.Result)
	}
}

func TestRemoteExpiredKeyIsAbsent(t *testing.T) {
	r, mr := newTestRemote(t)
	ctx := context.Background()

	env := oracle.NewSuccessEnvelope(1, nil, oracle.Timestamps{})
	if err := r.Set(ctx, "k", env, time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(2 * time.Second)

	_, ok, err := r.Get(ctx, "k")
	if err != nil || ok {
		t.Fatalf("expected expiry, got ok=%v err=%v", ok, err)
	}
}

func TestRemoteLockMutualExclusion(t *testing.T) {
	r, _ := newTestRemote(t)
	ctx := context.Background()
	shutdown := make(chan struct{})
	defer close(shutdown)

	release, ok, err := r.Lock(ctx, "writer-lock", 50*time.Millisecond, 1, shutdown)
	if err != nil || !ok {
		t.Fatalf("expected first lock to succeed, got ok=%v err=%v", ok, err)
	}
	defer release()

	_, ok2, err := r.Lock(ctx, "writer-lock", 10*time.Millisecond, 1, shutdown)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok2 {
		t.Fatal("expected second lock attempt to fail while held")
	}
}

func TestRemoteLockReleaseAllowsReacquire(t *testing.T) {
	r, _ := newTestRemote(t)
	ctx := context.Background()
	shutdown := make(chan struct{})
	defer close(shutdown)

	release, ok, err := r.Lock(ctx, "writer-lock", 50*time.Millisecond, 1, shutdown)
	if err != nil || !ok {
		t.Fatalf("expected lock, got ok=%v err=%v", ok, err)
	}
	release()

	_, ok2, err := r.Lock(ctx, "writer-lock", 50*time.Millisecond, 1, shutdown)
	if err != nil || !ok2 {
		t.Fatalf("expected reacquire after release, got ok=%v err=%v", ok2, err)
	}
}
