// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeLocker is a cache.Locker test double. It hands out the lease
// immediately unless denyOnce is set, in which case the first call
// reports ok=false and subsequent calls succeed.
type fakeLocker struct {
	denyOnce bool
	lockErr  error
	calls    int32
	released int32
	lastTTL  time.Duration
	lastName string
}

func (f *fakeLocker) Lock(ctx context.Context, name string, ttl time.Duration, retries int, shutdown <-chan struct{}) (func(), bool, error) {
	n := atomic.AddInt32(&f.calls, 1)
	f.lastName = name
	f.lastTTL = ttl
	if f.lockErr != nil {
		return nil, false, f.lockErr
	}
	if f.denyOnce && n == 1 {
		return nil, false, nil
	}
	return func() { atomic.AddInt32(&f.released, 1) }, true, nil
}

func TestLockServiceAcquiresAndReleases(t *testing.T) {
	locker := &fakeLocker{}
	svc := NewLockService(LockServiceConfig{
		Locker:  locker,
		Name:    "eacore-crypto-price-oracle-writer-lock",
		TTL:     time.Second,
		Retries: 3,
		Logger:  zerolog.Nop(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := svc.Serve(ctx)
	if err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}
	if atomic.LoadInt32(&locker.calls) != 1 {
		t.Errorf("expected 1 Lock call, got %d", locker.calls)
	}
	if atomic.LoadInt32(&locker.released) != 1 {
		t.Errorf("expected lease to be released on shutdown, got %d releases", locker.released)
	}
	if locker.lastName != "eacore-crypto-price-oracle-writer-lock" {
		t.Errorf("unexpected lease name %q", locker.lastName)
	}
}

func TestLockServiceStandsDownWhenLeaseHeldElsewhere(t *testing.T) {
	locker := &fakeLocker{denyOnce: true}
	svc := NewLockService(LockServiceConfig{
		Locker:  locker,
		Name:    "eacore-writer-lock",
		TTL:     time.Second,
		Retries: 1,
		Logger:  zerolog.Nop(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := svc.Serve(ctx); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}
	if atomic.LoadInt32(&locker.released) != 0 {
		t.Errorf("lease was never acquired, should not be released")
	}
}

func TestLockServicePropagatesLockError(t *testing.T) {
	wantErr := errors.New("redis unavailable")
	locker := &fakeLocker{lockErr: wantErr}
	svc := NewLockService(LockServiceConfig{
		Locker:  locker,
		Name:    "eacore-writer-lock",
		TTL:     time.Second,
		Retries: 1,
		Logger:  zerolog.Nop(),
	})

	err := svc.Serve(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
}

func TestNewLockServiceDefaultsRetries(t *testing.T) {
	svc := NewLockService(LockServiceConfig{Retries: 0})
	if svc.cfg.Retries != 1 {
		t.Errorf("expected default Retries 1, got %d", svc.cfg.Retries)
	}
}
