// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache implements component A of the core: a TTL key/value store
// behind one interface, with a local (bounded LRU) and a remote
// (Redis-backed) variant, plus the pollForKey helper the request lifecycle
// uses to wait for background fill.
package cache

import (
	"context"
	"time"

	"github.com/adapterframework/eacore/internal/oracle"
)

// Entry is the cached unit: the wire envelope plus its DP-round-trip
// timestamps, keyed by the fingerprint derived in internal/cachekey.
type Entry struct {
	Key            string
	Envelope       *oracle.Envelope
	ExpireAtUnixMs int64
	SetAtUnixMs    int64
}

// Cache is the interface both variants of component A implement. Get
// returns only non-expired entries; expired entries are treated as absent
// whether or not the implementation has already reclaimed their storage.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, envelope *oracle.Envelope, ttl time.Duration) error

	// PollForKey repeatedly calls Get with a fixed delay between attempts,
	// returning the first non-absent entry or (nil, false, nil) once
	// opts.MaxRetries is exhausted.
	PollForKey(ctx context.Context, key string, opts PollOptions) (*Entry, bool, error)

	// Close releases background resources (cleanup goroutines, connections).
	Close() error
}

// PollOptions configures PollForKey, sourced from CACHE_POLLING_MAX_RETRIES
// and CACHE_POLLING_SLEEP_MS.
type PollOptions struct {
	MaxRetries int
	Sleep      time.Duration
}

// Locker is implemented only by the remote cache variant: the distributed
// writer lock used to enforce a single writer per (adapterName,
// cachePrefix), per spec §4.A / §9 Design Notes.
type Locker interface {
	// Lock blocks until the named lease is acquired, shutdown fires, or
	// ttl*retries elapses without acquiring it (returns ok=false). The
	// returned release func drops the lease early; otherwise the lease is
	// refreshed internally and released when shutdown fires.
	Lock(ctx context.Context, name string, ttl time.Duration, retries int, shutdown <-chan struct{}) (release func(), ok bool, err error)
}
