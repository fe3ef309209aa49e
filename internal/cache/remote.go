// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/adapterframework/eacore/internal/oracle"
)

// Remote is the CACHE_TYPE=redis variant. Each key is stored with Redis's
// own per-key TTL (SET key value PX ttl), so expiration does not depend on
// any sweep loop. Remote also implements Locker: the distributed writer
// lock is a SET NX PX lease with a caller-owned token, refreshed on a
// timer until the shutdown signal fires, matching "Reader-writer cache
// lock" in spec §9 Design Notes.
type Remote struct {
	client *redis.Client
	prefix string
}

// NewRemote wraps an existing client; prefix is CACHE_PREFIX (applied by
// the caller to keys already, so Remote stores them as given).
func NewRemote(client *redis.Client, prefix string) *Remote {
	return &Remote{client: client, prefix: prefix}
}

type wireEntry struct {
	Envelope       *oracle.Envelope `json:"envelope"`
	ExpireAtUnixMs int64            `json:"expireAtUnixMs"`
	SetAtUnixMs    int64            `json:"setAtUnixMs"`
}

func (r *Remote) Get(ctx context.Context, key string) (*Entry, bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var w wireEntry
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, false, err
	}
	if oracle.NowUnixMs() > w.ExpireAtUnixMs {
		return nil, false, nil
	}
	return &Entry{Key: key, Envelope: w.Envelope, ExpireAtUnixMs: w.ExpireAtUnixMs, SetAtUnixMs: w.SetAtUnixMs}, true, nil
}

func (r *Remote) Set(ctx context.Context, key string, envelope *oracle.Envelope, ttl time.Duration) error {
	now := oracle.NowUnixMs()
	w := wireEntry{Envelope: envelope, ExpireAtUnixMs: now + ttl.Milliseconds(), SetAtUnixMs: now}
	raw, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, raw, ttl).Err()
}

func (r *Remote) PollForKey(ctx context.Context, key string, opts PollOptions) (*Entry, bool, error) {
	return pollForKey(ctx, r, key, opts)
}

func (r *Remote) Close() error {
	return r.client.Close()
}

// Lock implements Locker: acquire `name` via SET NX PX with a random token
// so only the holder can release or refresh it, then refresh the lease at
// ttl/2 intervals until shutdown fires. ok=false if the lease could not be
// acquired within ttl*retries.
func (r *Remote) Lock(ctx context.Context, name string, ttl time.Duration, retries int, shutdown <-chan struct{}) (func(), bool, error) {
	if retries <= 0 {
		retries = 1
	}
	token := uuid.NewString()

	var acquired bool
	for attempt := 0; attempt < retries; attempt++ {
		ok, err := r.client.SetNX(ctx, name, token, ttl).Result()
		if err != nil {
			return nil, false, err
		}
		if ok {
			acquired = true
			break
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-shutdown:
			return nil, false, nil
		case <-time.After(ttl):
		}
	}
	if !acquired {
		return nil, false, nil
	}

	refreshCtx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-refreshCtx.Done():
				return
			case <-shutdown:
				r.releaseIfOwned(context.Background(), name, token)
				return
			case <-ticker.C:
				r.client.Eval(context.Background(), refreshScript, []string{name}, token, ttl.Milliseconds())
			}
		}
	}()

	release := func() {
		cancel()
		r.releaseIfOwned(context.Background(), name, token)
	}
	return release, true, nil
}

func (r *Remote) releaseIfOwned(ctx context.Context, name, token string) {
	r.client.Eval(ctx, releaseScript, []string{name}, token)
}

// releaseScript / refreshScript are classic Redlock-style compare-and-act
// scripts: only the owner holding `token` may release or extend the lease.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

const refreshScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`

var (
	_ Cache  = (*Remote)(nil)
	_ Locker = (*Remote)(nil)
)
