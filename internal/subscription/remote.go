// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package subscription

import (
	"context"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/adapterframework/eacore/internal/oracle"
)

// Remote is a Redis sorted-set variant, scored by expiration unix-ms so
// GetAll can atomically drop expired members before returning the rest
// (spec §4.B). Each member is a JSON encoding that carries the key
// argument to Add/Remove (the caller's derived fingerprint) together with
// the InputParams, so Remove can find a key's existing member.
type Remote struct {
	client *redis.Client
	name   string // "{ADAPTER_NAME}-{endpoint}-{transport}-subscriptionSet" (spec §6)
}

func NewRemote(client *redis.Client, name string) *Remote {
	return &Remote{client: client, name: name}
}

type member struct {
	Key   string             `json:"key"`
	Value oracle.InputParams `json:"value"`
}

func (r *Remote) Add(ctx context.Context, key string, value oracle.InputParams, ttl time.Duration) error {
	raw, err := json.Marshal(member{Key: key, Value: value})
	if err != nil {
		return err
	}
	// A prior add for the same key leaves a stale member with a different
	// score; remove it first so ZADD doesn't create a duplicate with old
	// params under the new score.
	if err := r.Remove(ctx, key); err != nil {
		return err
	}
	score := float64(oracle.NowUnixMs() + ttl.Milliseconds())
	return r.client.ZAdd(ctx, r.name, redis.Z{Score: score, Member: string(raw)}).Err()
}

func (r *Remote) GetAll(ctx context.Context) ([]Entry, error) {
	now := oracle.NowUnixMs()
	if err := r.client.ZRemRangeByScore(ctx, r.name, "-inf", strconv.FormatInt(now, 10)).Err(); err != nil {
		return nil, err
	}

	raw, err := r.client.ZRangeWithScores(ctx, r.name, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(raw))
	for _, z := range raw {
		s, ok := z.Member.(string)
		if !ok {
			continue
		}
		var m member
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			continue
		}
		out = append(out, Entry{Key: m.Key, Value: m.Value, ExpireAtUnixMs: int64(z.Score)})
	}
	return out, nil
}

func (r *Remote) Remove(ctx context.Context, key string) error {
	entries, err := r.rawMembers(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Key == key {
			return r.client.ZRem(ctx, r.name, e.raw).Err()
		}
	}
	return nil
}

type rawEntry struct {
	Key string
	raw string
}

func (r *Remote) rawMembers(ctx context.Context) ([]rawEntry, error) {
	vals, err := r.client.ZRange(ctx, r.name, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]rawEntry, 0, len(vals))
	for _, v := range vals {
		var m member
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			continue
		}
		out = append(out, rawEntry{Key: m.Key, raw: v})
	}
	return out, nil
}

var _ Set = (*Remote)(nil)
