// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package subscription implements component B: a TTL'd set of input-params
// a transport is responsible for keeping fresh, grouped per
// (endpoint, transport). Grounded in the same doubly-linked-list pattern as
// internal/cache (teacher's lru.go) and in the L1Cache container/list
// design from the pack's distributed-caching example.
package subscription

import (
	"container/list"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/adapterframework/eacore/internal/oracle"
)

// Entry is a SubscriptionEntry (spec §3): the value is the full set of
// input params a background execute needs to reissue the DP request.
type Entry struct {
	Key            string
	Value          oracle.InputParams
	ExpireAtUnixMs int64
}

// Set is the interface both variants implement. Add is idempotent per key
// (duplicate adds update TTL and move-to-MRU for the local variant).
// GetAll is the ground truth background-execute uses to decide what to
// refresh, and it must exclude expired entries.
type Set interface {
	Add(ctx context.Context, key string, value oracle.InputParams, ttl time.Duration) error
	GetAll(ctx context.Context) ([]Entry, error)
	Remove(ctx context.Context, key string) error
}

type listValue struct {
	key   string
	entry Entry
}

// Local is a local expiring-sorted-set capped at SUBSCRIPTION_SET_MAX_ITEMS,
// implemented as a doubly-linked list ordered by last-update so overflow
// eviction (back = least-recently-updated) is O(1).
type Local struct {
	mu       sync.Mutex
	maxItems int
	items    map[string]*list.Element
	order    *list.List // front = most recently updated
	onEvict  func(key string)
}

// NewLocal builds a local subscription set bounded at maxItems entries.
func NewLocal(maxItems int) *Local {
	if maxItems <= 0 {
		maxItems = 10000
	}
	return &Local{
		maxItems: maxItems,
		items:    make(map[string]*list.Element, maxItems),
		order:    list.New(),
	}
}

// OnEvict registers a callback invoked (outside the lock) whenever an
// entry is dropped for capacity overflow, so callers can log the spec's
// required eviction warning.
func (s *Local) OnEvict(fn func(key string)) { s.onEvict = fn }

func (s *Local) Add(_ context.Context, key string, value oracle.InputParams, ttl time.Duration) error {
	s.mu.Lock()
	expire := oracle.NowUnixMs() + ttl.Milliseconds()
	entry := Entry{Key: key, Value: value, ExpireAtUnixMs: expire}

	if el, ok := s.items[key]; ok {
		el.Value.(*listValue).entry = entry
		s.order.MoveToFront(el)
		s.mu.Unlock()
		return nil
	}

	el := s.order.PushFront(&listValue{key: key, entry: entry})
	s.items[key] = el

	var evictedKey string
	evicted := false
	if s.order.Len() > s.maxItems {
		back := s.order.Back()
		evictedKey = back.Value.(*listValue).key
		evicted = true
		delete(s.items, evictedKey)
		s.order.Remove(back)
	}
	s.mu.Unlock()

	if evicted && s.onEvict != nil {
		s.onEvict(evictedKey)
	}
	return nil
}

func (s *Local) GetAll(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	snapshot := make([]Entry, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		snapshot = append(snapshot, el.Value.(*listValue).entry)
	}
	s.mu.Unlock()

	now := oracle.NowUnixMs()
	out := snapshot[:0]
	for _, e := range snapshot {
		if now <= e.ExpireAtUnixMs {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Local) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.items[key]; ok {
		delete(s.items, key)
		s.order.Remove(el)
	}
	return nil
}

// sortEntriesByKey sorts entries by Key, an ordering independent of
// list-traversal order; nothing in the package calls it.
func sortEntriesByKey(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
}

var _ Set = (*Local)(nil)
