// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/adapterframework/eacore/internal/oracle"
)

// listEntry is the container/list payload: the cache entry plus its key,
// so eviction from the tail can delete the matching map entry in O(1).
// Grounded in the teacher's doubly-linked-list LRU (internal/cache/lru.go).
type listEntry struct {
	key   string
	entry *Entry
}

// Local is the CACHE_TYPE=local variant: a bounded-by-count LRU with
// absolute per-entry expiration (spec §4.A). Gets are O(1); expired
// entries are evicted lazily on Get and opportunistically on a background
// sweep so idle keys don't linger until next access.
type Local struct {
	mu       sync.Mutex
	maxItems int
	items    map[string]*list.Element
	order    *list.List // front = most recently used

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// NewLocal builds a local cache bounded at maxItems entries (CACHE_MAX_ITEMS).
func NewLocal(maxItems int) *Local {
	if maxItems <= 0 {
		maxItems = 10000
	}
	c := &Local{
		maxItems:  maxItems,
		items:     make(map[string]*list.Element, maxItems),
		order:     list.New(),
		stopSweep: make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

func (c *Local) Get(_ context.Context, key string) (*Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	le := el.Value.(*listEntry)
	if isExpired(le.entry) {
		c.removeLocked(el)
		return nil, false, nil
	}
	c.order.MoveToFront(el)
	return le.entry, true, nil
}

func (c *Local) Set(_ context.Context, key string, envelope *oracle.Envelope, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := oracle.NowUnixMs()
	entry := &Entry{
		Key:            key,
		Envelope:       envelope,
		ExpireAtUnixMs: now + ttl.Milliseconds(),
		SetAtUnixMs:    now,
	}

	if el, ok := c.items[key]; ok {
		el.Value.(*listEntry).entry = entry
		c.order.MoveToFront(el)
		return nil
	}

	el := c.order.PushFront(&listEntry{key: key, entry: entry})
	c.items[key] = el

	if c.order.Len() > c.maxItems {
		c.evictOldest()
	}
	return nil
}

func (c *Local) PollForKey(ctx context.Context, key string, opts PollOptions) (*Entry, bool, error) {
	return pollForKey(ctx, c, key, opts)
}

func (c *Local) Close() error {
	c.sweepOnce.Do(func() { close(c.stopSweep) })
	return nil
}

func (c *Local) evictOldest() {
	back := c.order.Back()
	if back == nil {
		return
	}
	c.removeLocked(back)
}

func (c *Local) removeLocked(el *list.Element) {
	le := el.Value.(*listEntry)
	delete(c.items, le.key)
	c.order.Remove(el)
}

func (c *Local) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopSweep:
			return
		case <-ticker.C:
			c.sweepExpired()
		}
	}
}

func (c *Local) sweepExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if isExpired(el.Value.(*listEntry).entry) {
			c.removeLocked(el)
		}
		el = prev
	}
}

func isExpired(e *Entry) bool {
	return oracle.NowUnixMs() > e.ExpireAtUnixMs
}

var _ Cache = (*Local)(nil)
