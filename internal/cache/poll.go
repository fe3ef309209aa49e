// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"context"
	"time"
)

// pollForKey is shared by both Cache variants: repeatedly Get with a fixed
// sleep between attempts until a non-absent entry appears, the context is
// canceled, or MaxRetries is exhausted (spec §4.A, suspension point per §5).
func pollForKey(ctx context.Context, c Cache, key string, opts PollOptions) (*Entry, bool, error) {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	for attempt := 0; attempt < opts.MaxRetries; attempt++ {
		entry, ok, err := c.Get(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return entry, true, nil
		}
		if attempt == opts.MaxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(opts.Sleep):
		}
	}
	return nil, false, nil
}
