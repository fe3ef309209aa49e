// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ratelimit implements the RateLimiter component (spec §4.C):
// per-endpoint allocation of a shared DP rate budget, selectable
// admission strategy (burst / fixed-interval / api-credit), and a bounded
// FIFO request queue that fails the oldest waiter with QueueOverflow on
// overflow.
package ratelimit
