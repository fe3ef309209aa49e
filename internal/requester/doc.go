// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package requester implements the Requester component (spec §4.D): a
// central HTTP client that coalesces concurrent calls sharing a
// fingerprint, admits through the shared RateLimiter, and trips a
// per-endpoint circuit breaker on sustained DP failure.
package requester
