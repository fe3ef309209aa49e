// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package subscription implements the SubscriptionSet component (spec
// §4.B): a TTL'd set of input-params a transport's background execute
// keeps fresh, local (in-process linked-list) or remote (Redis sorted set)
// depending on CACHE_TYPE.
package subscription
