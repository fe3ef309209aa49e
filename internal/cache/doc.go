// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache implements the Cache component (spec §4.A): a TTL
// key→value store behind the Cache interface, with a local bounded-LRU
// variant for single-process deployments and a Redis-backed remote variant
// for reader/writer deployments that share state across processes. The
// remote variant also supplies the distributed writer lock used to
// enforce a single writer per (adapterName, CACHE_PREFIX).
package cache
