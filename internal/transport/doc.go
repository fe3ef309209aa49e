// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport implements the Transport contract and its three
// built-in shapes (spec §4.E): HTTPBatch (pull, request/response
// batching), WebSocket (push, subscribe/unsubscribe over a persistent
// connection), and SSE (push, server-sent events with HTTP side-calls for
// subscription management).
package transport
