// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package middleware provides gzip response compression for the HTTP
ingress (component J), wired in ahead of the chi-based middleware in
internal/httpapi.

Request-ID propagation and API-request metrics, once also implemented
here, are superseded by internal/httpapi.RequestIDWithLogging and the
metrics calls ingressHandler makes directly — this package now carries
only the concern httpapi does not: compression.

Usage:

	import "github.com/adapterframework/eacore/internal/middleware"

	http.HandleFunc("/", middleware.Compression(handler))

	// Responses are gzip-encoded when the client sends
	// Accept-Encoding: gzip and the connection is not a WebSocket upgrade.

Compression Details:

  - Supports gzip encoding (Accept-Encoding: gzip)
  - Skips WebSocket upgrade requests
  - Automatically sets Content-Encoding and drops the now-stale
    Content-Length header
  - Pools gzip.Writer instances to reduce allocation
*/
package middleware
