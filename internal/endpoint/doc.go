// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package endpoint implements component G: input validation, the
// built-in symbolOverrider transform plus user-supplied request
// transforms, cache-key derivation, and the transport routing table for
// a single named endpoint.
package endpoint
