// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router implements the TransportRouter component (spec §4.F):
// per-endpoint transport selection by default sentinel, custom router,
// request field, or configured default, in that priority order.
package router
