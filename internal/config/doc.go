// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package config loads and validates every setting the core recognizes
(spec §6), the same three-layer way the teacher loads its own
configuration: built-in defaults, an optional YAML file, then environment
variables (highest priority), via Koanf v2.

# Configuration Sources

  - Built-in defaults (defaultConfig in koanf.go)
  - Optional YAML file: config.yaml, config.yml, or a path named by
    CONFIG_PATH
  - Environment variables, which always win

# Usage

	cfg, err := config.Load()
	if err != nil {
	    log.Fatalf("failed to load config: %v", err)
	}

# Validation

Load returns an error when a setting is out of its recognized enum or
range, and in particular enforces spec §8 property 6: CACHE_TYPE=local
may only be combined with EA_MODE=reader-writer, since a local cache has
no shared backing store a separate reader or writer process could see.

# Thread Safety

Config is immutable after Load() returns and is safe for concurrent read
access from every component the Adapter composition root wires up.
*/
package config
