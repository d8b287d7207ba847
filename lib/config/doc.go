// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for kiln.
//
// Configuration is loaded from a single file specified by either the
// KILN_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. This ensures deterministic, auditable
// configuration with no hidden overrides.
//
// The configuration file supports scope-specific sections (user,
// system) that override base values when [Config].Scope matches.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${KILN_ROOT}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Scope, Paths, Remotes, Cache
//   - [Default] -- returns a Config with user-scope defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other kiln packages.
package config
