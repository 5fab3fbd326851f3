// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the suauth YAML configuration file.
//
// Configuration is loaded from a single file named either by the
// SUAUTH_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no discovery and no search path. Values
// missing from the file keep the defaults from [Default].
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${SUAUTH_ROOT}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// The defaults section seeds every setting the manager stores in its
// database; a row in the settings table always wins over the file.
package config
