// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pkginfo maps requesting UIDs to the package that owns them.
//
// The decision engine and the policy store never trust a stored
// package name: every read re-resolves the UID through a [Resolver]
// so a package that was uninstalled (or whose UID was reassigned)
// loses its policy instead of silently inheriting one.
//
// [PackagesList] reads Android's /data/system/packages.list, reloading
// it whenever the file changes. [Static] serves a fixed table and is
// what tests and the CLI's offline mode use.
//
// Multi-user UIDs are resolved by their app id (uid % [PerUserRange]);
// packages.list only lists the primary user's copy.
package pkginfo
