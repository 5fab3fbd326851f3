// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy stores the per-UID root access decisions.
//
// A [Policy] records whether a UID is always allowed, always denied, or
// must be asked each time, and whether its requests are logged and
// notified. Policies may carry an expiry; expired rows are purged
// before any read that could drive a decision, so an expired grant is
// never honored.
//
// The stored package name is advisory. [Store.Get] and [Store.List]
// re-resolve every row through a [pkginfo.Resolver] and delete rows
// whose UID no longer belongs to the recorded package.
package policy
