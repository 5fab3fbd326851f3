// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sulog is the append-only audit log of root requests.
//
// Each [Entry] records who asked for root, what they ran, and whether
// it was granted. [Store.List] returns one Android user's entries
// grouped by calendar day, newest first.
//
// Entries older than the retention window (the su_log_timeout setting,
// in days) are purged lazily on every call.
package sulog
