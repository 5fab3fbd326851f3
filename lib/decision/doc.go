// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package decision turns one root request into an allow or deny.
//
// [Engine.Decide] applies, in order:
//
//  1. The requester restrictions from settings. Root access mode can
//     shut out apps, adb, or both; multiuser mode can shut out
//     secondary users or fold them onto the owner's policy. These
//     denials are silent: no prompt, no audit entry, no notification.
//     UID 0 bypasses everything, also silently.
//  2. Self requests. The manager's own UID, or any UID whose package
//     is the manager package, is refused.
//  3. Package resolution. A UID no package owns fails, and its stored
//     policy (if any) is deleted.
//  4. A cached Allow or Deny policy.
//  5. The auto-response setting. Auto verdicts are never persisted.
//  6. An interactive prompt, raced against the request timeout, the
//     broker removing its socket, and context cancellation. The user's
//     choice is persisted according to the minutes they picked.
//
// Every verdict except the silent ones is then audited (if the policy
// has logging on) and notified (if the policy has notification on and
// the notification setting is not none). A cancelled prompt is audited
// as a denial and never notified.
//
// # Deduplication
//
// Requests are keyed by the UID policy is evaluated under. While one
// request for a key is being decided, later requests for the same key
// wait for its verdict instead of opening a second prompt. If the
// first request is cancelled, a waiting request takes over. The
// pending table is guarded by one mutex that is never held across
// store access or the prompt.
package decision
