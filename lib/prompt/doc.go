// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package prompt connects the decision engine to the user interface
// process over its CBOR service socket.
//
// [Client] implements both [decision.Prompter] and [decision.Notifier].
// The UI side registers two actions:
//
//   - "prompt" receives {uid, package_name, app_name, command,
//     timeout_seconds} and answers {allow, minutes} once the user has
//     chosen. timeout_seconds is zero when the dialog has no countdown.
//   - "notify" receives {uid, package_name, app_name, granted, type}
//     and answers as soon as the notification is queued.
//
// A prompt call stays open for as long as the user takes. The engine
// cancels the context when the countdown runs out or the requester
// goes away, which closes the connection; the UI is expected to
// dismiss its dialog when the peer hangs up.
package prompt
