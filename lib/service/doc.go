// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service implements the CBOR request/response protocol that
// suauth speaks on its local Unix sockets: the daemon's control socket
// (used by the broker and the CLI) and the UI socket the daemon calls
// to show prompts and notifications.
//
// Each connection carries exactly one exchange. The client writes one
// CBOR map with an "action" field plus action-specific fields; the
// server writes one [Response] and closes the connection:
//
//	client -> {action: "status"}
//	server -> {ok: true, data: {...}}
//
// # Peer credentials
//
// A [SocketServer] can restrict callers by UID. The check uses the
// kernel-reported SO_PEERCRED credentials of the connecting process,
// so it cannot be spoofed by request content. Handlers can read the
// caller's credentials with [PeerFromContext].
package service
