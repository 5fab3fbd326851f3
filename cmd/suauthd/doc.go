// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Suauthd is the root request manager. The privileged broker tells it
// about each su invocation over the control socket; suauthd decides
// the request and writes the verdict back on the broker's per-request
// socket.
//
// # Startup
//
// suauthd loads its YAML configuration (--config or SUAUTH_CONFIG),
// opens the su database under paths.database (migrating or resetting
// the schema as needed), purges expired policies and audit entries,
// and listens on paths.control_socket. Only peers whose SO_PEERCRED
// UID is listed in broker.allowed_uids may connect.
//
// # Control socket
//
// The socket speaks the CBOR request/response protocol from
// lib/service, one request per connection:
//
//   - "request" {socket, timeout}: the broker has created a request
//     socket at path socket. suauthd starts a worker that connects to
//     it, reads the request record, decides it, and writes the
//     verdict. The action returns as soon as the worker is started.
//   - "log" {from_uid, from_pid, to_uid, command, granted}: the broker
//     decided a request itself and wants it audited.
//   - "notify" {from_uid, granted}: the broker decided a request itself
//     and wants the user told.
//   - "status": pending decision counts and the effective settings.
//
// # UI
//
// When paths.ui_socket is set, prompts and notifications go to the UI
// process through lib/prompt. Without it every request that needs the
// user is denied.
package main
