// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration shared by every suauth
// socket: the daemon's control socket and the UI socket.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same logical value always produces the same bytes. The decoder
// ignores unknown fields, which lets a newer UI add fields to a prompt
// answer without breaking an older daemon. Duplicate map keys are rejected.
//
// For buffers:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For sockets:
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// # Struct tags
//
// A `cbor` tag marks a type that only crosses a socket. A `json` tag
// marks a type that is also printed by the CLI's --json output; the
// CBOR library falls back to json tags when cbor tags are absent. A
// field never carries both.
package codec
