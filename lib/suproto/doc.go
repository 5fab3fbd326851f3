// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package suproto speaks the broker's per-request socket protocol.
//
// For every su invocation the broker creates a Unix socket and asks
// suauth to connect to it. Over that connection the broker sends one
// request record:
//
//	repeat {
//	    int32 nameLen   // native byte order, 0..20
//	    name [nameLen]
//	    int32 valueLen  // native byte order, 0..256
//	    value [valueLen]
//	} until name == "eof"
//
// suauth answers with the bare string "socket:ALLOW" or "socket:DENY"
// and closes the connection. There is no acknowledgement.
//
// The broker deletes its socket file when the su process goes away.
// [WatchRemoval] turns that into a channel close so a pending prompt
// can be cancelled.
package suproto
