// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for suauth packages.
//
// [SocketDir] returns a short directory under /tmp for Unix sockets,
// since sun_path is limited to 108 bytes and t.TempDir paths can
// exceed it. [WaitForSocket] polls until a server has bound its path.
//
// [RequireReceive], [RequireClosed], and [RequireOpen] wrap the
// select-with-deadline pattern so tests never block forever on a
// channel. They are the only place the test suite waits on the wall
// clock; everything else is driven by clock.Fake.
//
// All helpers fail the test with t.Fatalf rather than returning errors.
package testutil
