// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the suauth command tree. Each top-level
// command lives in its own file; [Root] wires them together around an
// [Env] that supplies output, logging, and the clock.
package commands
