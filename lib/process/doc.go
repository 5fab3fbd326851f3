// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers shared by the suauth
// binaries. [Fatal] reports an error returned from run() before the
// structured logger exists and exits non-zero.
package process
