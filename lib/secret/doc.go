// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds key material outside the Go heap.
//
// [Buffer] allocates its memory with mmap(MAP_ANONYMOUS), locks it into
// RAM with mlock, and excludes it from core dumps with
// madvise(MADV_DONTDUMP). Close zeros, unlocks, and unmaps it. The
// garbage collector never sees the region, so it cannot leave copies
// behind.
//
// suauth stores two kinds of secret here: the age identity that unseals
// a boot signing key, and the decrypted signing key itself.
package secret
