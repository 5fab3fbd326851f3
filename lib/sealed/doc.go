// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed keeps boot signing keys encrypted at rest with age.
//
// A sealed key is an ASCII-armored age file ("-----BEGIN AGE ENCRYPTED
// FILE-----") whose plaintext is the PKCS#8 or PEM signing key. [Seal]
// produces one for a set of x25519 recipients; [Open] decrypts it with
// an identity held in a [secret.Buffer] and returns the plaintext in
// another. Binary (unarmored) age files are accepted by Open too.
//
// Identity files use the age format: one AGE-SECRET-KEY-1 per line,
// with '#' comments, as written by age-keygen or [GenerateKeypair].
package sealed
