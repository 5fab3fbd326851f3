// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bootsig signs and verifies Android boot images with the
// verified-boot 1.0 signature footer.
//
// A boot image starts with an "ANDROID!" header that gives the sizes
// of its sections. The signable region is the header page plus every
// page-aligned section; [SignableSize] computes it. A signed image is
// that region followed directly by a DER footer:
//
//	BootSignature ::= SEQUENCE {
//	    formatVersion          INTEGER,          -- always 1
//	    certificate            Certificate,
//	    algorithmIdentifier    AlgorithmIdentifier,
//	    authenticatedAttributes SEQUENCE {
//	        target PrintableString,              -- "/boot" or "/recovery"
//	        length INTEGER                       -- signable size
//	    },
//	    signature              OCTET STRING
//	}
//
// The signature covers the signable region followed by the DER of
// authenticatedAttributes, which binds the target name and length so
// a footer cannot be replayed onto a different image.
//
// RSA keys sign with SHA-256; ECDSA keys on P-256, P-384, and P-521
// sign with SHA-256, SHA-384, and SHA-512. Verification additionally
// accepts SHA-1, SHA-384, and SHA-512 RSA footers produced by older
// tools.
package bootsig
