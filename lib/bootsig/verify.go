// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bootsig

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"math/big"
)

// Verification is the detail behind a verdict returned by Inspect.
type Verification struct {
	Valid bool

	// Footer is nil when the image carries no parseable footer.
	Footer *Footer

	SignableSize int

	// Signer is the certificate whose key checked the signature: the
	// trusted override when one was given, else the embedded one.
	Signer *x509.Certificate
}

// Verify reports whether image carries a valid signature footer. When
// trusted is non-nil its public key is used instead of the certificate
// embedded in the footer. A false verdict comes with an error saying
// why; an unsigned image reports ErrNotSigned.
func Verify(image []byte, trusted *x509.Certificate) (bool, error) {
	result, err := Inspect(image, trusted)
	return result.Valid, err
}

// Inspect verifies image like Verify and also returns what it found.
func Inspect(image []byte, trusted *x509.Certificate) (Verification, error) {
	signable, trailer, err := Split(image)
	if err != nil {
		return Verification{}, err
	}
	result := Verification{SignableSize: len(signable)}
	if len(trailer) == 0 || allZero(trailer) {
		return result, ErrNotSigned
	}

	footer, err := ParseFooter(trailer)
	if err != nil {
		return result, err
	}
	result.Footer = footer

	signer := trusted
	if signer == nil {
		signer, err = x509.ParseCertificate(footer.Certificate)
		if err != nil {
			return result, fmt.Errorf("%w: embedded certificate: %v", ErrMalformedFooter, err)
		}
	}
	result.Signer = signer

	if footer.Length != int64(len(signable)) {
		return result, fmt.Errorf("%w: footer says %d, header says %d", ErrLengthMismatch, footer.Length, len(signable))
	}

	alg, err := algorithmForOID(footer.Algorithm)
	if err != nil {
		return result, err
	}
	attributes, err := AuthenticatedAttributes(footer.Target, footer.Length)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrMalformedFooter, err)
	}
	digest := alg.hash.New()
	digest.Write(signable)
	digest.Write(attributes)
	sum := digest.Sum(nil)

	switch alg.scheme {
	case schemeRSA:
		key, ok := signer.PublicKey.(*rsa.PublicKey)
		if !ok {
			return result, fmt.Errorf("%w: %s footer with %T certificate key", ErrUnsupportedKey, alg.name, signer.PublicKey)
		}
		if err := rsa.VerifyPKCS1v15(key, alg.hash, sum, footer.Signature); err != nil {
			return result, fmt.Errorf("bootsig: signature does not verify: %w", err)
		}
	case schemeECDSA:
		key, ok := signer.PublicKey.(*ecdsa.PublicKey)
		if !ok {
			return result, fmt.Errorf("%w: %s footer with %T certificate key", ErrUnsupportedKey, alg.name, signer.PublicKey)
		}
		if !verifyECDSA(key, sum, footer.Signature) {
			return result, errors.New("bootsig: signature does not verify")
		}
	}

	result.Valid = true
	return result, nil
}

// verifyECDSA accepts both the ASN.1 DER signature form and the
// fixed-width r||s form some signers emit.
func verifyECDSA(key *ecdsa.PublicKey, digest, signature []byte) bool {
	if ecdsa.VerifyASN1(key, digest, signature) {
		return true
	}
	width := (key.Curve.Params().BitSize + 7) / 8
	if len(signature) != 2*width {
		return false
	}
	r := new(big.Int).SetBytes(signature[:width])
	s := new(big.Int).SetBytes(signature[width:])
	return ecdsa.Verify(key, digest, r, s)
}
