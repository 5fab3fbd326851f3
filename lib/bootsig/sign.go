// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bootsig

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
)

// SignOptions configures Sign.
type SignOptions struct {
	// Target is the partition name bound into the signature.
	// Defaults to DefaultTarget.
	Target string

	Logger *slog.Logger
}

// Sign signs the boot image with signer and returns the signable
// region with the signature footer appended. Bytes past the signable
// region (an old footer, padding) are dropped. The certificate must
// carry signer's public key.
func Sign(image []byte, signer crypto.Signer, certificate *x509.Certificate, options SignOptions) ([]byte, error) {
	if options.Target == "" {
		options.Target = DefaultTarget
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if signer == nil || certificate == nil {
		return nil, errors.New("bootsig: signing needs both a key and a certificate")
	}

	size, err := SignableSize(image)
	if err != nil {
		return nil, err
	}
	if len(image) < size {
		return nil, fmt.Errorf("%w: have %d bytes, header describes %d", ErrImageTooShort, len(image), size)
	}
	if len(image) > size {
		logger.Info("truncating boot image to signable size",
			"image_size", len(image),
			"signable_size", size,
		)
		image = image[:size]
	}

	if !publicKeysEqual(signer.Public(), certificate.PublicKey) {
		return nil, errors.New("bootsig: certificate does not match the signing key")
	}
	alg, err := algorithmForKey(signer.Public())
	if err != nil {
		return nil, err
	}

	attributes, err := AuthenticatedAttributes(options.Target, int64(size))
	if err != nil {
		return nil, err
	}
	digest := alg.hash.New()
	digest.Write(image)
	digest.Write(attributes)

	// crypto.Signer produces PKCS#1 v1.5 for RSA and ASN.1 DER for
	// ECDSA when given a bare crypto.Hash.
	signature, err := signer.Sign(rand.Reader, digest.Sum(nil), alg.hash)
	if err != nil {
		return nil, fmt.Errorf("bootsig: signing: %w", err)
	}

	footer := &Footer{
		FormatVersion: FormatVersion,
		Certificate:   certificate.Raw,
		Algorithm:     alg.oid,
		Target:        options.Target,
		Length:        int64(size),
		Signature:     signature,
	}
	if alg.scheme == schemeRSA {
		footer.AlgorithmParams = asn1NULL
	}
	encoded, err := footer.Marshal()
	if err != nil {
		return nil, err
	}

	signed := make([]byte, 0, size+len(encoded))
	signed = append(signed, image...)
	signed = append(signed, encoded...)
	logger.Info("signed boot image",
		"target", options.Target,
		"algorithm", alg.name,
		"signable_size", size,
		"footer_size", len(encoded),
	)
	return signed, nil
}

func publicKeysEqual(a, b crypto.PublicKey) bool {
	key, ok := a.(interface{ Equal(crypto.PublicKey) bool })
	return ok && key.Equal(b)
}

// Split returns the signable region of image and the bytes after it.
func Split(image []byte) (signable, trailer []byte, err error) {
	size, err := SignableSize(image)
	if err != nil {
		return nil, nil, err
	}
	if size >= len(image) {
		return image, nil, nil
	}
	return image[:size], image[size:], nil
}

func allZero(data []byte) bool {
	return len(bytes.Trim(data, "\x00")) == 0
}
