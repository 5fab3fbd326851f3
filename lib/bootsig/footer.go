// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bootsig

import (
	"encoding/asn1"
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// FormatVersion is the only footer format this package reads or
// writes.
const FormatVersion = 1

// DefaultTarget is the partition name bound into signatures when the
// caller does not name one.
const DefaultTarget = "/boot"

var (
	ErrMalformedFooter      = errors.New("bootsig: malformed signature footer")
	ErrUnsupportedAlgorithm = errors.New("bootsig: unsupported signature algorithm")
	ErrUnsupportedKey       = errors.New("bootsig: unsupported key type")
	ErrNotSigned            = errors.New("bootsig: image is not signed")
	ErrLengthMismatch       = errors.New("bootsig: signed length does not match image")
)

// Footer is the decoded BootSignature structure.
type Footer struct {
	FormatVersion int64

	// Certificate is the DER encoding of the signer's X.509
	// certificate.
	Certificate []byte

	Algorithm asn1.ObjectIdentifier

	// AlgorithmParams is the DER of the AlgorithmIdentifier parameters,
	// or nil when absent.
	AlgorithmParams []byte

	Target string
	Length int64

	Signature []byte
}

// AuthenticatedAttributes returns the DER encoding of the
// SEQUENCE { PrintableString target, INTEGER length } that is appended
// to the signable region before signing.
func AuthenticatedAttributes(target string, length int64) ([]byte, error) {
	if !printable(target) {
		return nil, fmt.Errorf("bootsig: target %q is not a PrintableString", target)
	}
	var builder cryptobyte.Builder
	addAttributes(&builder, target, length)
	return builder.Bytes()
}

func addAttributes(builder *cryptobyte.Builder, target string, length int64) {
	builder.AddASN1(cbasn1.SEQUENCE, func(attrs *cryptobyte.Builder) {
		attrs.AddASN1(cbasn1.PrintableString, func(value *cryptobyte.Builder) {
			value.AddBytes([]byte(target))
		})
		attrs.AddASN1Int64(length)
	})
}

// Marshal returns the DER encoding of the footer.
func (f *Footer) Marshal() ([]byte, error) {
	if !printable(f.Target) {
		return nil, fmt.Errorf("bootsig: target %q is not a PrintableString", f.Target)
	}
	if len(f.Certificate) == 0 {
		return nil, errors.New("bootsig: footer has no certificate")
	}
	var builder cryptobyte.Builder
	builder.AddASN1(cbasn1.SEQUENCE, func(footer *cryptobyte.Builder) {
		footer.AddASN1Int64(f.FormatVersion)
		// The certificate is already a complete DER element.
		footer.AddBytes(f.Certificate)
		footer.AddASN1(cbasn1.SEQUENCE, func(algorithm *cryptobyte.Builder) {
			algorithm.AddASN1ObjectIdentifier(f.Algorithm)
			if f.AlgorithmParams != nil {
				algorithm.AddBytes(f.AlgorithmParams)
			}
		})
		addAttributes(footer, f.Target, f.Length)
		footer.AddASN1OctetString(f.Signature)
	})
	encoded, err := builder.Bytes()
	if err != nil {
		return nil, fmt.Errorf("bootsig: encoding footer: %w", err)
	}
	return encoded, nil
}

// ParseFooter decodes a BootSignature from the start of data. Bytes
// after the outer SEQUENCE are ignored, since signed images are often
// padded out to a partition or block boundary.
func ParseFooter(data []byte) (*Footer, error) {
	input := cryptobyte.String(data)
	var body cryptobyte.String
	if !input.ReadASN1(&body, cbasn1.SEQUENCE) {
		return nil, fmt.Errorf("%w: no outer SEQUENCE", ErrMalformedFooter)
	}

	footer := &Footer{}
	if !body.ReadASN1Integer(&footer.FormatVersion) {
		return nil, fmt.Errorf("%w: format version", ErrMalformedFooter)
	}
	if footer.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrMalformedFooter, footer.FormatVersion)
	}

	var certificate cryptobyte.String
	if !body.ReadASN1Element(&certificate, cbasn1.SEQUENCE) {
		return nil, fmt.Errorf("%w: certificate", ErrMalformedFooter)
	}
	footer.Certificate = append([]byte(nil), certificate...)

	var algorithm cryptobyte.String
	if !body.ReadASN1(&algorithm, cbasn1.SEQUENCE) ||
		!algorithm.ReadASN1ObjectIdentifier(&footer.Algorithm) {
		return nil, fmt.Errorf("%w: algorithm identifier", ErrMalformedFooter)
	}
	if !algorithm.Empty() {
		footer.AlgorithmParams = append([]byte(nil), algorithm...)
	}

	var attributes, target cryptobyte.String
	if !body.ReadASN1(&attributes, cbasn1.SEQUENCE) ||
		!attributes.ReadASN1(&target, cbasn1.PrintableString) ||
		!attributes.ReadASN1Integer(&footer.Length) {
		return nil, fmt.Errorf("%w: authenticated attributes", ErrMalformedFooter)
	}
	footer.Target = string(target)

	if !body.ReadASN1Bytes(&footer.Signature, cbasn1.OCTET_STRING) {
		return nil, fmt.Errorf("%w: signature", ErrMalformedFooter)
	}
	if !body.Empty() {
		return nil, fmt.Errorf("%w: %d unexpected bytes after signature", ErrMalformedFooter, len(body))
	}
	return footer, nil
}

// printable reports whether s uses only the ASN.1 PrintableString
// alphabet.
func printable(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case c == ' ', c == '\'', c == '(', c == ')', c == '+', c == ',',
			c == '-', c == '.', c == '/', c == ':', c == '=', c == '?':
		default:
			return false
		}
	}
	return true
}
