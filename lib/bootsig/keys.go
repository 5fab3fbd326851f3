// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bootsig

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// ParsePrivateKey decodes a signing key. It accepts PKCS#8 in DER or
// PEM form (the .pk8 files of the Android build) and PKCS#1 RSA or
// SEC 1 EC keys in PEM form.
func ParsePrivateKey(data []byte) (crypto.Signer, error) {
	der := data
	if block, _ := pem.Decode(data); block != nil {
		der = block.Bytes
		switch block.Type {
		case "RSA PRIVATE KEY":
			key, err := x509.ParsePKCS1PrivateKey(der)
			if err != nil {
				return nil, fmt.Errorf("bootsig: parsing PKCS#1 key: %w", err)
			}
			return key, nil
		case "EC PRIVATE KEY":
			key, err := x509.ParseECPrivateKey(der)
			if err != nil {
				return nil, fmt.Errorf("bootsig: parsing EC key: %w", err)
			}
			return key, nil
		}
	}

	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("bootsig: parsing PKCS#8 key: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
	if _, err := algorithmForKey(signer.Public()); err != nil {
		return nil, err
	}
	return signer, nil
}

// ParseCertificate decodes an X.509 certificate in DER or PEM form.
func ParseCertificate(data []byte) (*x509.Certificate, error) {
	der := data
	if block, _ := pem.Decode(data); block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, fmt.Errorf("bootsig: PEM block %q is not a certificate", block.Type)
		}
		der = block.Bytes
	}
	if len(der) == 0 {
		return nil, errors.New("bootsig: empty certificate")
	}
	certificate, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("bootsig: parsing certificate: %w", err)
	}
	return certificate, nil
}
