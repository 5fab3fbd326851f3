// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bootsig

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/asn1"
	"fmt"

	// Registers the hash implementations named in algorithms.
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
)

type scheme int

const (
	schemeRSA scheme = iota
	schemeECDSA
)

type algorithm struct {
	name   string
	oid    asn1.ObjectIdentifier
	scheme scheme
	hash   crypto.Hash
}

var (
	oidSHA1WithRSA     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 5}
	oidSHA256WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	oidSHA384WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}
	oidSHA512WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}
	oidECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	oidECDSAWithSHA384 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}
	oidECDSAWithSHA512 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}
)

var algorithms = []algorithm{
	{"SHA1withRSA", oidSHA1WithRSA, schemeRSA, crypto.SHA1},
	{"SHA256withRSA", oidSHA256WithRSA, schemeRSA, crypto.SHA256},
	{"SHA384withRSA", oidSHA384WithRSA, schemeRSA, crypto.SHA384},
	{"SHA512withRSA", oidSHA512WithRSA, schemeRSA, crypto.SHA512},
	{"SHA256withECDSA", oidECDSAWithSHA256, schemeECDSA, crypto.SHA256},
	{"SHA384withECDSA", oidECDSAWithSHA384, schemeECDSA, crypto.SHA384},
	{"SHA512withECDSA", oidECDSAWithSHA512, schemeECDSA, crypto.SHA512},
}

// DER of an ASN.1 NULL, the parameters RSA algorithm identifiers carry.
var asn1NULL = []byte{0x05, 0x00}

func algorithmForOID(oid asn1.ObjectIdentifier) (algorithm, error) {
	for _, candidate := range algorithms {
		if candidate.oid.Equal(oid) {
			return candidate, nil
		}
	}
	return algorithm{}, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, oid)
}

// algorithmForKey picks the signature algorithm a key signs with.
func algorithmForKey(public crypto.PublicKey) (algorithm, error) {
	switch key := public.(type) {
	case *rsa.PublicKey:
		return algorithmForOID(oidSHA256WithRSA)
	case *ecdsa.PublicKey:
		switch key.Curve {
		case elliptic.P256():
			return algorithmForOID(oidECDSAWithSHA256)
		case elliptic.P384():
			return algorithmForOID(oidECDSAWithSHA384)
		case elliptic.P521():
			return algorithmForOID(oidECDSAWithSHA512)
		}
		return algorithm{}, fmt.Errorf("%w: ECDSA curve %s", ErrUnsupportedKey, key.Curve.Params().Name)
	}
	return algorithm{}, fmt.Errorf("%w: %T", ErrUnsupportedKey, public)
}

// AlgorithmName returns the conventional name of the footer's signature
// algorithm, or the dotted OID when it is not one this package knows.
func (f *Footer) AlgorithmName() string {
	alg, err := algorithmForOID(f.Algorithm)
	if err != nil {
		return f.Algorithm.String()
	}
	return alg.name
}
