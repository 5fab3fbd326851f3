// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/bureau-foundation/suauth/lib/secret"
)

// Keypair holds an age x25519 keypair. The caller must call Close.
type Keypair struct {
	// PrivateKey is the AGE-SECRET-KEY-1... identity. Never log it.
	PrivateKey *secret.Buffer

	// PublicKey is the age1... recipient.
	PublicKey string
}

// Close releases the private key memory.
func (k *Keypair) Close() error {
	if k.PrivateKey != nil {
		return k.PrivateKey.Close()
	}
	return nil
}

// GenerateKeypair generates a new age x25519 keypair.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("sealed: generating age keypair: %w", err)
	}
	// The identity string itself stays on the heap until collected;
	// age offers no other accessor.
	privateKey, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("sealed: protecting private key: %w", err)
	}
	return &Keypair{
		PrivateKey: privateKey,
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// IdentityFile renders the keypair in age identity file form.
func (k *Keypair) IdentityFile(created string) []byte {
	var buffer bytes.Buffer
	fmt.Fprintf(&buffer, "# created: %s\n# public key: %s\n", created, k.PublicKey)
	buffer.Write(k.PrivateKey.Bytes())
	buffer.WriteByte('\n')
	return buffer.Bytes()
}

// Seal encrypts plaintext to the given age recipients and returns an
// armored age file.
func Seal(plaintext []byte, recipientKeys []string) ([]byte, error) {
	if len(recipientKeys) == 0 {
		return nil, errors.New("sealed: at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("sealed: parsing recipient %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var output bytes.Buffer
	armored := armor.NewWriter(&output)
	writer, err := age.Encrypt(armored, recipients...)
	if err != nil {
		return nil, fmt.Errorf("sealed: creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("sealed: encrypting: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("sealed: finalizing encryption: %w", err)
	}
	if err := armored.Close(); err != nil {
		return nil, fmt.Errorf("sealed: finalizing armor: %w", err)
	}
	return output.Bytes(), nil
}

// Open decrypts a sealed file with the identities in identityFile. The
// identity buffer is borrowed, not closed. The caller must Close the
// returned plaintext.
func Open(ciphertext []byte, identityFile *secret.Buffer) (*secret.Buffer, error) {
	identities, err := age.ParseIdentities(bytes.NewReader(identityFile.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("sealed: parsing identity: %w", err)
	}

	var source io.Reader = bytes.NewReader(ciphertext)
	buffered := bufio.NewReader(source)
	if head, _ := buffered.Peek(len(armor.Header)); string(head) == armor.Header {
		source = armor.NewReader(buffered)
	} else {
		source = buffered
	}

	reader, err := age.Decrypt(source, identities...)
	if err != nil {
		return nil, fmt.Errorf("sealed: decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("sealed: reading plaintext: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, errors.New("sealed: sealed file is empty")
	}
	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		return nil, fmt.Errorf("sealed: protecting plaintext: %w", err)
	}
	return buffer, nil
}

// IsSealed reports whether data looks like an age file, armored or
// binary.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, []byte(armor.Header)) ||
		bytes.HasPrefix(data, []byte("age-encryption.org/"))
}

// ParsePublicKey validates an age recipient string.
func ParsePublicKey(publicKey string) error {
	if _, err := age.ParseX25519Recipient(publicKey); err != nil {
		return fmt.Errorf("sealed: invalid age public key: %w", err)
	}
	return nil
}
