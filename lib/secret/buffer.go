// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// maxFileSize bounds ReadFile. Signing keys and age identities are a
// few KB.
const maxFileSize = 1 << 20

// Buffer holds a secret in an anonymous mapping that is locked into RAM
// and excluded from core dumps. Bytes panics after Close. A Buffer
// must not be copied.
type Buffer struct {
	mu     sync.Mutex
	region []byte
	size   int
	closed bool
}

// New returns a zero-filled Buffer of size bytes. The caller must
// Close it.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}
	region, err := lockedRegion(size)
	if err != nil {
		return nil, err
	}
	return &Buffer{region: region, size: size}, nil
}

func lockedRegion(size int) ([]byte, error) {
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap: %w", err)
	}
	if err := unix.Mlock(region); err != nil {
		unix.Munmap(region)
		return nil, fmt.Errorf("secret: mlock: %w", err)
	}
	if err := unix.Madvise(region, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(region)
		unix.Munmap(region)
		return nil, fmt.Errorf("secret: madvise(MADV_DONTDUMP): %w", err)
	}
	return region, nil
}

// NewFromBytes moves source into a new Buffer. source is zeroed
// whether or not the call succeeds.
func NewFromBytes(source []byte) (*Buffer, error) {
	defer Zero(source)
	if len(source) == 0 {
		return nil, errors.New("secret: empty secret")
	}
	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buffer.region, source)
	return buffer, nil
}

// ReadFile reads a key or identity file into a new Buffer. A regular
// file is read straight into locked memory; "-" reads stdin through a
// heap buffer that is zeroed afterwards. Content is kept byte for
// byte, since keys may be binary DER.
func ReadFile(path string) (*Buffer, error) {
	if path == "-" {
		return readStream("stdin", os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("secret: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("secret: %w", err)
	}
	if !info.Mode().IsRegular() {
		return readStream(path, file)
	}
	size := info.Size()
	switch {
	case size == 0:
		return nil, fmt.Errorf("secret: %s is empty", path)
	case size > maxFileSize:
		return nil, fmt.Errorf("secret: %s is larger than %d bytes", path, maxFileSize)
	}

	buffer, err := New(int(size))
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(file, buffer.region[:size]); err != nil {
		buffer.Close()
		return nil, fmt.Errorf("secret: reading %s: %w", path, err)
	}
	return buffer, nil
}

func readStream(name string, source io.Reader) (*Buffer, error) {
	data, err := io.ReadAll(io.LimitReader(source, maxFileSize+1))
	switch {
	case err != nil:
		Zero(data)
		return nil, fmt.Errorf("secret: reading %s: %w", name, err)
	case len(data) > maxFileSize:
		Zero(data)
		return nil, fmt.Errorf("secret: %s is larger than %d bytes", name, maxFileSize)
	case len(data) == 0:
		return nil, fmt.Errorf("secret: %s is empty", name)
	}
	return NewFromBytes(data)
}

// Bytes returns the secret. The slice aliases the locked region and is
// invalid after Close.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("secret: Bytes on closed buffer")
	}
	return b.region[:b.size]
}

// String copies the secret to the heap for APIs that only take
// strings.
func (b *Buffer) String() string {
	return string(b.Bytes())
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Close wipes and releases the region. Closing twice is a no-op.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	Zero(b.region)

	err := unix.Munlock(b.region)
	if unmapErr := unix.Munmap(b.region); err == nil {
		err = unmapErr
	}
	b.region = nil
	if err != nil {
		return fmt.Errorf("secret: releasing buffer: %w", err)
	}
	return nil
}

// Zero overwrites data with zeros.
func Zero(data []byte) {
	clear(data)
}
