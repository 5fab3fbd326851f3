// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bootsig

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Magic opens every boot image.
const Magic = "ANDROID!"

const (
	// v0HeaderSize covers the fields up to and including
	// header_version.
	v0HeaderSize = 44

	v1RecoveryDTBOOffset = 1632
	v1HeaderSize         = 1648
	v2DTBOffset          = 1648
	v2HeaderSize         = 1660

	// Values at or above this in the header_version slot are a legacy
	// dt/extra size, not a version.
	maxHeaderVersion = 8

	// Page sizes at or above this mark a PXA header, which is not an
	// Android boot image.
	pxaPageSize = 0x02000000
)

var (
	ErrInvalidHeader = errors.New("bootsig: invalid image header")
	ErrImageTooShort = errors.New("bootsig: image shorter than its signable size")
)

// Header holds the size fields of a boot image header.
type Header struct {
	KernelSize  int64
	RamdiskSize int64
	SecondSize  int64
	PageSize    int64

	// Version is the header version for v1 and v2 images. For legacy
	// images it is zero and ExtraSize holds the dt/extra size.
	Version   int
	ExtraSize int64

	RecoveryDTBOSize int64
	DTBSize          int64
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidHeader, fmt.Sprintf(format, args...))
}

// ParseHeader decodes the little-endian header at the start of image.
func ParseHeader(image []byte) (Header, error) {
	if len(image) < v0HeaderSize {
		return Header{}, invalid("%d bytes is shorter than the %d-byte header", len(image), v0HeaderSize)
	}
	if !bytes.Equal(image[:len(Magic)], []byte(Magic)) {
		return Header{}, invalid("missing %s magic", Magic)
	}

	field := func(offset int) int64 {
		return int64(int32(binary.LittleEndian.Uint32(image[offset : offset+4])))
	}

	header := Header{
		KernelSize:  field(8),
		RamdiskSize: field(16),
		SecondSize:  field(24),
		PageSize:    field(36),
	}
	if header.PageSize <= 0 {
		return Header{}, invalid("page size %d", header.PageSize)
	}
	if header.PageSize >= pxaPageSize {
		return Header{}, invalid("PXA header detected")
	}

	versionField := field(40)
	if versionField > 0 && versionField < maxHeaderVersion {
		header.Version = int(versionField)
		minimum := v1HeaderSize
		if header.Version == 2 {
			minimum = v2HeaderSize
		}
		if len(image) < minimum {
			return Header{}, invalid("version %d header needs %d bytes, have %d", header.Version, minimum, len(image))
		}
		header.RecoveryDTBOSize = field(v1RecoveryDTBOOffset)
		declaredSize := field(v1RecoveryDTBOOffset + 12)
		end := int64(v1HeaderSize)
		if header.Version == 2 {
			header.DTBSize = field(v2DTBOffset)
			end = v2HeaderSize
		}
		if declaredSize != end {
			return Header{}, invalid("header size %d, want %d for version %d", declaredSize, end, header.Version)
		}
	} else {
		header.ExtraSize = versionField
	}

	for name, size := range map[string]int64{
		"kernel":        header.KernelSize,
		"ramdisk":       header.RamdiskSize,
		"second":        header.SecondSize,
		"extra":         header.ExtraSize,
		"recovery dtbo": header.RecoveryDTBOSize,
		"dtb":           header.DTBSize,
	} {
		if size < 0 {
			return Header{}, invalid("negative %s size %d", name, size)
		}
	}
	return header, nil
}

// SignableSize returns the number of leading bytes of the image that a
// signature covers: the header page plus every section, each rounded
// up to the page size.
func (h Header) SignableSize() (int, error) {
	align := func(n int64) int64 {
		return (n + h.PageSize - 1) / h.PageSize * h.PageSize
	}
	length := h.PageSize +
		align(h.KernelSize) +
		align(h.RamdiskSize) +
		align(h.SecondSize) +
		align(h.ExtraSize) +
		align(h.RecoveryDTBOSize) +
		align(h.DTBSize)
	length = align(length)
	if length <= 0 || length > math.MaxInt32 {
		return 0, invalid("signable length %d", length)
	}
	return int(length), nil
}

// SignableSize parses the header of image and returns its signable
// size.
func SignableSize(image []byte) (int, error) {
	header, err := ParseHeader(image)
	if err != nil {
		return 0, err
	}
	return header.SignableSize()
}
