// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package ssp decodes and encodes the tape data encryption pages carried by the SCSI
// SECURITY PROTOCOL IN and SECURITY PROTOCOL OUT commands (SSC-4, security protocol 20h).
//
// All page types are read-only views over a caller supplied buffer. Every multi-byte field is
// big-endian on the wire. Length fields originate from the device and are validated before
// they are used to locate anything else in the buffer.
package ssp

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/dswarbrick/stenc/utils"
)

const (
	// Security protocol for tape data encryption
	TapeDataEncryption = 0x20

	// SECURITY PROTOCOL IN pages
	PageDeviceEncryptionCapabilities = 0x0010
	PageDeviceEncryptionStatus       = 0x0020
	PageNextBlockEncryptionStatus    = 0x0021

	// SECURITY PROTOCOL OUT pages
	PageSetDataEncryption = 0x0010

	// Size of the common page header
	HeaderSize = 4

	// Sizes of the fixed regions, including the page header
	DESSize  = 24
	SDESize  = 20
	NBESSize = 16
	DECSize  = 20

	// Size of a KAD or algorithm descriptor header
	RecordHeaderSize = 4

	// Size of a complete algorithm descriptor, including its header
	AlgorithmDescriptorSize = 24

	// Allocation length used when reading pages from a device
	PageAllocation = 8192
)

// ErrMalformedPage is matched by every *MalformedPageError via errors.Is.
var ErrMalformedPage = errors.New("malformed page")

// MalformedPageError reports a page whose declared lengths are inconsistent with its buffer,
// or a chained record that would overrun the page boundary.
type MalformedPageError struct {
	PageCode uint16
	Offset   int
	Reason   string
}

func (e *MalformedPageError) Error() string {
	return fmt.Sprintf("malformed page 0x%04x at offset %d: %s", e.PageCode, e.Offset, e.Reason)
}

func (e *MalformedPageError) Is(target error) bool {
	return target == ErrMalformedPage
}

func malformed(code uint16, off int, format string, args ...interface{}) error {
	return &MalformedPageError{PageCode: code, Offset: off, Reason: fmt.Sprintf(format, args...)}
}

// PageHeader is the 4-byte header common to every SPIN and SPOUT page.
type PageHeader struct {
	PageCode uint16
	Length   uint16 // Bytes following the header
}

// ParseHeader decodes the page header at the start of buf.
func ParseHeader(buf []byte) (PageHeader, error) {
	if len(buf) < HeaderSize {
		return PageHeader{}, malformed(0, 0, "need %d header bytes, have %d", HeaderSize, len(buf))
	}

	return PageHeader{
		PageCode: utils.Uint16(buf, 0),
		Length:   utils.Uint16(buf, 2),
	}, nil
}

// page is the validated region of a buffer holding one page: exactly header plus declared
// length bytes.
type page struct {
	buf []byte
}

// parsePage checks that buf holds a page with the expected code whose fixed region is
// fixedSize bytes, and that the declared length neither falls short of the fixed region nor
// extends past the end of buf.
func parsePage(buf []byte, code uint16, fixedSize int) (page, error) {
	if len(buf) < fixedSize {
		return page{}, malformed(code, 0, "need %d bytes for fixed region, have %d", fixedSize, len(buf))
	}

	hdr, _ := ParseHeader(buf)

	if hdr.PageCode != code {
		return page{}, malformed(code, 0, "unexpected page code 0x%04x", hdr.PageCode)
	}

	end := HeaderSize + int(hdr.Length)

	if end < fixedSize {
		return page{}, malformed(code, 2, "declared length %d shorter than fixed region", hdr.Length)
	}

	if end > len(buf) {
		return page{}, malformed(code, 2, "declared length %d exceeds buffer of %d bytes", hdr.Length, len(buf))
	}

	return page{buf: buf[:end]}, nil
}

// PageCode returns the page code from the page header.
func (p page) PageCode() uint16 {
	return utils.Uint16(p.buf, 0)
}

// Length returns the number of bytes following the page header.
func (p page) Length() uint16 {
	return utils.Uint16(p.buf, 2)
}

// Bytes returns the raw page, bounded to its declared length.
func (p page) Bytes() []byte {
	return p.buf
}

// EncryptMode is the encryption mode of a data encryption page.
type EncryptMode uint8

const (
	EncryptOff      EncryptMode = 0
	EncryptExternal EncryptMode = 1
	EncryptOn       EncryptMode = 2
)

func (m EncryptMode) String() string {
	switch m {
	case EncryptOff:
		return "off"
	case EncryptExternal:
		return "external"
	case EncryptOn:
		return "on"
	}

	return fmt.Sprintf("unknown (0x%02x)", uint8(m))
}

// ParseEncryptMode converts a mode name as produced by EncryptMode.String.
func ParseEncryptMode(s string) (EncryptMode, error) {
	for _, m := range []EncryptMode{EncryptOff, EncryptExternal, EncryptOn} {
		if s == m.String() {
			return m, nil
		}
	}

	return 0, errors.Errorf("invalid encryption mode %q", s)
}

// DecryptMode is the decryption mode of a data encryption page.
type DecryptMode uint8

const (
	DecryptOff   DecryptMode = 0
	DecryptRaw   DecryptMode = 1
	DecryptOn    DecryptMode = 2
	DecryptMixed DecryptMode = 3
)

func (m DecryptMode) String() string {
	switch m {
	case DecryptOff:
		return "off"
	case DecryptRaw:
		return "raw"
	case DecryptOn:
		return "on"
	case DecryptMixed:
		return "mixed"
	}

	return fmt.Sprintf("unknown (0x%02x)", uint8(m))
}

// ParseDecryptMode converts a mode name as produced by DecryptMode.String.
func ParseDecryptMode(s string) (DecryptMode, error) {
	for _, m := range []DecryptMode{DecryptOff, DecryptRaw, DecryptOn, DecryptMixed} {
		if s == m.String() {
			return m, nil
		}
	}

	return 0, errors.Errorf("invalid decryption mode %q", s)
}

// KADFormat describes how key-associated data such as a key name is encoded.
type KADFormat uint8

const (
	KADFormatUnspecified KADFormat = 0
	KADFormatBinary      KADFormat = 1
	KADFormatASCII       KADFormat = 2
)

func (f KADFormat) String() string {
	switch f {
	case KADFormatUnspecified:
		return "unspecified"
	case KADFormatBinary:
		return "binary key name"
	case KADFormatASCII:
		return "ascii key name"
	}

	return fmt.Sprintf("unknown (0x%02x)", uint8(f))
}

// Scope is the scope of a data encryption configuration.
type Scope uint8

const (
	ScopePublic     Scope = 0
	ScopeLocal      Scope = 1
	ScopeAllITNexus Scope = 2
)

func (s Scope) String() string {
	switch s {
	case ScopePublic:
		return "public"
	case ScopeLocal:
		return "local"
	case ScopeAllITNexus:
		return "all I_T nexus"
	}

	return fmt.Sprintf("unknown (%d)", uint8(s))
}

// RDMC is the raw decryption mode control policy requested by a set data encryption page.
type RDMC uint8

const (
	RDMCAlgorithmDefault RDMC = 0
	RDMCEnabled          RDMC = 2
	RDMCDisabled         RDMC = 3
)

func (r RDMC) String() string {
	switch r {
	case RDMCAlgorithmDefault:
		return "algorithm default"
	case RDMCEnabled:
		return "enabled"
	case RDMCDisabled:
		return "disabled"
	}

	return fmt.Sprintf("unknown (%d)", uint8(r))
}

// Security algorithm codes reported in algorithm descriptors
const (
	AlgorithmAES256GCM128 = 0x00010014
)

// AlgorithmName returns a readable name for a security algorithm code.
func AlgorithmName(code uint32) string {
	switch code {
	case AlgorithmAES256GCM128:
		return "AES-256-GCM-128"
	}

	return fmt.Sprintf("unknown (0x%08x)", code)
}
