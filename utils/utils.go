// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Miscellaneous bit field and byte slice helpers.

package utils

import (
	"encoding/binary"
	"strings"
)

// Bits returns the width-bit field of b whose least significant bit is at position pos.
func Bits(b byte, pos, width uint) uint8 {
	return (b >> pos) & mask(width)
}

// Bit reports whether the single bit at position pos of b is set.
func Bit(b byte, pos uint) bool {
	return Bits(b, pos, 1) == 1
}

// SetBits returns b with the width-bit field at position pos replaced by v. Bits of v above
// width are discarded.
func SetBits(b byte, pos, width uint, v uint8) byte {
	m := mask(width) << pos
	return (b &^ m) | ((v << pos) & m)
}

// SetBit returns b with the bit at position pos set or cleared.
func SetBit(b byte, pos uint, on bool) byte {
	if on {
		return SetBits(b, pos, 1, 1)
	}

	return SetBits(b, pos, 1, 0)
}

func mask(width uint) uint8 {
	return uint8(1<<width - 1)
}

// Uint16 decodes a big-endian uint16 at offset off, returning 0 if it would read past the end
// of b.
func Uint16(b []byte, off int) uint16 {
	if off < 0 || off+2 > len(b) {
		return 0
	}

	return binary.BigEndian.Uint16(b[off:])
}

// Uint32 decodes a big-endian uint32 at offset off, returning 0 if it would read past the end
// of b.
func Uint32(b []byte, off int) uint32 {
	if off < 0 || off+4 > len(b) {
		return 0
	}

	return binary.BigEndian.Uint32(b[off:])
}

// Byte returns b[off], or 0 if off is outside of b.
func Byte(b []byte, off int) byte {
	if off < 0 || off >= len(b) {
		return 0
	}

	return b[off]
}

// HexDump formats b as space separated hex octets, 16 per line.
func HexDump(b []byte) string {
	var sb strings.Builder

	const digits = "0123456789abcdef"

	for i, c := range b {
		if i > 0 {
			if i%16 == 0 {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte(digits[c>>4])
		sb.WriteByte(digits[c&0x0f])
	}

	return sb.String()
}
