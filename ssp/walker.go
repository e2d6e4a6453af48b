// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Walking of chained, length-prefixed records (KADs and algorithm descriptors).

package ssp

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dswarbrick/stenc/utils"
)

// recordWalker steps through contiguous records of the form
//
//	byte 0..1  record specific
//	byte 2..3  length of the data following the 4-byte header
//
// between pos and end. It never reads at or beyond end.
type recordWalker struct {
	code uint16
	buf  []byte
	pos  int
	end  int
	err  error
	done bool
}

func newRecordWalker(code uint16, buf []byte, start, end int) *recordWalker {
	w := &recordWalker{code: code, buf: buf, pos: start, end: end}

	switch {
	case end > len(buf):
		w.fail(2, "declared page end %d exceeds buffer of %d bytes", end, len(buf))
	case start > end:
		w.fail(start, "records start beyond declared page end %d", end)
	}

	return w
}

func (w *recordWalker) fail(off int, format string, args ...interface{}) {
	w.err = malformed(w.code, off, format, args...)
	w.done = true
}

// next returns the next complete record, header included. The returned slice has its capacity
// clipped to the record.
func (w *recordWalker) next() ([]byte, bool) {
	if w.done {
		return nil, false
	}

	remaining := w.end - w.pos

	if remaining == 0 {
		w.done = true
		return nil, false
	}

	if remaining < RecordHeaderSize {
		w.fail(w.pos, "%d trailing bytes too short for a record header", remaining)
		return nil, false
	}

	size := RecordHeaderSize + int(utils.Uint16(w.buf, w.pos+2))

	if size > remaining {
		w.fail(w.pos, "record of %d bytes overruns page end by %d bytes", size, size-remaining)
		return nil, false
	}

	rec := w.buf[w.pos : w.pos+size : w.pos+size]
	w.pos += size

	return rec, true
}

// pageEnd returns the offset just past a page in buf, according to its own header.
func pageEnd(buf []byte) (uint16, int) {
	hdr, err := ParseHeader(buf)
	if err != nil {
		return 0, HeaderSize
	}

	return hdr.PageCode, HeaderSize + int(hdr.Length)
}

// KADType identifies the content of a key-associated data record.
type KADType uint8

const (
	KADUnauthenticated KADType = 0 // U-KAD
	KADAuthenticated   KADType = 1 // A-KAD
	KADNonce           KADType = 2
	KADMetadata        KADType = 3 // M-KAD
	KADWrappedKey      KADType = 4 // WK-KAD
)

func (t KADType) String() string {
	switch t {
	case KADUnauthenticated:
		return "unauthenticated key data"
	case KADAuthenticated:
		return "authenticated key data"
	case KADNonce:
		return "nonce"
	case KADMetadata:
		return "metadata key data"
	case KADWrappedKey:
		return "wrapped key data"
	}

	return fmt.Sprintf("unknown (0x%02x)", uint8(t))
}

// KAD is a view of one key-associated data record.
type KAD struct {
	b []byte
}

// Type returns the KAD type.
func (k KAD) Type() KADType {
	return KADType(k.b[0])
}

// Authenticated returns the AUTHENTICATED field, flags bits 2..0.
func (k KAD) Authenticated() uint8 {
	return utils.Bits(k.b[1], 0, 3)
}

// Length returns the number of descriptor bytes.
func (k KAD) Length() uint16 {
	return utils.Uint16(k.b, 2)
}

// Descriptor returns the descriptor bytes of the record.
func (k KAD) Descriptor() []byte {
	return k.b[RecordHeaderSize:]
}

// Name renders the descriptor as a key name in the given format. ASCII names are trimmed of
// trailing NUL and space padding; other formats are shown as hex.
func (k KAD) Name(f KADFormat) string {
	if f == KADFormatASCII {
		return strings.TrimRight(string(k.Descriptor()), "\x00 ")
	}

	return hex.EncodeToString(k.Descriptor())
}

// KADIterator lazily walks the KAD records of a page. It is not restartable.
type KADIterator struct {
	w   *recordWalker
	cur KAD
}

// WalkKADs walks KAD records in buf from offset start up to the end declared by the page
// header at the start of buf. If the declared end lies beyond buf, the walk fails without
// yielding any record.
func WalkKADs(buf []byte, start int) *KADIterator {
	code, end := pageEnd(buf)
	return &KADIterator{w: newRecordWalker(code, buf, start, end)}
}

// Next advances to the next record, returning false at the end of the page or on error.
func (it *KADIterator) Next() bool {
	rec, ok := it.w.next()
	if ok {
		it.cur = KAD{rec}
	}

	return ok
}

// KAD returns the current record.
func (it *KADIterator) KAD() KAD {
	return it.cur
}

// Err returns the error that terminated the walk, if any.
func (it *KADIterator) Err() error {
	return it.w.err
}

// CollectKADs drains it. Records preceding an error are returned along with the error.
func CollectKADs(it *KADIterator) ([]KAD, error) {
	var kads []KAD

	for it.Next() {
		kads = append(kads, it.KAD())
	}

	return kads, it.Err()
}

// AlgorithmDescriptor is a view of one algorithm descriptor from the device encryption
// capabilities page. Fields that lie beyond a short descriptor read as zero.
type AlgorithmDescriptor struct {
	b []byte
}

// Index returns the algorithm index used to select this algorithm.
func (a AlgorithmDescriptor) Index() uint8 {
	return a.b[0]
}

// Length returns the number of bytes following the descriptor header.
func (a AlgorithmDescriptor) Length() uint16 {
	return utils.Uint16(a.b, 2)
}

// Bytes returns the raw descriptor, header included.
func (a AlgorithmDescriptor) Bytes() []byte {
	return a.b
}

func (a AlgorithmDescriptor) flags1() byte { return utils.Byte(a.b, 4) }
func (a AlgorithmDescriptor) flags2() byte { return utils.Byte(a.b, 5) }
func (a AlgorithmDescriptor) flags3() byte { return utils.Byte(a.b, 12) }

// ValidForMountedVolume reports AVFMV, byte 4 bit 7.
func (a AlgorithmDescriptor) ValidForMountedVolume() bool { return utils.Bit(a.flags1(), 7) }

// SDKCapable reports SDK_C, byte 4 bit 6.
func (a AlgorithmDescriptor) SDKCapable() bool { return utils.Bit(a.flags1(), 6) }

// MACCapable reports MAC_C, byte 4 bit 5.
func (a AlgorithmDescriptor) MACCapable() bool { return utils.Bit(a.flags1(), 5) }

// DELBCapable reports DELB_C, byte 4 bit 4.
func (a AlgorithmDescriptor) DELBCapable() bool { return utils.Bit(a.flags1(), 4) }

// DecryptCapabilities returns DECRYPT_C, byte 4 bits 3..2.
func (a AlgorithmDescriptor) DecryptCapabilities() uint8 { return utils.Bits(a.flags1(), 2, 2) }

// EncryptCapabilities returns ENCRYPT_C, byte 4 bits 1..0.
func (a AlgorithmDescriptor) EncryptCapabilities() uint8 { return utils.Bits(a.flags1(), 0, 2) }

// ValidForCurrentPosition returns AVFCP, byte 5 bits 7..6.
func (a AlgorithmDescriptor) ValidForCurrentPosition() uint8 { return utils.Bits(a.flags2(), 6, 2) }

// NonceCapabilities returns NONCE_C, byte 5 bits 5..4.
func (a AlgorithmDescriptor) NonceCapabilities() uint8 { return utils.Bits(a.flags2(), 4, 2) }

// KADFormatCapable reports KADF_C, byte 5 bit 3.
func (a AlgorithmDescriptor) KADFormatCapable() bool { return utils.Bit(a.flags2(), 3) }

// VCELBCapable reports VCELB_C, byte 5 bit 2.
func (a AlgorithmDescriptor) VCELBCapable() bool { return utils.Bit(a.flags2(), 2) }

// UKADFixed reports UKADF, byte 5 bit 1. When set, a U-KAD must be exactly MaxUKADLength long.
func (a AlgorithmDescriptor) UKADFixed() bool { return utils.Bit(a.flags2(), 1) }

// AKADFixed reports AKADF, byte 5 bit 0.
func (a AlgorithmDescriptor) AKADFixed() bool { return utils.Bit(a.flags2(), 0) }

// MaxUKADLength returns the maximum U-KAD length in bytes.
func (a AlgorithmDescriptor) MaxUKADLength() uint16 { return utils.Uint16(a.b, 6) }

// MaxAKADLength returns the maximum A-KAD length in bytes.
func (a AlgorithmDescriptor) MaxAKADLength() uint16 { return utils.Uint16(a.b, 8) }

// KeyLength returns the key length in bytes.
func (a AlgorithmDescriptor) KeyLength() uint16 { return utils.Uint16(a.b, 10) }

// DKADCapabilities returns DKAD_C, byte 12 bits 7..6.
func (a AlgorithmDescriptor) DKADCapabilities() uint8 { return utils.Bits(a.flags3(), 6, 2) }

// EEMCCapabilities returns EEMC_C, byte 12 bits 5..4.
func (a AlgorithmDescriptor) EEMCCapabilities() uint8 { return utils.Bits(a.flags3(), 4, 2) }

// RDMCCapabilities returns RDMC_C, byte 12 bits 3..1.
func (a AlgorithmDescriptor) RDMCCapabilities() uint8 { return utils.Bits(a.flags3(), 1, 3) }

// EncryptionRecordsMode reports EAREM, byte 12 bit 0.
func (a AlgorithmDescriptor) EncryptionRecordsMode() bool { return utils.Bit(a.flags3(), 0) }

// MaxEEDKCount returns the maximum EEDK count, byte 13 bits 3..0.
func (a AlgorithmDescriptor) MaxEEDKCount() uint8 { return utils.Bits(utils.Byte(a.b, 13), 0, 4) }

// MSDKCount returns the maximum supplemental decryption key count.
func (a AlgorithmDescriptor) MSDKCount() uint16 { return utils.Uint16(a.b, 14) }

// MaxEEDKSize returns the maximum EEDK size in bytes.
func (a AlgorithmDescriptor) MaxEEDKSize() uint16 { return utils.Uint16(a.b, 16) }

// SecurityAlgorithmCode returns the security algorithm code, e.g. AlgorithmAES256GCM128.
func (a AlgorithmDescriptor) SecurityAlgorithmCode() uint32 { return utils.Uint32(a.b, 20) }

// AlgorithmIterator lazily walks the algorithm descriptors of a capabilities page.
type AlgorithmIterator struct {
	w   *recordWalker
	cur AlgorithmDescriptor
}

// WalkAlgorithms walks algorithm descriptors in buf from offset start up to the end declared
// by the page header at the start of buf.
func WalkAlgorithms(buf []byte, start int) *AlgorithmIterator {
	code, end := pageEnd(buf)
	return &AlgorithmIterator{w: newRecordWalker(code, buf, start, end)}
}

// Next advances to the next descriptor, returning false at the end of the page or on error.
func (it *AlgorithmIterator) Next() bool {
	rec, ok := it.w.next()
	if ok {
		it.cur = AlgorithmDescriptor{rec}
	}

	return ok
}

// Algorithm returns the current descriptor.
func (it *AlgorithmIterator) Algorithm() AlgorithmDescriptor {
	return it.cur
}

// Err returns the error that terminated the walk, if any.
func (it *AlgorithmIterator) Err() error {
	return it.w.err
}
