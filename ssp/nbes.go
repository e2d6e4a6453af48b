// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Next block encryption status page.

package ssp

import (
	"fmt"

	"github.com/dswarbrick/stenc/utils"
)

// BlockEncryptionStatus describes whether the next logical block is encrypted.
type BlockEncryptionStatus uint8

const (
	BlockEncryptionUnknown          BlockEncryptionStatus = 0
	BlockNotLogicalBlock            BlockEncryptionStatus = 1
	BlockNotEncrypted               BlockEncryptionStatus = 2
	BlockEncryptedUnsupported       BlockEncryptionStatus = 3
	BlockEncryptedSupported         BlockEncryptionStatus = 4
	BlockEncryptedKeyMismatch       BlockEncryptionStatus = 5
	BlockEncryptedUnableToDetermine BlockEncryptionStatus = 6
)

func (s BlockEncryptionStatus) String() string {
	switch s {
	case BlockEncryptionUnknown:
		return "unable to determine"
	case BlockNotLogicalBlock:
		return "not a logical block"
	case BlockNotEncrypted:
		return "not encrypted"
	case BlockEncryptedUnsupported:
		return "encrypted by an unsupported algorithm"
	case BlockEncryptedSupported:
		return "encrypted"
	case BlockEncryptedKeyMismatch:
		return "encrypted, but unable to decrypt due to invalid key"
	case BlockEncryptedUnableToDetermine:
		return "encrypted, unable to determine if decryption is possible"
	}

	return fmt.Sprintf("reserved (%#x)", uint8(s))
}

// BlockCompressionStatus describes whether the next logical block is compressed.
type BlockCompressionStatus uint8

func (s BlockCompressionStatus) String() string {
	switch s {
	case 0:
		return "unable to determine"
	case 1:
		return "not a logical block"
	case 2:
		return "not compressed"
	case 3:
		return "compressed"
	}

	return fmt.Sprintf("reserved (%#x)", uint8(s))
}

// NBES is a view of a next block encryption status page.
type NBES struct {
	page
}

// ParseNBES validates buf as a next block encryption status page.
func ParseNBES(buf []byte) (*NBES, error) {
	p, err := parsePage(buf, PageNextBlockEncryptionStatus, NBESSize)
	if err != nil {
		return nil, err
	}

	return &NBES{p}, nil
}

// LogicalObjectNumber identifies the logical object the status refers to.
func (n *NBES) LogicalObjectNumber() uint64 {
	return uint64(utils.Uint32(n.buf, 4))<<32 | uint64(utils.Uint32(n.buf, 8))
}

// CompressionStatus returns byte 12 bits 7..4.
func (n *NBES) CompressionStatus() BlockCompressionStatus {
	return BlockCompressionStatus(utils.Bits(n.buf[12], 4, 4))
}

// EncryptionStatus returns byte 12 bits 3..0.
func (n *NBES) EncryptionStatus() BlockEncryptionStatus {
	return BlockEncryptionStatus(utils.Bits(n.buf[12], 0, 4))
}

func (n *NBES) AlgorithmIndex() uint8 {
	return n.buf[13]
}

// EncryptionModeExternal reports EMES, byte 14 bit 1.
func (n *NBES) EncryptionModeExternal() bool {
	return utils.Bit(n.buf[14], 1)
}

// RawDecryptionModeDisabled reports RDMDS, byte 14 bit 0.
func (n *NBES) RawDecryptionModeDisabled() bool {
	return utils.Bit(n.buf[14], 0)
}

func (n *NBES) KADFormat() KADFormat {
	return KADFormat(n.buf[15])
}

// KADs walks the KAD records describing the next block.
func (n *NBES) KADs() *KADIterator {
	return &KADIterator{w: newRecordWalker(PageNextBlockEncryptionStatus, n.buf, NBESSize, len(n.buf))}
}
