// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Device encryption status page.

package ssp

import (
	"github.com/dswarbrick/stenc/utils"
)

// DES is a view of a device encryption status page.
type DES struct {
	page
}

// ParseDES validates buf as a device encryption status page.
func ParseDES(buf []byte) (*DES, error) {
	p, err := parsePage(buf, PageDeviceEncryptionStatus, DESSize)
	if err != nil {
		return nil, err
	}

	return &DES{p}, nil
}

// ITNexusScope returns the I_T nexus scope, byte 4 bits 7..5.
func (d *DES) ITNexusScope() Scope {
	return Scope(utils.Bits(d.buf[4], 5, 3))
}

// EncryptionScope returns the encryption scope, byte 4 bits 2..0.
func (d *DES) EncryptionScope() Scope {
	return Scope(utils.Bits(d.buf[4], 0, 3))
}

func (d *DES) EncryptionMode() EncryptMode {
	return EncryptMode(d.buf[5])
}

func (d *DES) DecryptionMode() DecryptMode {
	return DecryptMode(d.buf[6])
}

func (d *DES) AlgorithmIndex() uint8 {
	return d.buf[7]
}

// KeyInstanceCounter is incremented by the device each time a key is set.
func (d *DES) KeyInstanceCounter() uint32 {
	return utils.Uint32(d.buf, 8)
}

// ParametersControl returns the parameters control field, byte 12 bits 6..4.
func (d *DES) ParametersControl() uint8 {
	return utils.Bits(d.buf[12], 4, 3)
}

// VolumeContainsEncryptedBlocks reports VCELB, byte 12 bit 3.
func (d *DES) VolumeContainsEncryptedBlocks() bool {
	return utils.Bit(d.buf[12], 3)
}

// ExternalEncryptionModeStatus returns CEEMS, byte 12 bits 2..1.
func (d *DES) ExternalEncryptionModeStatus() uint8 {
	return utils.Bits(d.buf[12], 1, 2)
}

// RawDecryptionModeDisabled reports RDMD, byte 12 bit 0.
func (d *DES) RawDecryptionModeDisabled() bool {
	return utils.Bit(d.buf[12], 0)
}

func (d *DES) KADFormat() KADFormat {
	return KADFormat(d.buf[13])
}

// ASDKCount returns the number of additional supplemental decryption keys.
func (d *DES) ASDKCount() uint16 {
	return utils.Uint16(d.buf, 14)
}

// KADs walks the KAD records following the fixed region.
func (d *DES) KADs() *KADIterator {
	return &KADIterator{w: newRecordWalker(PageDeviceEncryptionStatus, d.buf, DESSize, len(d.buf))}
}
