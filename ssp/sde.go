// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Set data encryption page.

package ssp

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/dswarbrick/stenc/utils"
)

// SDEParams holds everything needed to build a set data encryption page.
type SDEParams struct {
	Scope          Scope
	Lock           bool
	CEEM           uint8 // Check external encryption mode, 2 bits
	RDMC           RDMC
	CKOD           bool // Clear key on demount
	CKORP          bool // Clear key on reservation preempt
	CKORL          bool // Clear key on reservation loss
	EncryptionMode EncryptMode
	DecryptionMode DecryptMode
	AlgorithmIndex uint8
	KADFormat      KADFormat

	// Key is sent as plain text (key format 0). An empty key clears the current key.
	Key []byte

	// KeyName, if not empty, is sent as a single U-KAD following the key.
	KeyName []byte
}

// BuildSDE encodes p as a set data encryption page, ready to be sent with SECURITY PROTOCOL OUT.
// This is a pure function and performs no device I/O.
func BuildSDE(p SDEParams) ([]byte, error) {
	switch p.RDMC {
	case RDMCAlgorithmDefault, RDMCEnabled, RDMCDisabled:
	default:
		return nil, errors.Errorf("invalid raw decryption mode control %d", p.RDMC)
	}

	if p.Scope > 7 {
		return nil, errors.Errorf("invalid scope %d", p.Scope)
	}

	if p.CEEM > 3 {
		return nil, errors.Errorf("invalid check external encryption mode %d", p.CEEM)
	}

	size := SDESize + len(p.Key)
	if len(p.KeyName) > 0 {
		size += RecordHeaderSize + len(p.KeyName)
	}

	if size-HeaderSize > 0xffff {
		return nil, errors.Errorf("set data encryption page of %d bytes is too large", size)
	}

	buf := make([]byte, size)

	binary.BigEndian.PutUint16(buf[0:], PageSetDataEncryption)
	binary.BigEndian.PutUint16(buf[2:], uint16(size-HeaderSize))

	buf[4] = utils.SetBits(buf[4], 5, 3, uint8(p.Scope))
	buf[4] = utils.SetBit(buf[4], 0, p.Lock)

	buf[5] = utils.SetBits(buf[5], 6, 2, p.CEEM)
	buf[5] = utils.SetBits(buf[5], 4, 2, uint8(p.RDMC))
	buf[5] = utils.SetBit(buf[5], 2, p.CKOD)
	buf[5] = utils.SetBit(buf[5], 1, p.CKORP)
	buf[5] = utils.SetBit(buf[5], 0, p.CKORL)

	buf[6] = byte(p.EncryptionMode)
	buf[7] = byte(p.DecryptionMode)
	buf[8] = p.AlgorithmIndex
	buf[9] = 0 // Plain text key
	buf[10] = byte(p.KADFormat)

	binary.BigEndian.PutUint16(buf[18:], uint16(len(p.Key)))
	copy(buf[SDESize:], p.Key)

	if len(p.KeyName) > 0 {
		kad := buf[SDESize+len(p.Key):]
		kad[0] = byte(KADUnauthenticated)
		binary.BigEndian.PutUint16(kad[2:], uint16(len(p.KeyName)))
		copy(kad[RecordHeaderSize:], p.KeyName)
	}

	return buf, nil
}

// SDE is a view of a set data encryption page.
type SDE struct {
	page
}

// ParseSDE validates buf as a set data encryption page, including that its key fits within
// the declared page length.
func ParseSDE(buf []byte) (*SDE, error) {
	p, err := parsePage(buf, PageSetDataEncryption, SDESize)
	if err != nil {
		return nil, err
	}

	if keyEnd := SDESize + int(utils.Uint16(p.buf, 18)); keyEnd > len(p.buf) {
		return nil, malformed(PageSetDataEncryption, 18, "key of %d bytes overruns page end", keyEnd-SDESize)
	}

	return &SDE{p}, nil
}

// Scope returns byte 4 bits 7..5.
func (s *SDE) Scope() Scope {
	return Scope(utils.Bits(s.buf[4], 5, 3))
}

// Lock reports byte 4 bit 0.
func (s *SDE) Lock() bool {
	return utils.Bit(s.buf[4], 0)
}

// CEEM returns check external encryption mode, byte 5 bits 7..6.
func (s *SDE) CEEM() uint8 {
	return utils.Bits(s.buf[5], 6, 2)
}

// RDMC returns raw decryption mode control, byte 5 bits 5..4.
func (s *SDE) RDMC() RDMC {
	return RDMC(utils.Bits(s.buf[5], 4, 2))
}

// SDK reports supplemental decryption key, byte 5 bit 3.
func (s *SDE) SDK() bool {
	return utils.Bit(s.buf[5], 3)
}

// CKOD reports clear key on demount, byte 5 bit 2.
func (s *SDE) CKOD() bool {
	return utils.Bit(s.buf[5], 2)
}

// CKORP reports clear key on reservation preempt, byte 5 bit 1.
func (s *SDE) CKORP() bool {
	return utils.Bit(s.buf[5], 1)
}

// CKORL reports clear key on reservation loss, byte 5 bit 0.
func (s *SDE) CKORL() bool {
	return utils.Bit(s.buf[5], 0)
}

func (s *SDE) EncryptionMode() EncryptMode {
	return EncryptMode(s.buf[6])
}

func (s *SDE) DecryptionMode() DecryptMode {
	return DecryptMode(s.buf[7])
}

func (s *SDE) AlgorithmIndex() uint8 {
	return s.buf[8]
}

func (s *SDE) KeyFormat() uint8 {
	return s.buf[9]
}

func (s *SDE) KADFormat() KADFormat {
	return KADFormat(s.buf[10])
}

func (s *SDE) KeyLength() uint16 {
	return utils.Uint16(s.buf, 18)
}

// Key returns the key bytes.
func (s *SDE) Key() []byte {
	return s.buf[SDESize : SDESize+int(s.KeyLength())]
}

// KADs walks the KAD records following the key.
func (s *SDE) KADs() *KADIterator {
	return &KADIterator{w: newRecordWalker(PageSetDataEncryption, s.buf, SDESize+int(s.KeyLength()), len(s.buf))}
}

// KeyName returns the descriptor of the first U-KAD, if there is one.
func (s *SDE) KeyName() ([]byte, bool, error) {
	it := s.KADs()
	for it.Next() {
		if k := it.KAD(); k.Type() == KADUnauthenticated {
			return k.Descriptor(), true, nil
		}
	}

	return nil, false, it.Err()
}
