// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ssp

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// kadRecord encodes a single KAD record.
func kadRecord(typ KADType, flags byte, desc []byte) []byte {
	rec := make([]byte, RecordHeaderSize+len(desc))
	rec[0] = byte(typ)
	rec[1] = flags
	binary.BigEndian.PutUint16(rec[2:], uint16(len(desc)))
	copy(rec[RecordHeaderSize:], desc)
	return rec
}

// makePage builds a page with the given code, fixed region size and trailing records, setting
// the length field to cover everything.
func makePage(code uint16, fixedSize int, trailer ...[]byte) []byte {
	buf := make([]byte, fixedSize)
	for _, t := range trailer {
		buf = append(buf, t...)
	}
	binary.BigEndian.PutUint16(buf[0:], code)
	binary.BigEndian.PutUint16(buf[2:], uint16(len(buf)-HeaderSize))
	return buf
}

func TestParseHeader(t *testing.T) {
	hdr, err := ParseHeader([]byte{0x00, 0x20, 0x01, 0x02})
	require.NoError(t, err)
	assert.Equal(t, PageHeader{PageCode: 0x20, Length: 0x102}, hdr)

	_, err = ParseHeader([]byte{0x00, 0x20})
	assert.True(t, errors.Is(err, ErrMalformedPage))
}

func TestParseDES(t *testing.T) {
	assert := assert.New(t)

	buf := makePage(PageDeviceEncryptionStatus, DESSize,
		kadRecord(KADUnauthenticated, 0x01, []byte("volume-key-1")),
		kadRecord(KADNonce, 0x00, []byte{0xde, 0xad, 0xbe, 0xef}))

	buf[4] = 0x42 // I_T nexus scope 2, encryption scope 2
	buf[5] = byte(EncryptOn)
	buf[6] = byte(DecryptMixed)
	buf[7] = 1
	binary.BigEndian.PutUint32(buf[8:], 0x01020304)
	buf[12] = 0x1b // parameters control 1, VCELB, CEEMS 1, RDMD
	buf[13] = byte(KADFormatASCII)
	binary.BigEndian.PutUint16(buf[14:], 3)

	des, err := ParseDES(buf)
	require.NoError(t, err)

	assert.Equal(uint16(PageDeviceEncryptionStatus), des.PageCode())
	assert.Equal(uint16(len(buf)-HeaderSize), des.Length())
	assert.Equal(ScopeAllITNexus, des.ITNexusScope())
	assert.Equal(ScopeAllITNexus, des.EncryptionScope())
	assert.Equal(EncryptOn, des.EncryptionMode())
	assert.Equal(DecryptMixed, des.DecryptionMode())
	assert.Equal(uint8(1), des.AlgorithmIndex())
	assert.Equal(uint32(0x01020304), des.KeyInstanceCounter())
	assert.Equal(uint8(1), des.ParametersControl())
	assert.True(des.VolumeContainsEncryptedBlocks())
	assert.Equal(uint8(1), des.ExternalEncryptionModeStatus())
	assert.True(des.RawDecryptionModeDisabled())
	assert.Equal(KADFormatASCII, des.KADFormat())
	assert.Equal(uint16(3), des.ASDKCount())

	kads, err := CollectKADs(des.KADs())
	require.NoError(t, err)
	require.Len(t, kads, 2)

	assert.Equal(KADUnauthenticated, kads[0].Type())
	assert.Equal(uint8(1), kads[0].Authenticated())
	assert.Equal("volume-key-1", kads[0].Name(des.KADFormat()))
	assert.Equal(KADNonce, kads[1].Type())
	assert.Equal("deadbeef", kads[1].Name(KADFormatBinary))
}

func TestParsePageMalformed(t *testing.T) {
	good := makePage(PageDeviceEncryptionStatus, DESSize)

	t.Run("short buffer", func(t *testing.T) {
		_, err := ParseDES(good[:DESSize-1])
		assert.True(t, errors.Is(err, ErrMalformedPage))
	})

	t.Run("wrong page code", func(t *testing.T) {
		_, err := ParseNBES(good)
		assert.True(t, errors.Is(err, ErrMalformedPage))
	})

	t.Run("length beyond buffer", func(t *testing.T) {
		buf := append([]byte(nil), good...)
		binary.BigEndian.PutUint16(buf[2:], DESSize)
		_, err := ParseDES(buf)
		assert.True(t, errors.Is(err, ErrMalformedPage))

		var mpe *MalformedPageError
		require.True(t, errors.As(err, &mpe))
		assert.Equal(t, uint16(PageDeviceEncryptionStatus), mpe.PageCode)
	})

	t.Run("length shorter than fixed region", func(t *testing.T) {
		buf := append([]byte(nil), good...)
		binary.BigEndian.PutUint16(buf[2:], 4)
		_, err := ParseDES(buf)
		assert.True(t, errors.Is(err, ErrMalformedPage))
	})

	t.Run("trailing bytes beyond declared length are ignored", func(t *testing.T) {
		buf := append(append([]byte(nil), good...), 0xff, 0xff, 0xff, 0xff, 0xff)
		des, err := ParseDES(buf)
		require.NoError(t, err)
		assert.Len(t, des.Bytes(), DESSize)

		kads, err := CollectKADs(des.KADs())
		assert.NoError(t, err)
		assert.Empty(t, kads)
	})
}

func TestWalkerNoRecords(t *testing.T) {
	buf := makePage(PageNextBlockEncryptionStatus, NBESSize)

	it := WalkKADs(buf, NBESSize)
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())

	// Not restartable
	assert.False(t, it.Next())
}

func TestWalkerDeclaredLengthExceedsBuffer(t *testing.T) {
	buf := makePage(PageNextBlockEncryptionStatus, NBESSize,
		kadRecord(KADUnauthenticated, 0, []byte("abc")))

	// Claim far more than the buffer holds
	binary.BigEndian.PutUint16(buf[2:], 0xfff0)

	it := WalkKADs(buf, NBESSize)
	assert.False(t, it.Next())
	assert.True(t, errors.Is(it.Err(), ErrMalformedPage))
}

func TestWalkerLastRecordOverrun(t *testing.T) {
	first := kadRecord(KADUnauthenticated, 0, []byte("key-1"))
	second := kadRecord(KADNonce, 0, []byte{1, 2, 3, 4})
	last := kadRecord(KADMetadata, 0, []byte{5, 6, 7})

	buf := makePage(PageDeviceEncryptionStatus, DESSize, first, second, last)

	// Last record claims one byte more than remains before the page end
	binary.BigEndian.PutUint16(buf[DESSize+len(first)+len(second)+2:], 4)

	des, err := ParseDES(buf)
	require.NoError(t, err)

	it := des.KADs()
	require.True(t, it.Next())
	assert.Equal(t, KADUnauthenticated, it.KAD().Type())
	require.True(t, it.Next())
	assert.Equal(t, KADNonce, it.KAD().Type())
	assert.False(t, it.Next())

	var mpe *MalformedPageError
	require.True(t, errors.As(it.Err(), &mpe))
	assert.Equal(t, DESSize+len(first)+len(second), mpe.Offset)

	kads, err := CollectKADs(des.KADs())
	assert.Len(t, kads, 2)
	assert.Error(t, err)
}

func TestWalkerTruncatedHeader(t *testing.T) {
	buf := makePage(PageNextBlockEncryptionStatus, NBESSize, []byte{0x00, 0x00, 0x00})

	nbes, err := ParseNBES(buf)
	require.NoError(t, err)

	kads, err := CollectKADs(nbes.KADs())
	assert.Empty(t, kads)
	assert.True(t, errors.Is(err, ErrMalformedPage))
}

func TestWalkerZeroLengthRecords(t *testing.T) {
	buf := makePage(PageNextBlockEncryptionStatus, NBESSize,
		kadRecord(KADUnauthenticated, 0, nil),
		kadRecord(KADAuthenticated, 0, nil))

	nbes, err := ParseNBES(buf)
	require.NoError(t, err)

	kads, err := CollectKADs(nbes.KADs())
	require.NoError(t, err)
	require.Len(t, kads, 2)
	assert.Empty(t, kads[0].Descriptor())
	assert.Equal(t, KADAuthenticated, kads[1].Type())
}

func TestWalkerRecordCapacityClipped(t *testing.T) {
	buf := makePage(PageNextBlockEncryptionStatus, NBESSize,
		kadRecord(KADUnauthenticated, 0, []byte("a")),
		kadRecord(KADUnauthenticated, 0, []byte("b")))

	it := WalkKADs(buf, NBESSize)
	require.True(t, it.Next())

	desc := it.KAD().Descriptor()
	assert.Equal(t, 1, len(desc))
	assert.Equal(t, 1, cap(desc))
}

func TestParseNBES(t *testing.T) {
	assert := assert.New(t)

	buf := makePage(PageNextBlockEncryptionStatus, NBESSize,
		kadRecord(KADUnauthenticated, 0, []byte("tape-key")))

	binary.BigEndian.PutUint64(buf[4:], 0x0000000100000002)
	buf[12] = 0x25 // compression 2, encryption 5
	buf[13] = 1
	buf[14] = 0x03
	buf[15] = byte(KADFormatASCII)

	nbes, err := ParseNBES(buf)
	require.NoError(t, err)

	assert.Equal(uint64(0x0000000100000002), nbes.LogicalObjectNumber())
	assert.Equal(BlockCompressionStatus(2), nbes.CompressionStatus())
	assert.Equal("not compressed", nbes.CompressionStatus().String())
	assert.Equal(BlockEncryptedKeyMismatch, nbes.EncryptionStatus())
	assert.Equal(uint8(1), nbes.AlgorithmIndex())
	assert.True(nbes.EncryptionModeExternal())
	assert.True(nbes.RawDecryptionModeDisabled())
	assert.Equal(KADFormatASCII, nbes.KADFormat())

	kads, err := CollectKADs(nbes.KADs())
	require.NoError(t, err)
	require.Len(t, kads, 1)
	assert.Equal("tape-key", kads[0].Name(KADFormatASCII))
}

// aesDescriptor returns an LTO-style AES-256-GCM algorithm descriptor.
func aesDescriptor(index uint8) []byte {
	ad := make([]byte, AlgorithmDescriptorSize)
	ad[0] = index
	binary.BigEndian.PutUint16(ad[2:], AlgorithmDescriptorSize-RecordHeaderSize)
	ad[4] = 0x8a // AVFMV, DECRYPT_C 2, ENCRYPT_C 2
	ad[5] = 0x4a // AVFCP 1, KADF_C, UKADF
	binary.BigEndian.PutUint16(ad[6:], 32)
	binary.BigEndian.PutUint16(ad[8:], 12)
	binary.BigEndian.PutUint16(ad[10:], 32)
	ad[12] = 0x5d // DKAD_C 1, EEMC_C 1, RDMC_C 6, EAREM
	ad[13] = 0x03
	binary.BigEndian.PutUint16(ad[14:], 5)
	binary.BigEndian.PutUint16(ad[16:], 64)
	binary.BigEndian.PutUint32(ad[20:], AlgorithmAES256GCM128)
	return ad
}

func TestParseDEC(t *testing.T) {
	assert := assert.New(t)

	buf := makePage(PageDeviceEncryptionCapabilities, DECSize, aesDescriptor(1), aesDescriptor(2))
	buf[4] = 0x09 // EXTDECC 2, CFG_P 1

	dec, err := ParseDEC(buf)
	require.NoError(t, err)

	assert.Equal(uint8(2), dec.ExternalControlCapable())
	assert.Equal(uint8(1), dec.ConfigurationPrevented())

	ads, err := dec.Algorithms()
	require.NoError(t, err)
	require.Len(t, ads, 2)

	a := ads[0]
	assert.Equal(uint8(1), a.Index())
	assert.Equal(uint16(20), a.Length())
	assert.True(a.ValidForMountedVolume())
	assert.False(a.SDKCapable())
	assert.False(a.MACCapable())
	assert.False(a.DELBCapable())
	assert.Equal(uint8(2), a.DecryptCapabilities())
	assert.Equal(uint8(2), a.EncryptCapabilities())
	assert.Equal(uint8(1), a.ValidForCurrentPosition())
	assert.Equal(uint8(0), a.NonceCapabilities())
	assert.True(a.KADFormatCapable())
	assert.False(a.VCELBCapable())
	assert.True(a.UKADFixed())
	assert.False(a.AKADFixed())
	assert.Equal(uint16(32), a.MaxUKADLength())
	assert.Equal(uint16(12), a.MaxAKADLength())
	assert.Equal(uint16(32), a.KeyLength())
	assert.Equal(uint8(1), a.DKADCapabilities())
	assert.Equal(uint8(1), a.EEMCCapabilities())
	assert.Equal(uint8(6), a.RDMCCapabilities())
	assert.True(a.EncryptionRecordsMode())
	assert.Equal(uint8(3), a.MaxEEDKCount())
	assert.Equal(uint16(5), a.MSDKCount())
	assert.Equal(uint16(64), a.MaxEEDKSize())
	assert.Equal(uint32(AlgorithmAES256GCM128), a.SecurityAlgorithmCode())
	assert.Equal("AES-256-GCM-128", AlgorithmName(a.SecurityAlgorithmCode()))

	found, ok, err := dec.Algorithm(2)
	require.NoError(t, err)
	assert.True(ok)
	assert.Equal(uint8(2), found.Index())

	_, ok, err = dec.Algorithm(9)
	assert.NoError(err)
	assert.False(ok)
}

func TestShortAlgorithmDescriptor(t *testing.T) {
	short := []byte{0x01, 0x00, 0x00, 0x02, 0x80, 0x00}
	buf := makePage(PageDeviceEncryptionCapabilities, DECSize, short, aesDescriptor(2))

	dec, err := ParseDEC(buf)
	require.NoError(t, err)

	ads, err := dec.Algorithms()
	require.NoError(t, err)
	require.Len(t, ads, 2)

	// Fields beyond the record read as zero rather than from the next descriptor
	assert.True(t, ads[0].ValidForMountedVolume())
	assert.Equal(t, uint16(0), ads[0].KeyLength())
	assert.Equal(t, uint32(0), ads[0].SecurityAlgorithmCode())
	assert.Equal(t, uint16(32), ads[1].KeyLength())
}

func TestAlgorithmDescriptorOverrun(t *testing.T) {
	ad := aesDescriptor(1)
	buf := makePage(PageDeviceEncryptionCapabilities, DECSize, aesDescriptor(0), ad)
	binary.BigEndian.PutUint16(buf[DECSize+AlgorithmDescriptorSize+2:], 21)

	it := WalkAlgorithms(buf, DECSize)
	require.True(t, it.Next())
	assert.Equal(t, uint8(0), it.Algorithm().Index())
	assert.False(t, it.Next())
	assert.True(t, errors.Is(it.Err(), ErrMalformedPage))
}

func TestModeStrings(t *testing.T) {
	assert := assert.New(t)

	for _, s := range []string{"off", "external", "on"} {
		m, err := ParseEncryptMode(s)
		assert.NoError(err)
		assert.Equal(s, m.String())
	}

	for _, s := range []string{"off", "raw", "on", "mixed"} {
		m, err := ParseDecryptMode(s)
		assert.NoError(err)
		assert.Equal(s, m.String())
	}

	_, err := ParseEncryptMode("mixed")
	assert.Error(err)
	_, err = ParseDecryptMode("external")
	assert.Error(err)

	assert.Equal("unknown (0x07)", EncryptMode(7).String())
	assert.Equal("unauthenticated key data", KADUnauthenticated.String())
	assert.Equal("wrapped key data", KADWrappedKey.String())
	assert.Equal("all I_T nexus", ScopeAllITNexus.String())
	assert.Equal("disabled", RDMCDisabled.String())
}
