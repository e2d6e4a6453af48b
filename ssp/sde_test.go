// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ssp

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSDEWithKeyName(t *testing.T) {
	key := bytes.Repeat([]byte{0xa5}, 32)

	buf, err := BuildSDE(SDEParams{
		Scope:          ScopeAllITNexus,
		EncryptionMode: EncryptOn,
		DecryptionMode: DecryptMixed,
		AlgorithmIndex: 1,
		Key:            key,
		KeyName:        []byte("volume-key-1"),
		KADFormat:      KADFormatASCII,
	})
	require.NoError(t, err)

	assert.Len(t, buf, 68)
	assert.Equal(t, uint16(PageSetDataEncryption), binary.BigEndian.Uint16(buf[0:]))
	assert.Equal(t, uint16(16+32+4+12), binary.BigEndian.Uint16(buf[2:]))
	assert.Equal(t, byte(0x40), buf[4])
	assert.Equal(t, uint16(32), binary.BigEndian.Uint16(buf[18:]))

	kad := buf[SDESize+32:]
	assert.Equal(t, byte(KADUnauthenticated), kad[0])
	assert.Equal(t, uint16(12), binary.BigEndian.Uint16(kad[2:]))
	assert.Equal(t, "volume-key-1", string(kad[4:]))

	sde, err := ParseSDE(buf)
	require.NoError(t, err)

	kads, err := CollectKADs(sde.KADs())
	require.NoError(t, err)
	require.Len(t, kads, 1)
	assert.Equal(t, KADUnauthenticated, kads[0].Type())
}

func TestBuildSDERoundTrip(t *testing.T) {
	tests := []struct {
		name string
		p    SDEParams
	}{
		{
			name: "encrypt with named key",
			p: SDEParams{
				Scope:          ScopeAllITNexus,
				EncryptionMode: EncryptOn,
				DecryptionMode: DecryptOn,
				AlgorithmIndex: 1,
				Key:            bytes.Repeat([]byte{0x11}, 32),
				KeyName:        []byte("backup-2024"),
				KADFormat:      KADFormatASCII,
				RDMC:           RDMCDisabled,
				CKOD:           true,
			},
		},
		{
			name: "binary key name",
			p: SDEParams{
				EncryptionMode: EncryptOn,
				DecryptionMode: DecryptMixed,
				AlgorithmIndex: 3,
				Key:            bytes.Repeat([]byte{0x22}, 16),
				KeyName:        []byte{0x00, 0x01, 0xfe, 0xff},
				KADFormat:      KADFormatBinary,
				RDMC:           RDMCEnabled,
				CKORP:          true,
				CKORL:          true,
				Lock:           true,
				Scope:          ScopeLocal,
			},
		},
		{
			name: "clear key",
			p: SDEParams{
				Scope:          ScopeAllITNexus,
				EncryptionMode: EncryptOff,
				DecryptionMode: DecryptOff,
				AlgorithmIndex: 1,
				CEEM:           2,
			},
		},
		{
			name: "raw read without name",
			p: SDEParams{
				EncryptionMode: EncryptOff,
				DecryptionMode: DecryptRaw,
				AlgorithmIndex: 1,
				Key:            []byte{1, 2, 3, 4},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)

			buf, err := BuildSDE(tt.p)
			require.NoError(t, err)

			sde, err := ParseSDE(buf)
			require.NoError(t, err)

			assert.Equal(uint16(len(buf)-HeaderSize), sde.Length())
			assert.Equal(tt.p.Scope, sde.Scope())
			assert.Equal(tt.p.Lock, sde.Lock())
			assert.Equal(tt.p.CEEM, sde.CEEM())
			assert.Equal(tt.p.RDMC, sde.RDMC())
			assert.False(sde.SDK())
			assert.Equal(tt.p.CKOD, sde.CKOD())
			assert.Equal(tt.p.CKORP, sde.CKORP())
			assert.Equal(tt.p.CKORL, sde.CKORL())
			assert.Equal(tt.p.EncryptionMode, sde.EncryptionMode())
			assert.Equal(tt.p.DecryptionMode, sde.DecryptionMode())
			assert.Equal(tt.p.AlgorithmIndex, sde.AlgorithmIndex())
			assert.Equal(uint8(0), sde.KeyFormat())
			assert.Equal(tt.p.KADFormat, sde.KADFormat())
			assert.Equal(uint16(len(tt.p.Key)), sde.KeyLength())
			assert.Equal(len(tt.p.Key), len(sde.Key()))
			if len(tt.p.Key) > 0 {
				assert.Equal(tt.p.Key, sde.Key())
			}

			name, ok, err := sde.KeyName()
			require.NoError(t, err)
			assert.Equal(len(tt.p.KeyName) > 0, ok)
			if ok {
				assert.Equal(tt.p.KeyName, name)
			}
		})
	}
}

func TestBuildSDEClearKeyLayout(t *testing.T) {
	buf, err := BuildSDE(SDEParams{Scope: ScopeAllITNexus, RDMC: RDMCDisabled, CKOD: true})
	require.NoError(t, err)

	assert.Len(t, buf, SDESize)
	assert.Equal(t, uint16(16), binary.BigEndian.Uint16(buf[2:]))
	assert.Equal(t, byte(0x34), buf[5])
	assert.Equal(t, uint16(0), binary.BigEndian.Uint16(buf[18:]))
}

func TestBuildSDEInvalid(t *testing.T) {
	_, err := BuildSDE(SDEParams{RDMC: 1})
	assert.Error(t, err)

	_, err = BuildSDE(SDEParams{Scope: 8})
	assert.Error(t, err)

	_, err = BuildSDE(SDEParams{CEEM: 4})
	assert.Error(t, err)

	_, err = BuildSDE(SDEParams{Key: make([]byte, 0xffff)})
	assert.Error(t, err)
}

func TestParseSDEKeyOverrun(t *testing.T) {
	buf, err := BuildSDE(SDEParams{Key: make([]byte, 8)})
	require.NoError(t, err)

	binary.BigEndian.PutUint16(buf[18:], 9)

	_, err = ParseSDE(buf)
	assert.True(t, errors.Is(err, ErrMalformedPage))
}
