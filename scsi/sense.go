// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI sense data interpretation (SPC-5 4.4).

package scsi

import (
	"fmt"
	"io"

	tcmu "github.com/tnarg/go-tcmu/scsi"

	"github.com/dswarbrick/stenc/utils"
)

const (
	// Maximum length of sense data
	SENSE_MAX_LEN = 252

	// Length of the fixed format sense data header, up to and including the additional sense
	// length byte
	SENSE_HEADER_LEN = 8

	// Offset of the first additional sense byte in fixed format sense data
	SENSE_FIXED_LEN = 18
)

// Sense data response codes
const (
	SENSE_FIXED_CURRENT      = 0x70
	SENSE_FIXED_DEFERRED     = 0x71
	SENSE_DESCRIPTOR_CURRENT = 0x72
	SENSE_DESCRIPTOR_DEFERRD = 0x73
)

// SenseKey is the 4-bit sense key describing the general category of an error.
type SenseKey uint8

const (
	SenseNoSense        SenseKey = tcmu.SenseNoSense
	SenseRecoveredError SenseKey = tcmu.SenseRecoveredError
	SenseNotReady       SenseKey = tcmu.SenseNotReady
	SenseMediumError    SenseKey = tcmu.SenseMediumError
	SenseHardwareError  SenseKey = tcmu.SenseHardwareError
	SenseIllegalRequest SenseKey = tcmu.SenseIllegalRequest
	SenseUnitAttention  SenseKey = tcmu.SenseUnitAttention
	SenseDataProtect    SenseKey = tcmu.SenseDataProtect
	SenseBlankCheck     SenseKey = tcmu.SenseBlankCheck
)

// String returns a short label for known sense keys and a numeric rendering otherwise.
func (k SenseKey) String() string {
	switch k {
	case SenseNoSense:
		return "no sense"
	case SenseRecoveredError:
		return "recovered error"
	case SenseNotReady:
		return "not ready"
	case SenseMediumError:
		return "medium error"
	case SenseHardwareError:
		return "hardware error"
	case SenseIllegalRequest:
		return "illegal request"
	case SenseUnitAttention:
		return "unit attention"
	case SenseDataProtect:
		return "data protect"
	case SenseBlankCheck:
		return "blank check"
	}

	return fmt.Sprintf("sense key 0x%02x", uint8(k))
}

// SenseData is an immutable snapshot of the sense data returned with a CHECK CONDITION. Bytes
// that were not returned by the device read as zero.
type SenseData struct {
	raw [SENSE_MAX_LEN]byte
	n   int
}

// ParseSense copies up to SENSE_MAX_LEN bytes of b. It never fails; interpretation of a short
// or unusual buffer is left to the accessors.
func ParseSense(b []byte) SenseData {
	var s SenseData
	s.n = copy(s.raw[:], b)
	return s
}

// Len returns the number of sense bytes captured.
func (s SenseData) Len() int {
	return s.n
}

// Bytes returns a copy of the captured sense bytes.
func (s SenseData) Bytes() []byte {
	return append([]byte(nil), s.raw[:s.n]...)
}

// ResponseCode returns byte 0 bits 6..0.
func (s SenseData) ResponseCode() uint8 {
	return utils.Bits(s.raw[0], 0, 7)
}

// Valid reports byte 0 bit 7, indicating that the information field is valid.
func (s SenseData) Valid() bool {
	return utils.Bit(s.raw[0], 7)
}

// Descriptor reports whether the sense data is in descriptor rather than fixed format.
func (s SenseData) Descriptor() bool {
	rc := s.ResponseCode()
	return rc == SENSE_DESCRIPTOR_CURRENT || rc == SENSE_DESCRIPTOR_DEFERRD
}

// Deferred reports whether the sense data describes a deferred error.
func (s SenseData) Deferred() bool {
	rc := s.ResponseCode()
	return rc == SENSE_FIXED_DEFERRED || rc == SENSE_DESCRIPTOR_DEFERRD
}

// Filemark reports byte 2 bit 7 of fixed format sense data.
func (s SenseData) Filemark() bool {
	return !s.Descriptor() && utils.Bit(s.raw[2], 7)
}

// EOM reports end-of-medium, byte 2 bit 6 of fixed format sense data.
func (s SenseData) EOM() bool {
	return !s.Descriptor() && utils.Bit(s.raw[2], 6)
}

// ILI reports the incorrect length indicator, byte 2 bit 5 of fixed format sense data.
func (s SenseData) ILI() bool {
	return !s.Descriptor() && utils.Bit(s.raw[2], 5)
}

// Overflow reports that the device had more sense data than fitted, byte 2 bit 4 of fixed
// format or byte 4 bit 7 of descriptor format sense data.
func (s SenseData) Overflow() bool {
	if s.Descriptor() {
		return utils.Bit(s.raw[4], 7)
	}

	return utils.Bit(s.raw[2], 4)
}

func (s SenseData) SenseKey() SenseKey {
	if s.Descriptor() {
		return SenseKey(utils.Bits(s.raw[1], 0, 4))
	}

	return SenseKey(utils.Bits(s.raw[2], 0, 4))
}

// Information returns bytes 3..6 of fixed format sense data.
func (s SenseData) Information() uint32 {
	if s.Descriptor() {
		return 0
	}

	return utils.Uint32(s.raw[:], 3)
}

// AdditionalLength returns the number of sense bytes following byte 7.
func (s SenseData) AdditionalLength() uint8 {
	return s.raw[7]
}

// CommandSpecificInformation returns bytes 8..11 of fixed format sense data.
func (s SenseData) CommandSpecificInformation() uint32 {
	if s.Descriptor() {
		return 0
	}

	return utils.Uint32(s.raw[:], 8)
}

// ASC returns the additional sense code.
func (s SenseData) ASC() uint8 {
	if s.Descriptor() {
		return s.raw[2]
	}

	return s.raw[12]
}

// ASCQ returns the additional sense code qualifier.
func (s SenseData) ASCQ() uint8 {
	if s.Descriptor() {
		return s.raw[3]
	}

	return s.raw[13]
}

// FRU returns the field replaceable unit code of fixed format sense data.
func (s SenseData) FRU() uint8 {
	if s.Descriptor() {
		return 0
	}

	return s.raw[14]
}

// SenseKeySpecific returns bytes 15..17 of fixed format sense data.
func (s SenseData) SenseKeySpecific() [3]byte {
	var sks [3]byte
	if !s.Descriptor() {
		copy(sks[:], s.raw[15:18])
	}

	return sks
}

// FieldPointer decodes the sense key specific bytes of an ILLEGAL REQUEST. ok is false unless
// SKSV is set. inCDB distinguishes the CDB from the parameter data, and bit is -1 unless BPV is
// set.
func (s SenseData) FieldPointer() (field uint16, bit int, inCDB bool, ok bool) {
	sks := s.SenseKeySpecific()

	if s.SenseKey() != SenseIllegalRequest || !utils.Bit(sks[0], 7) {
		return 0, -1, false, false
	}

	bit = -1
	if utils.Bit(sks[0], 3) {
		bit = int(utils.Bits(sks[0], 0, 3))
	}

	return utils.Uint16(sks[:], 1), bit, utils.Bit(sks[0], 6), true
}

// AdditionalBytes returns the variable tail: additional sense bytes of fixed format sense
// data, or the sense data descriptors of descriptor format sense data. It is bounded by both
// the additional sense length and the number of bytes captured.
func (s SenseData) AdditionalBytes() []byte {
	start := SENSE_FIXED_LEN
	if s.Descriptor() {
		start = SENSE_HEADER_LEN
	}

	end := SENSE_HEADER_LEN + int(s.AdditionalLength())
	if end > s.n {
		end = s.n
	}

	if end <= start {
		return nil
	}

	return append([]byte(nil), s.raw[start:end]...)
}

// String returns a one-line summary, e.g.
// "illegal request (0x05), ASC 0x24, ASCQ 0x00: invalid field in cdb".
func (s SenseData) String() string {
	if s.n == 0 {
		return "no sense data"
	}

	str := fmt.Sprintf("%s (0x%02x), ASC 0x%02x, ASCQ 0x%02x",
		s.SenseKey(), uint8(s.SenseKey()), s.ASC(), s.ASCQ())

	if desc := ASCDescription(s.ASC(), s.ASCQ()); desc != "" {
		str += ": " + desc
	}

	return str
}

// Print writes a multi-line rendering of the sense data to w.
func (s SenseData) Print(w io.Writer) {
	if s.n == 0 {
		fmt.Fprintln(w, "No sense data")
		return
	}

	fmt.Fprintf(w, "Sense key:       %s (0x%02x)\n", s.SenseKey(), uint8(s.SenseKey()))
	fmt.Fprintf(w, "Response code:   0x%02x\n", s.ResponseCode())
	fmt.Fprintf(w, "ASC:             0x%02x\n", s.ASC())
	fmt.Fprintf(w, "ASCQ:            0x%02x\n", s.ASCQ())

	if desc := ASCDescription(s.ASC(), s.ASCQ()); desc != "" {
		fmt.Fprintf(w, "Description:     %s\n", desc)
	}

	if s.Deferred() {
		fmt.Fprintln(w, "Deferred error")
	}

	if !s.Descriptor() {
		if s.Valid() {
			fmt.Fprintf(w, "Information:     0x%08x\n", s.Information())
		}

		if csi := s.CommandSpecificInformation(); csi != 0 {
			fmt.Fprintf(w, "Command info:    0x%08x\n", csi)
		}

		if fru := s.FRU(); fru != 0 {
			fmt.Fprintf(w, "FRU code:        0x%02x\n", fru)
		}

		var flags []string
		for _, f := range []struct {
			set  bool
			name string
		}{
			{s.Filemark(), "filemark"},
			{s.EOM(), "end of medium"},
			{s.ILI(), "incorrect length"},
			{s.Overflow(), "sense data overflow"},
		} {
			if f.set {
				flags = append(flags, f.name)
			}
		}

		if len(flags) > 0 {
			fmt.Fprintf(w, "Flags:           %v\n", flags)
		}
	}

	if field, bit, inCDB, ok := s.FieldPointer(); ok {
		where := "parameter data"
		if inCDB {
			where = "CDB"
		}

		if bit >= 0 {
			fmt.Fprintf(w, "Field pointer:   byte %d bit %d of %s\n", field, bit, where)
		} else {
			fmt.Fprintf(w, "Field pointer:   byte %d of %s\n", field, where)
		}
	}

	if extra := s.AdditionalBytes(); len(extra) > 0 {
		fmt.Fprintf(w, "Additional sense bytes:\n%s\n", utils.HexDump(extra))
	}
}
