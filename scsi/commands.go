// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI command definitions.

package scsi

import (
	"encoding/binary"

	tcmu "github.com/tnarg/go-tcmu/scsi"
)

const (
	// SCSI commands used by this package
	SCSI_TEST_UNIT_READY = tcmu.TestUnitReady
	SCSI_SECURITY_IN     = tcmu.SecurityProtocolIn
	SCSI_SECURITY_OUT    = tcmu.SecurityProtocolOut

	// SAM status codes
	SAM_STAT_GOOD            = tcmu.SamStatGood
	SAM_STAT_CHECK_CONDITION = tcmu.SamStatCheckCondition
)

// SCSI CDB types
type CDB6 [6]byte
type CDB10 [10]byte
type CDB12 [12]byte
type CDB16 [16]byte

// TestUnitReadyCDB returns a TEST UNIT READY command.
func TestUnitReadyCDB() CDB6 {
	return CDB6{SCSI_TEST_UNIT_READY}
}

// SecurityProtocolInCDB returns a SECURITY PROTOCOL IN command requesting up to allocLen bytes
// of the page selected by the security protocol specific field sps.
func SecurityProtocolInCDB(protocol uint8, sps uint16, allocLen uint32) CDB12 {
	return securityProtocolCDB(SCSI_SECURITY_IN, protocol, sps, allocLen)
}

// SecurityProtocolOutCDB returns a SECURITY PROTOCOL OUT command transferring length bytes.
func SecurityProtocolOutCDB(protocol uint8, sps uint16, length uint32) CDB12 {
	return securityProtocolCDB(SCSI_SECURITY_OUT, protocol, sps, length)
}

// Byte 4 (INC_512) is left clear, so the length is always in bytes.
func securityProtocolCDB(opcode byte, protocol uint8, sps uint16, length uint32) CDB12 {
	cdb := CDB12{opcode, protocol}
	binary.BigEndian.PutUint16(cdb[2:], sps)
	binary.BigEndian.PutUint32(cdb[6:], length)

	return cdb
}
