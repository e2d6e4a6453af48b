// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI generic IO functions.

package scsi

import (
	"fmt"
)

const (
	SG_DXFER_NONE        = -1
	SG_DXFER_TO_DEV      = -2
	SG_DXFER_FROM_DEV    = -3
	SG_DXFER_TO_FROM_DEV = -4

	SG_INFO_OK_MASK = 0x1
	SG_INFO_OK      = 0x0

	SG_IO = 0x2285

	// Timeout in milliseconds
	DEFAULT_TIMEOUT = 60000
)

// SCSI generic ioctl header, defined as sg_io_hdr_t in <scsi/sg.h>
type sgIoHdr struct {
	interface_id    int32   // 'S' for SCSI generic (required)
	dxfer_direction int32   // data transfer direction
	cmd_len         uint8   // SCSI command length (<= 16 bytes)
	mx_sb_len       uint8   // max length to write to sbp
	iovec_count     uint16  // 0 implies no scatter gather
	dxfer_len       uint32  // byte count of data transfer
	dxferp          uintptr // points to data transfer memory or scatter gather list
	cmdp            uintptr // points to command to perform
	sbp             uintptr // points to sense_buffer memory
	timeout         uint32  // MAX_UINT -> no timeout (unit: millisec)
	flags           uint32  // 0 -> default, see SG_FLAG...
	pack_id         int32   // unused internally (normally)
	usr_ptr         uintptr // unused internally
	status          uint8   // SCSI status
	masked_status   uint8   // shifted, masked scsi status
	msg_status      uint8   // messaging level data (optional)
	sb_len_wr       uint8   // byte count actually written to sbp
	host_status     uint16  // errors from host adapter
	driver_status   uint16  // errors from software driver
	resid           int32   // dxfer_len - actual_transferred
	duration        uint32  // time taken by cmd (unit: millisec)
	info            uint32  // auxiliary information
}

// SgioError is returned when SG_IO completes but reports a non-OK outcome. Sense holds a copy
// of the sense bytes actually written by the device, if any.
type SgioError struct {
	ScsiStatus   uint8
	HostStatus   uint16
	DriverStatus uint16
	Sense        []byte
}

func (e SgioError) Error() string {
	return fmt.Sprintf("SCSI status: 0x%02x, host status: 0x%02x, driver status: 0x%02x",
		e.ScsiStatus, e.HostStatus, e.DriverStatus)
}

// CheckCondition reports whether the device itself rejected the command and supplied sense
// data describing why.
func (e SgioError) CheckCondition() bool {
	return e.ScsiStatus == SAM_STAT_CHECK_CONDITION && len(e.Sense) > 0
}

// sgioResult converts a completed header into the number of bytes transferred or an error. The
// sense bytes are copied out of senseBuf so that the caller's buffer can be released.
func sgioResult(hdr *sgIoHdr, senseBuf []byte) (int, error) {
	// See http://www.t10.org/lists/2status.htm for SCSI status codes
	if hdr.info&SG_INFO_OK_MASK != SG_INFO_OK {
		n := int(hdr.sb_len_wr)
		if n > len(senseBuf) {
			n = len(senseBuf)
		}

		return 0, SgioError{
			ScsiStatus:   hdr.status,
			HostStatus:   hdr.host_status,
			DriverStatus: hdr.driver_status,
			Sense:        append([]byte(nil), senseBuf[:n]...),
		}
	}

	n := int(hdr.dxfer_len) - int(hdr.resid)
	if n < 0 {
		n = 0
	}

	return n, nil
}
