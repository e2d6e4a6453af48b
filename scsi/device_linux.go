// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI device access via the Linux SG_IO ioctl.

package scsi

import (
	"runtime"
	"unsafe"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	// Sense buffer length; the maximum permitted by SPC-5
	SENSE_BUF_LEN = SENSE_MAX_LEN
)

// Device is an open SCSI device, typically a non-rewinding tape device such as /dev/nst0.
// A Device must not be used by more than one goroutine at a time.
type Device struct {
	Name    string
	Timeout uint32 // Milliseconds
	fd      int
}

// Open opens the named character device for SG_IO access.
func Open(name string) (*Device, error) {
	fd, err := unix.Open(name, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0600)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %s", name)
	}

	var st unix.Stat_t
	if err = unix.Fstat(fd, &st); err == nil && st.Mode&unix.S_IFMT != unix.S_IFCHR {
		err = errors.Errorf("%s is not a character device", name)
	}

	if err != nil {
		if e := unix.Close(fd); e != nil {
			err = multierror.Append(err, e)
		}
		return nil, err
	}

	return &Device{Name: name, Timeout: DEFAULT_TIMEOUT, fd: fd}, nil
}

// Close closes the device.
func (d *Device) Close() error {
	return unix.Close(d.fd)
}

// SecurityProtocolIn reads up to len(buf) bytes of the security protocol page sps into buf,
// returning the number of bytes the device transferred.
func (d *Device) SecurityProtocolIn(protocol uint8, sps uint16, buf []byte) (int, error) {
	cdb := SecurityProtocolInCDB(protocol, sps, uint32(len(buf)))
	return d.sendCDB(cdb[:], SG_DXFER_FROM_DEV, buf)
}

// SecurityProtocolOut sends buf as the security protocol page sps.
func (d *Device) SecurityProtocolOut(protocol uint8, sps uint16, buf []byte) error {
	cdb := SecurityProtocolOutCDB(protocol, sps, uint32(len(buf)))

	n, err := d.sendCDB(cdb[:], SG_DXFER_TO_DEV, buf)
	if err == nil && n != len(buf) {
		err = errors.Errorf("short transfer: sent %d of %d bytes", n, len(buf))
	}

	return err
}

// TestUnitReady returns nil if the device is ready, e.g. a tape is loaded.
func (d *Device) TestUnitReady() error {
	cdb := TestUnitReadyCDB()
	_, err := d.sendCDB(cdb[:], SG_DXFER_NONE, nil)
	return err
}

func (d *Device) sendCDB(cdb []byte, dir int32, buf []byte) (int, error) {
	senseBuf := make([]byte, SENSE_BUF_LEN)

	hdr := sgIoHdr{
		interface_id:    'S',
		dxfer_direction: dir,
		timeout:         d.Timeout,
		cmd_len:         uint8(len(cdb)),
		mx_sb_len:       uint8(len(senseBuf)),
		dxfer_len:       uint32(len(buf)),
		cmdp:            uintptr(unsafe.Pointer(&cdb[0])),
		sbp:             uintptr(unsafe.Pointer(&senseBuf[0])),
	}

	if len(buf) > 0 {
		hdr.dxferp = uintptr(unsafe.Pointer(&buf[0]))
	}

	err := ioctl(uintptr(d.fd), SG_IO, uintptr(unsafe.Pointer(&hdr)))

	runtime.KeepAlive(cdb)
	runtime.KeepAlive(buf)
	runtime.KeepAlive(senseBuf)

	if err != nil {
		return 0, errors.Wrap(err, "SG_IO")
	}

	return sgioResult(&hdr, senseBuf)
}

// ioctl executes an ioctl command on the specified file descriptor
func ioctl(fd, cmd, ptr uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, cmd, ptr)
	if errno != 0 {
		return errno
	}
	return nil
}
