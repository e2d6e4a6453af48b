// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

//go:build !linux

package scsi

import (
	"github.com/pkg/errors"
)

var errUnsupported = errors.New("SCSI generic I/O is only supported on Linux")

// Device is an open SCSI device. Only Linux is supported.
type Device struct {
	Name    string
	Timeout uint32
}

func Open(name string) (*Device, error) {
	return nil, errUnsupported
}

func (d *Device) Close() error {
	return errUnsupported
}

func (d *Device) SecurityProtocolIn(protocol uint8, sps uint16, buf []byte) (int, error) {
	return 0, errUnsupported
}

func (d *Device) SecurityProtocolOut(protocol uint8, sps uint16, buf []byte) error {
	return errUnsupported
}

func (d *Device) TestUnitReady() error {
	return errUnsupported
}
