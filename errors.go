// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package stenc

import (
	"fmt"

	"github.com/dswarbrick/stenc/scsi"
)

// DeviceError is returned when the drive rejects a command with CHECK CONDITION. Sense is a
// snapshot of the sense data returned with it.
type DeviceError struct {
	Op     string
	Status uint8
	Sense  scsi.SenseData
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Sense)
}

// TransportError is returned when a command could not be exchanged with the drive at all, or
// the drive failed it without supplying sense data.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Cause allows github.com/pkg/errors.Cause to see through a TransportError.
func (e *TransportError) Cause() error {
	return e.Err
}
