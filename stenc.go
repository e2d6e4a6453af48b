// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package stenc controls hardware data encryption of SCSI tape drives via the tape data
// encryption security protocol.
//
package stenc

import (
	"path/filepath"
	"sort"
)

// Non-rewinding tape devices, excluding the per-mode variants (e.g. /dev/nst0a)
const tapeDeviceGlob = "/dev/nst*[0-9]"

// ScanDevices returns the names of all non-rewinding SCSI tape devices.
func ScanDevices() []string {
	return scanDevices(tapeDeviceGlob)
}

func scanDevices(pattern string) []string {
	var devices []string

	files, err := filepath.Glob(pattern)
	if err != nil {
		return devices
	}

	sort.Strings(files)
	devices = append(devices, files...)

	return devices
}
