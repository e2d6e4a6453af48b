// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Device encryption capabilities page.

package ssp

import (
	"github.com/dswarbrick/stenc/utils"
)

// DEC is a view of a device encryption capabilities page.
type DEC struct {
	page
}

// ParseDEC validates buf as a device encryption capabilities page.
func ParseDEC(buf []byte) (*DEC, error) {
	p, err := parsePage(buf, PageDeviceEncryptionCapabilities, DECSize)
	if err != nil {
		return nil, err
	}

	return &DEC{p}, nil
}

// ExternalControlCapable returns EXTDECC, byte 4 bits 3..2.
func (d *DEC) ExternalControlCapable() uint8 {
	return utils.Bits(d.buf[4], 2, 2)
}

// ConfigurationPrevented returns CFG_P, byte 4 bits 1..0.
func (d *DEC) ConfigurationPrevented() uint8 {
	return utils.Bits(d.buf[4], 0, 2)
}

// Descriptors walks the algorithm descriptors following the fixed region.
func (d *DEC) Descriptors() *AlgorithmIterator {
	return &AlgorithmIterator{w: newRecordWalker(PageDeviceEncryptionCapabilities, d.buf, DECSize, len(d.buf))}
}

// Algorithms collects every algorithm descriptor. Descriptors preceding a malformed one are
// returned along with the error.
func (d *DEC) Algorithms() ([]AlgorithmDescriptor, error) {
	var ads []AlgorithmDescriptor

	it := d.Descriptors()
	for it.Next() {
		ads = append(ads, it.Algorithm())
	}

	return ads, it.Err()
}

// Algorithm returns the descriptor with the given algorithm index.
func (d *DEC) Algorithm(index uint8) (AlgorithmDescriptor, bool, error) {
	it := d.Descriptors()
	for it.Next() {
		if a := it.Algorithm(); a.Index() == index {
			return a, true, nil
		}
	}

	return AlgorithmDescriptor{}, false, it.Err()
}
