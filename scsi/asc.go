// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package scsi

import (
	_ "embed"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

//go:embed asc.yaml
var ascYAML []byte

// AdditionalSense describes one ASC/ASCQ pair.
type AdditionalSense struct {
	ASC         uint8  `yaml:"asc"`
	ASCQ        uint8  `yaml:"ascq"`
	Description string `yaml:"description"`
}

type ascTable struct {
	Codes []AdditionalSense `yaml:"codes"`
}

var (
	ascOnce  sync.Once
	ascIndex map[uint16]string
	ascErr   error
)

// parseASCTable unmarshalls a YAML-formatted table of additional sense codes.
func parseASCTable(data []byte) (map[uint16]string, error) {
	var t ascTable

	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrap(err, "cannot parse additional sense code table")
	}

	index := make(map[uint16]string, len(t.Codes))
	for _, c := range t.Codes {
		index[uint16(c.ASC)<<8|uint16(c.ASCQ)] = c.Description
	}

	return index, nil
}

func loadASCTable() (map[uint16]string, error) {
	ascOnce.Do(func() {
		ascIndex, ascErr = parseASCTable(ascYAML)
	})

	return ascIndex, ascErr
}

// ASCDescription returns the description of an ASC/ASCQ pair, or an empty string if the pair
// is not known.
func ASCDescription(asc, ascq uint8) string {
	index, err := loadASCTable()
	if err != nil {
		return ""
	}

	if desc, ok := index[uint16(asc)<<8|uint16(ascq)]; ok {
		return desc
	}

	// Vendor specific qualifiers
	if ascq >= 0x80 {
		if desc, ok := index[uint16(asc)<<8]; ok {
			return desc + " (vendor specific)"
		}
	}

	return ""
}
