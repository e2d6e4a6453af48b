// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package stenc

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/dswarbrick/stenc/ssp"
)

// Values of the DEC CFG_P field
const (
	configurationNotPrevented = 1
	configurationPrevented    = 2
)

// DefaultAlgorithm returns the index of the drive's only encryption algorithm. It is an error
// for the drive to report none, or more than one.
func DefaultAlgorithm(dec *ssp.DEC) (uint8, error) {
	algs, err := dec.Algorithms()
	if err != nil {
		return 0, err
	}

	switch len(algs) {
	case 0:
		return 0, errors.New("drive reports no encryption algorithms")
	case 1:
		return algs[0].Index(), nil
	}

	return 0, errors.Errorf("drive supports %d encryption algorithms, one must be selected", len(algs))
}

// CheckParams validates p against the capabilities reported by the drive. All problems found
// are returned together.
func CheckParams(p ssp.SDEParams, dec *ssp.DEC) error {
	if dec.ConfigurationPrevented() == configurationPrevented {
		return errors.New("data encryption configuration is prevented by the drive")
	}

	alg, ok, err := dec.Algorithm(p.AlgorithmIndex)
	if err != nil {
		return err
	}

	if !ok {
		return errors.Errorf("drive does not support algorithm index %d", p.AlgorithmIndex)
	}

	var result *multierror.Error

	clearing := p.EncryptionMode == ssp.EncryptOff && p.DecryptionMode == ssp.DecryptOff

	if p.EncryptionMode == ssp.EncryptOn && alg.EncryptCapabilities() == 0 {
		result = multierror.Append(result, errors.Errorf("algorithm %d cannot encrypt", alg.Index()))
	}

	if p.DecryptionMode != ssp.DecryptOff && alg.DecryptCapabilities() == 0 {
		result = multierror.Append(result, errors.Errorf("algorithm %d cannot decrypt", alg.Index()))
	}

	switch {
	case clearing && len(p.Key) != 0:
		result = multierror.Append(result, errors.New("a key must not be supplied when turning encryption off"))
	case !clearing && len(p.Key) != int(alg.KeyLength()):
		result = multierror.Append(result, errors.Errorf("key is %d bytes, algorithm %d requires %d",
			len(p.Key), alg.Index(), alg.KeyLength()))
	}

	if n := len(p.KeyName); n > 0 {
		max := int(alg.MaxUKADLength())

		switch {
		case n > max:
			result = multierror.Append(result, errors.Errorf("key name is %d bytes, algorithm %d allows at most %d",
				n, alg.Index(), max))
		case alg.UKADFixed() && n != max:
			result = multierror.Append(result, errors.Errorf("key name is %d bytes, algorithm %d requires exactly %d",
				n, alg.Index(), max))
		}

		if p.KADFormat != ssp.KADFormatUnspecified && !alg.KADFormatCapable() {
			result = multierror.Append(result, errors.Errorf("algorithm %d does not support a KAD format", alg.Index()))
		}
	}

	return result.ErrorOrNil()
}
