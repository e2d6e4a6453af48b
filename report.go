// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Human-readable encryption status and capability reports.

package stenc

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/dswarbrick/stenc/ssp"
)

var (
	enabledColor  = color.New(color.FgGreen, color.Bold)
	disabledColor = color.New(color.FgYellow)
	headingColor  = color.New(color.Bold)
)

func modeString(mode fmt.Stringer, off bool) string {
	if off {
		return disabledColor.Sprintf("%s", mode)
	}

	return enabledColor.Sprintf("%s", mode)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}

func printKADs(w io.Writer, it *ssp.KADIterator, format ssp.KADFormat) error {
	for it.Next() {
		k := it.KAD()
		fmt.Fprintf(w, "  %-28s %s\n", k.Type().String()+":", k.Name(format))
	}

	return it.Err()
}

// PrintStatus writes the device encryption status and, if nbes is not nil, the encryption
// status of the next block on the loaded tape.
func PrintStatus(w io.Writer, des *ssp.DES, nbes *ssp.NBES) error {
	headingColor.Fprintln(w, "Drive encryption status")
	fmt.Fprintf(w, "  %-28s %s\n", "Scope:", des.EncryptionScope())
	fmt.Fprintf(w, "  %-28s %s\n", "Encryption mode:",
		modeString(des.EncryptionMode(), des.EncryptionMode() == ssp.EncryptOff))
	fmt.Fprintf(w, "  %-28s %s\n", "Decryption mode:",
		modeString(des.DecryptionMode(), des.DecryptionMode() == ssp.DecryptOff))

	if des.EncryptionMode() != ssp.EncryptOff || des.DecryptionMode() != ssp.DecryptOff {
		fmt.Fprintf(w, "  %-28s %d\n", "Algorithm index:", des.AlgorithmIndex())
		fmt.Fprintf(w, "  %-28s %s\n", "Raw decryption mode disabled:", yesNo(des.RawDecryptionModeDisabled()))
	}

	fmt.Fprintf(w, "  %-28s %d\n", "Key instance counter:", des.KeyInstanceCounter())

	if err := printKADs(w, des.KADs(), des.KADFormat()); err != nil {
		return err
	}

	if nbes == nil {
		return nil
	}

	fmt.Fprintln(w)
	headingColor.Fprintln(w, "Next block encryption status")
	fmt.Fprintf(w, "  %-28s %d\n", "Logical object number:", nbes.LogicalObjectNumber())
	fmt.Fprintf(w, "  %-28s %s\n", "Compression status:", nbes.CompressionStatus())
	fmt.Fprintf(w, "  %-28s %s\n", "Encryption status:", nbes.EncryptionStatus())

	switch nbes.EncryptionStatus() {
	case ssp.BlockEncryptedSupported, ssp.BlockEncryptedKeyMismatch, ssp.BlockEncryptedUnableToDetermine:
		fmt.Fprintf(w, "  %-28s %d\n", "Algorithm index:", nbes.AlgorithmIndex())
		fmt.Fprintf(w, "  %-28s %s\n", "Encrypted externally:", yesNo(nbes.EncryptionModeExternal()))
		fmt.Fprintf(w, "  %-28s %s\n", "Raw decryption disabled:", yesNo(nbes.RawDecryptionModeDisabled()))
	}

	return printKADs(w, nbes.KADs(), nbes.KADFormat())
}

// PrintCapabilities writes the encryption algorithms supported by the drive.
func PrintCapabilities(w io.Writer, dec *ssp.DEC) error {
	headingColor.Fprintln(w, "Drive encryption capabilities")

	switch dec.ConfigurationPrevented() {
	case configurationNotPrevented:
		fmt.Fprintf(w, "  %-28s %s\n", "Configuration prevented:", "no")
	case configurationPrevented:
		fmt.Fprintf(w, "  %-28s %s\n", "Configuration prevented:", disabledColor.Sprint("yes"))
	default:
		fmt.Fprintf(w, "  %-28s %s\n", "Configuration prevented:", "not reported")
	}

	fmt.Fprintf(w, "  %-28s %d\n", "External control capable:", dec.ExternalControlCapable())

	it := dec.Descriptors()
	for it.Next() {
		a := it.Algorithm()

		fmt.Fprintln(w)
		headingColor.Fprintf(w, "Algorithm %d: %s\n", a.Index(), ssp.AlgorithmName(a.SecurityAlgorithmCode()))
		fmt.Fprintf(w, "  %-28s %d bits\n", "Key length:", int(a.KeyLength())*8)
		fmt.Fprintf(w, "  %-28s %d\n", "Max U-KAD length:", a.MaxUKADLength())
		fmt.Fprintf(w, "  %-28s %d\n", "Max A-KAD length:", a.MaxAKADLength())
		fmt.Fprintf(w, "  %-28s %s\n", "U-KAD fixed length:", yesNo(a.UKADFixed()))
		fmt.Fprintf(w, "  %-28s %s\n", "Valid for mounted volume:", yesNo(a.ValidForMountedVolume()))
		fmt.Fprintf(w, "  %-28s %d\n", "Encrypt capabilities:", a.EncryptCapabilities())
		fmt.Fprintf(w, "  %-28s %d\n", "Decrypt capabilities:", a.DecryptCapabilities())
		fmt.Fprintf(w, "  %-28s %d\n", "RDMC capabilities:", a.RDMCCapabilities())
		fmt.Fprintf(w, "  %-28s %s\n", "KAD format capable:", yesNo(a.KADFormatCapable()))
	}

	return it.Err()
}
