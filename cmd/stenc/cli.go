// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dswarbrick/stenc"
	"github.com/dswarbrick/stenc/scsi"
	"github.com/dswarbrick/stenc/ssp"
)

type Globals struct {
	Device   string `short:"f" help:"Tape device, defaults to $TAPE" default:"${tape}"`
	LogLevel string `help:"Set the logging level (debug|info|warn|error)" default:"warn"`
}

type CLI struct {
	Globals

	Status       StatusCmd       `cmd:"" help:"Show the drive and next block encryption status"`
	Capabilities CapabilitiesCmd `cmd:"" help:"Show the encryption algorithms supported by the drive"`
	Set          SetCmd          `cmd:"" help:"Set the drive encryption parameters"`
	Scan         ScanCmd         `cmd:"" help:"List SCSI tape devices"`
	Genkey       GenkeyCmd       `cmd:"" help:"Generate a random key file"`
}

// openDrive opens the tape device named in globals. The returned device must be closed by the
// caller.
func openDrive(globals *Globals) (*scsi.Device, *stenc.Drive, error) {
	checkCaps()

	dev, err := scsi.Open(globals.Device)
	if err != nil {
		return nil, nil, err
	}

	zap.L().Debug("opened device", zap.String("device", dev.Name))

	return dev, stenc.NewDrive(dev, zap.L().With(zap.String("device", dev.Name))), nil
}

// explain prints the sense data of a device error in full.
func explain(err error) error {
	var derr *stenc.DeviceError
	if errors.As(err, &derr) {
		derr.Sense.Print(os.Stderr)
	}

	return err
}

type StatusCmd struct{}

func (cmd *StatusCmd) Run(globals *Globals) error {
	dev, drive, err := openDrive(globals)
	if err != nil {
		return err
	}
	defer dev.Close()

	des, err := drive.DeviceEncryptionStatus()
	if err != nil {
		return explain(err)
	}

	var nbes *ssp.NBES
	if drive.IsReady() {
		if nbes, err = drive.NextBlockEncryptionStatus(); err != nil {
			zap.L().Warn("cannot read next block encryption status", zap.Error(err))
			nbes = nil
		}
	}

	fmt.Printf("Device: %s\n\n", dev.Name)
	return stenc.PrintStatus(os.Stdout, des, nbes)
}

type CapabilitiesCmd struct{}

func (cmd *CapabilitiesCmd) Run(globals *Globals) error {
	dev, drive, err := openDrive(globals)
	if err != nil {
		return err
	}
	defer dev.Close()

	dec, err := drive.DeviceEncryptionCapabilities()
	if err != nil {
		return explain(err)
	}

	return stenc.PrintCapabilities(os.Stdout, dec)
}

type SetCmd struct {
	Encrypt   string `short:"e" help:"Encryption mode" enum:"off,on" default:"on"`
	Decrypt   string `short:"d" help:"Decryption mode" enum:"off,raw,on,mixed" default:"on"`
	Algorithm int    `short:"a" help:"Algorithm index, required if the drive supports more than one" default:"-1"`
	KeyFile   string `short:"k" help:"Key file as written by genkey; not used when both modes are off" type:"existingfile"`
	RawRead   string `help:"Raw decryption mode control" enum:"default,enabled,disabled" default:"default"`
	Scope     string `help:"Scope of the encryption parameters" enum:"public,local,all" default:"local"`
	Lock      bool   `help:"Lock the encryption parameters to this I_T nexus"`
	Ckod      bool   `help:"Clear the key when the volume is demounted"`
}

func (cmd *SetCmd) params() (ssp.SDEParams, error) {
	var p ssp.SDEParams

	enc, err := ssp.ParseEncryptMode(cmd.Encrypt)
	if err != nil {
		return p, err
	}

	dec, err := ssp.ParseDecryptMode(cmd.Decrypt)
	if err != nil {
		return p, err
	}

	p.EncryptionMode = enc
	p.DecryptionMode = dec
	p.Lock = cmd.Lock
	p.CKOD = cmd.Ckod

	switch cmd.RawRead {
	case "enabled":
		p.RDMC = ssp.RDMCEnabled
	case "disabled":
		p.RDMC = ssp.RDMCDisabled
	}

	switch cmd.Scope {
	case "public":
		p.Scope = ssp.ScopePublic
	case "local":
		p.Scope = ssp.ScopeLocal
	case "all":
		p.Scope = ssp.ScopeAllITNexus
	}

	if enc == ssp.EncryptOff && dec == ssp.DecryptOff {
		return p, nil
	}

	if cmd.KeyFile == "" {
		return p, errors.New("a key file is required unless both modes are off")
	}

	f, err := os.Open(cmd.KeyFile)
	if err != nil {
		return p, errors.Wrap(err, "cannot open key file")
	}
	defer f.Close()

	key, name, err := stenc.ReadKeyFile(f)
	if err != nil {
		return p, errors.Wrap(err, cmd.KeyFile)
	}

	p.Key = key
	if name != "" {
		p.KeyName = []byte(name)
		p.KADFormat = ssp.KADFormatASCII
	}

	return p, nil
}

func (cmd *SetCmd) Run(globals *Globals) error {
	p, err := cmd.params()
	if err != nil {
		return err
	}

	dev, drive, err := openDrive(globals)
	if err != nil {
		return err
	}
	defer dev.Close()

	dec, err := drive.DeviceEncryptionCapabilities()
	if err != nil {
		return explain(err)
	}

	if cmd.Algorithm < 0 {
		if p.AlgorithmIndex, err = stenc.DefaultAlgorithm(dec); err != nil {
			return err
		}
	} else if cmd.Algorithm > 0xff {
		return errors.Errorf("invalid algorithm index %d", cmd.Algorithm)
	} else {
		p.AlgorithmIndex = uint8(cmd.Algorithm)
	}

	if err := stenc.CheckParams(p, dec); err != nil {
		return err
	}

	if err := drive.SetDataEncryption(p); err != nil {
		return explain(err)
	}

	des, err := drive.DeviceEncryptionStatus()
	if err != nil {
		return explain(err)
	}

	if des.EncryptionMode() != p.EncryptionMode || des.DecryptionMode() != p.DecryptionMode {
		return errors.Errorf("drive reports encryption %s, decryption %s after setting %s, %s",
			des.EncryptionMode(), des.DecryptionMode(), p.EncryptionMode, p.DecryptionMode)
	}

	fmt.Printf("Encryption %s, decryption %s\n", des.EncryptionMode(), des.DecryptionMode())
	return nil
}

type ScanCmd struct{}

func (cmd *ScanCmd) Run(globals *Globals) error {
	for _, device := range stenc.ScanDevices() {
		fmt.Println(device)
	}

	return nil
}

type GenkeyCmd struct {
	Bits   int    `short:"b" help:"Key size in bits" default:"256"`
	Name   string `short:"n" help:"Key name, stored alongside the key and sent to the drive as key-associated data"`
	Output string `short:"o" help:"Output file, - for standard output" default:"-"`
}

func (cmd *GenkeyCmd) Run(globals *Globals) error {
	key, err := stenc.GenerateKey(cmd.Bits)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout

	if cmd.Output != "-" {
		f, err := os.OpenFile(cmd.Output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err != nil {
			return errors.Wrap(err, "cannot create key file")
		}
		defer f.Close()

		w = f
	}

	return stenc.WriteKeyFile(w, key, cmd.Name)
}
