// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package stenc

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dswarbrick/stenc/scsi"
	"github.com/dswarbrick/stenc/ssp"
)

// Transport exchanges security protocol commands with a drive. *scsi.Device implements it.
type Transport interface {
	SecurityProtocolIn(protocol uint8, sps uint16, buf []byte) (int, error)
	SecurityProtocolOut(protocol uint8, sps uint16, buf []byte) error
	TestUnitReady() error
}

// Drive issues tape data encryption commands to a single drive. Commands are never retried.
// A Drive must not be used by more than one goroutine at a time.
type Drive struct {
	t   Transport
	log *zap.Logger
}

// NewDrive returns a Drive using t. If log is nil, the global zap logger is used.
func NewDrive(t Transport, log *zap.Logger) *Drive {
	if log == nil {
		log = zap.L()
	}

	return &Drive{t: t, log: log}
}

// ReadPage reads the tape data encryption page pageCode into buf, returning the number of bytes
// transferred by the drive.
func (d *Drive) ReadPage(pageCode uint16, buf []byte) (int, error) {
	op := fmt.Sprintf("security protocol in, page 0x%04x", pageCode)

	d.log.Debug("sending command",
		zap.String("op", "spin"),
		zap.Uint16("page", pageCode),
		zap.Int("allocation", len(buf)))

	n, err := d.t.SecurityProtocolIn(ssp.TapeDataEncryption, pageCode, buf)
	if err != nil {
		return 0, d.commandError(op, err)
	}

	return n, nil
}

// WritePage sends buf, a complete page including its header, to the drive. The page code is
// taken from the header.
func (d *Drive) WritePage(buf []byte) error {
	hdr, err := ssp.ParseHeader(buf)
	if err != nil {
		return err
	}

	op := fmt.Sprintf("security protocol out, page 0x%04x", hdr.PageCode)

	d.log.Debug("sending command",
		zap.String("op", "spout"),
		zap.Uint16("page", hdr.PageCode),
		zap.Int("length", len(buf)))

	if err := d.t.SecurityProtocolOut(ssp.TapeDataEncryption, hdr.PageCode, buf); err != nil {
		return d.commandError(op, err)
	}

	return nil
}

// IsReady reports whether the drive is ready, i.e. has a tape loaded.
func (d *Drive) IsReady() bool {
	err := d.t.TestUnitReady()
	if err != nil {
		d.log.Debug("drive not ready", zap.Error(err))
	}

	return err == nil
}

// DeviceEncryptionStatus reads and parses the device encryption status page.
func (d *Drive) DeviceEncryptionStatus() (*ssp.DES, error) {
	buf, err := d.readPage(ssp.PageDeviceEncryptionStatus)
	if err != nil {
		return nil, err
	}

	return ssp.ParseDES(buf)
}

// NextBlockEncryptionStatus reads and parses the next block encryption status page. The drive
// normally rejects this when no tape is loaded.
func (d *Drive) NextBlockEncryptionStatus() (*ssp.NBES, error) {
	buf, err := d.readPage(ssp.PageNextBlockEncryptionStatus)
	if err != nil {
		return nil, err
	}

	return ssp.ParseNBES(buf)
}

// DeviceEncryptionCapabilities reads and parses the device encryption capabilities page.
func (d *Drive) DeviceEncryptionCapabilities() (*ssp.DEC, error) {
	buf, err := d.readPage(ssp.PageDeviceEncryptionCapabilities)
	if err != nil {
		return nil, err
	}

	return ssp.ParseDEC(buf)
}

// SetDataEncryption builds a set data encryption page from p and sends it to the drive.
func (d *Drive) SetDataEncryption(p ssp.SDEParams) error {
	buf, err := ssp.BuildSDE(p)
	if err != nil {
		return err
	}

	d.log.Info("setting data encryption",
		zap.Stringer("encrypt", p.EncryptionMode),
		zap.Stringer("decrypt", p.DecryptionMode),
		zap.Uint8("algorithm", p.AlgorithmIndex),
		zap.Bool("clear_key", len(p.Key) == 0),
		zap.Stringer("rdmc", p.RDMC),
		zap.Bool("ckod", p.CKOD))

	return d.WritePage(buf)
}

func (d *Drive) readPage(pageCode uint16) ([]byte, error) {
	buf := make([]byte, ssp.PageAllocation)

	n, err := d.ReadPage(pageCode, buf)
	if err != nil {
		return nil, err
	}

	return buf[:n], nil
}

// commandError classifies a transport failure as a DeviceError if the drive supplied sense
// data, or a TransportError otherwise.
func (d *Drive) commandError(op string, err error) error {
	var serr scsi.SgioError

	if errors.As(err, &serr) && serr.CheckCondition() {
		derr := &DeviceError{Op: op, Status: serr.ScsiStatus, Sense: scsi.ParseSense(serr.Sense)}

		d.log.Warn("device error",
			zap.String("op", op),
			zap.Stringer("sense_key", derr.Sense.SenseKey()),
			zap.Uint8("asc", derr.Sense.ASC()),
			zap.Uint8("ascq", derr.Sense.ASCQ()))

		return derr
	}

	return &TransportError{Op: op, Err: err}
}
