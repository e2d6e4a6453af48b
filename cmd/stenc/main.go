// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// stenc controls hardware data encryption of SCSI tape drives.
//
package main

import (
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Used when neither --device nor $TAPE is given
const defaultTape = "/dev/nst0"

func main() {
	logAtomic := zap.NewAtomicLevel()
	logCfg := zap.NewProductionConfig()
	logCfg.Level = logAtomic
	logCfg.Encoding = "console"
	logCfg.DisableStacktrace = true
	logger, err := logCfg.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	undo := zap.ReplaceGlobals(logger)
	defer undo()

	tape := os.Getenv("TAPE")
	if tape == "" {
		tape = defaultTape
	}

	cli := CLI{}

	ctx := kong.Parse(&cli,
		kong.Name("stenc"),
		kong.Description("SCSI tape drive hardware encryption control"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"tape": tape,
		},
	)

	var ll zapcore.Level
	ll.Set(cli.Globals.LogLevel)
	logAtomic.SetLevel(ll)

	if err := ctx.Run(&cli.Globals); err != nil {
		logger.Fatal("run", zap.Error(err))
	}
}
