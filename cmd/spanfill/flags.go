package main

import (
	"os"

	"github.com/urfave/cli/v3"

	"github.com/calebms/spanfill/internal/logger"
)

var (
	vocabPath    string
	maxSeqLength int64
	outSeqLength int64
	hiddenSize   int64
	modelSeed    int64
	logLevel     string
	logFormat    string
	debug        bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "vocab",
			Aliases:     []string{"v"},
			Usage:       "path to vocabulary json",
			Destination: &vocabPath,
		},
		&cli.Int64Flag{
			Name:        "max-seq-length",
			Aliases:     []string{"max-seq", "s"},
			Usage:       "max input sequence length",
			Value:       512,
			Destination: &maxSeqLength,
		},
		&cli.Int64Flag{
			Name:        "out-seq-length",
			Aliases:     []string{"out-seq"},
			Usage:       "output buffer length for span generation",
			Value:       512,
			Destination: &outSeqLength,
		},
		&cli.Int64Flag{
			Name:        "hidden-size",
			Usage:       "toy model hidden size",
			Value:       64,
			Destination: &hiddenSize,
		},
		&cli.Int64Flag{
			Name:        "model-seed",
			Usage:       "toy model weight seed",
			Value:       1,
			Destination: &modelSeed,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func newLogger() logger.Logger {
	level := logger.ParseLevel(logLevel)
	if debug {
		level = logger.ParseLevel("debug")
	}
	if logFormat == "json" {
		return logger.JSON(os.Stderr, level)
	}
	return logger.Pretty(os.Stderr, level)
}
