package main

import "github.com/urfave/cli/v2"

// Global flags.
var (
	// ConfigFlag points at a YAML or TOML config file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Config file (.yaml, .yml or .toml)",
		EnvVars: []string{"BINCRC_CONFIG"},
	}

	// LogLevelFlag selects the minimum log level.
	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn, error",
	}

	// LogFormatFlag selects the log encoding.
	LogFormatFlag = &cli.StringFlag{
		Name:  "log-format",
		Usage: "Log format: console, json",
	}
)

// Shared command flags.
var (
	// CapacityFlag sets the decoder buffer size, which also bounds payloads.
	CapacityFlag = &cli.IntFlag{
		Name:  "capacity",
		Usage: "Decoder buffer size in bytes",
	}

	// InFlag reads input from a file instead of stdin.
	InFlag = &cli.StringFlag{
		Name:    "in",
		Aliases: []string{"i"},
		Usage:   "Read input from `FILE` instead of stdin",
	}

	// HexFlag switches payloads or frames to hex text.
	HexFlag = &cli.BoolFlag{
		Name:  "hex",
		Usage: "Use hex text instead of raw bytes",
	}
)
