// Package main provides the bincrc command line tool.
//
// Usage:
//
//	bincrc [global options] <command> [options]
//
// Commands encode payloads into wire frames, decode wire streams back into
// payloads, serve frames over TCP and send frames to a server.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Set via ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	app := newApp()
	app.ExitErrHandler = exitErrHandler

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "bincrc",
		Usage:   "Encode, decode and exchange CRC-checked binary frames",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Flags: []cli.Flag{
			ConfigFlag,
			LogLevelFlag,
			LogFormatFlag,
		},
		Commands: []*cli.Command{
			EncodeCommand(),
			DecodeCommand(),
			ServeCommand(),
			SendCommand(),
			VersionCommand(),
		},
	}
}

// exitErrHandler preserves exit codes from cli.Exit and prints everything else.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
