package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			_, err := fmt.Fprintf(c.App.Writer, "bincrc %s (commit: %s)\n", version, commit)
			return err
		},
	}
}
