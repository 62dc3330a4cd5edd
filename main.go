package main

import (
	"os"

	"github.com/valery-judah/semantic-shelf/cli"
)

// Version information, set by goreleaser via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	c := cli.New()
	c.SetVersion(version, commit, date)
	if err := c.Run(os.Args); err != nil {
		logger := c.Logger()
		logger.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
