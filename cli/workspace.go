package cli

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"github.com/valery-judah/semantic-shelf/artifacts"
)

// workspace is the artifact tree and scenario directory commands operate on.
type workspace struct {
	logger       zerolog.Logger
	layout       artifacts.Layout
	scenariosDir string
	// out receives human-readable command output.
	out   io.Writer
	color bool
	now   func() time.Time
}

func (a *App) workspace(ctx *cli.Context) *workspace {
	return &workspace{
		logger:       a.logger,
		layout:       artifacts.NewLayout(ctx.String("artifacts-dir")),
		scenariosDir: ctx.String("scenarios-dir"),
		out:          ctx.App.Writer,
		color:        isatty.IsTerminal(os.Stdout.Fd()),
		now:          time.Now,
	}
}
