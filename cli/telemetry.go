package cli

// This file contains the telemetry export command.

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"github.com/valery-judah/semantic-shelf/telemetry"
)

func (a *App) telemetryExport(ctx *cli.Context) error {
	w := a.workspace(ctx)
	runID := ctx.String("run-id")

	store, err := telemetry.NewSQLiteStore(ctx.String("db"))
	if err != nil {
		return err
	}
	defer store.Close()

	paths := w.layout.Run(runID)
	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}
	n, err := store.ExportRun(ctx.Context, runID, paths.TelemetryExtract)
	if err != nil {
		return err
	}
	fmt.Fprintf(w.out, "Exported %d events to %s\n", n, paths.TelemetryExtract)
	return nil
}
