package cli

// This file contains the evaluate command.

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
	"github.com/valery-judah/semantic-shelf/evaluator"
	"github.com/valery-judah/semantic-shelf/telemetry"
)

func evaluateFlags(withRunID bool) []cli.Flag {
	var flags []cli.Flag
	if withRunID {
		flags = append(flags, &cli.StringFlag{
			Name:     "run-id",
			Usage:    "Run to evaluate",
			Required: true,
			EnvVars:  []string{"EVAL_RUN_ID"},
		})
	}
	return append(flags,
		&cli.StringFlag{
			Name:  "telemetry-db",
			Usage: "SQLite telemetry database exported when the run has no telemetry extract",
		},
		&cli.IntFlag{
			Name:  "k",
			Usage: "Cut-off of the quality metrics",
			Value: telemetry.DefaultK,
		},
	)
}

// evaluateOptions are the evaluation knobs exposed on the command line.
type evaluateOptions struct {
	TelemetryDB string
	K           int
}

func evaluateOptionsFrom(ctx *cli.Context) evaluateOptions {
	return evaluateOptions{
		TelemetryDB: ctx.String("telemetry-db"),
		K:           ctx.Int("k"),
	}
}

func (a *App) evaluateCommand(ctx *cli.Context) error {
	_, err := a.workspace(ctx).evaluate(ctx.Context, ctx.String("run-id"), evaluateOptionsFrom(ctx))
	return err
}

// evaluate runs the evaluator. A failing gate is returned as
// *evaluator.GateError after the outcome has been printed.
func (w *workspace) evaluate(ctx context.Context, runID string, opts evaluateOptions) (*evaluator.Outcome, error) {
	e := evaluator.New(w.logger, evaluator.Options{
		RunID:        runID,
		Layout:       w.layout,
		ScenariosDir: w.scenariosDir,
		TelemetryDB:  opts.TelemetryDB,
		K:            opts.K,
	})
	outcome, err := e.Evaluate(ctx)
	if outcome == nil {
		return nil, err
	}

	status := "PASS"
	if !outcome.Gate.Passed {
		status = "FAIL"
	}
	fmt.Fprintf(w.out, "Gate: %s (%s)\n", status, outcome.Gate.Reason)
	fmt.Fprintf(w.out, "Report: %s\n", outcome.Paths.Report)
	fmt.Fprintf(w.out, "Summary: %s\n", outcome.Paths.Summary)
	if outcome.Deltas != nil {
		fmt.Fprintf(w.out, "Deltas: %s\n", outcome.Paths.Deltas)
	}
	return outcome, err
}
