package cli

// This file contains the run command, which chains init, loadgen,
// evaluate and the baseline comparison.

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
	"github.com/valery-judah/semantic-shelf/compare"
)

func pipelineFlags() []cli.Flag {
	flags := initFlags()
	flags = append(flags, loadgenFlags(false)...)
	flags = append(flags, evaluateFlags(false)...)
	return append(flags, &cli.BoolFlag{
		Name:  "auto-promote",
		Usage: "Promote the run as baseline when the scenario has none and the run passed",
	})
}

// pipelineOptions configure one end-to-end run.
type pipelineOptions struct {
	Params      runParams
	Endpoints   endpoints
	Evaluate    evaluateOptions
	AutoPromote bool
}

func (a *App) pipelineCommand(ctx *cli.Context) error {
	_, err := a.workspace(ctx).pipeline(ctx.Context, pipelineOptions{
		Params:      a.runParamsFrom(ctx),
		Endpoints:   endpointsFrom(ctx),
		Evaluate:    evaluateOptionsFrom(ctx),
		AutoPromote: ctx.Bool("auto-promote"),
	})
	return err
}

// pipeline runs every stage for a new run and returns its id. It stops at
// the first failing stage. Paired runs are gated by the evaluator alone.
func (w *workspace) pipeline(ctx context.Context, opts pipelineOptions) (string, error) {
	run, err := w.initRun(opts.Params)
	if err != nil {
		return "", err
	}
	runID := run.RunID
	logger := w.logger.With().Str("run_id", runID).Logger()

	if _, err := w.loadgen(ctx, runID, opts.Endpoints); err != nil {
		return runID, err
	}

	outcome, err := w.evaluate(ctx, runID, opts.Evaluate)
	if err != nil {
		return runID, err
	}
	if outcome.Deltas != nil {
		logger.Info().Msg("Paired run gated by its own arms, skipping baseline comparison")
		return runID, nil
	}

	store := compare.NewStore(w.logger, w.layout)
	baseline, err := store.Resolve(run.ScenarioID)
	if err != nil {
		return runID, err
	}
	if baseline == nil {
		if opts.AutoPromote {
			if _, err := store.Promote(runID); err != nil {
				return runID, err
			}
			fmt.Fprintf(w.out, "Promoted %s as first baseline of %s\n", runID, run.ScenarioID)
			return runID, nil
		}
		logger.Warn().Str("scenario_id", run.ScenarioID).Msg("No baseline found, skipping comparison")
		fmt.Fprintf(w.out, "To promote this run as baseline: %s baseline promote --run-id %s\n", AppName, runID)
		return runID, nil
	}

	if baseline.RunID == runID {
		return runID, nil
	}
	logger.Info().Str("baseline_run_id", baseline.RunID).Str("source", string(baseline.Source)).Msg("Comparing against baseline")
	_, err = w.compare(runID, baseline.RunID)
	return runID, err
}
