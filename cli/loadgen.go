package cli

// This file contains the loadgen command.

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
	"github.com/valery-judah/semantic-shelf/artifacts"
	"github.com/valery-judah/semantic-shelf/loadgen"
	"github.com/valery-judah/semantic-shelf/scenario"
)

const defaultAPIURL = "http://localhost:8000"

// endpoints are the service URLs traffic is sent to.
type endpoints struct {
	API       string
	Baseline  string
	Candidate string
	QueueSize int
}

func loadgenFlags(withRunID bool) []cli.Flag {
	var flags []cli.Flag
	if withRunID {
		flags = append(flags, &cli.StringFlag{
			Name:     "run-id",
			Usage:    "Initialized run to drive traffic for",
			Required: true,
			EnvVars:  []string{"EVAL_RUN_ID"},
		})
	}
	return append(flags,
		&cli.StringFlag{
			Name:    "api-url",
			Usage:   "Base URL of the recommendation service",
			Value:   defaultAPIURL,
			EnvVars: []string{"API_URL"},
		},
		&cli.StringFlag{
			Name:  "baseline-api-url",
			Usage: "Base URL of the baseline arm in paired runs (default --api-url)",
		},
		&cli.StringFlag{
			Name:  "candidate-api-url",
			Usage: "Base URL of the candidate arm in paired runs (default --api-url)",
		},
		&cli.IntFlag{
			Name:  "telemetry-queue-size",
			Usage: "Pending synthetic telemetry batches before new ones are dropped",
			Value: loadgen.DefaultTelemetryQueueSize,
		},
	)
}

func endpointsFrom(ctx *cli.Context) endpoints {
	return endpoints{
		API:       ctx.String("api-url"),
		Baseline:  ctx.String("baseline-api-url"),
		Candidate: ctx.String("candidate-api-url"),
		QueueSize: ctx.Int("telemetry-queue-size"),
	}
}

func (a *App) loadgenCommand(ctx *cli.Context) error {
	_, err := a.workspace(ctx).loadgen(ctx.Context, ctx.String("run-id"), endpointsFrom(ctx))
	return err
}

// loadgen drives the traffic of an initialized run. The scenario file of
// the run is required.
func (w *workspace) loadgen(ctx context.Context, runID string, ep endpoints) (*loadgen.Result, error) {
	paths := w.layout.Run(runID)
	run, err := artifacts.ReadRunMetadata(paths.RunJSON)
	if err != nil {
		return nil, err
	}
	selection, err := artifacts.ReadAnchorSelection(paths.Anchors)
	if err != nil {
		return nil, err
	}
	cfg, err := scenario.Load(scenario.Path(w.scenariosDir, run.ScenarioID))
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	g, err := loadgen.New(w.logger, loadgen.Options{
		RunID:              runID,
		Scenario:           cfg,
		APIURL:             ep.API,
		BaselineURL:        ep.Baseline,
		CandidateURL:       ep.Candidate,
		Anchors:            selection.IDs(),
		Seed:               run.Seed,
		TelemetryQueueSize: ep.QueueSize,
	})
	if err != nil {
		return nil, err
	}
	res, err := g.Run(ctx, paths)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(w.out, "Loadgen finished: %d requests, %d failed (steady state: %d/%d passed)\n",
		res.Total, res.Failed, res.Results.PassedRequests, res.Results.TotalRequests)
	return res, nil
}
