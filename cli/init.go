package cli

// This file contains the init command, which creates a run directory with
// its metadata and anchor selection.

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"github.com/valery-judah/semantic-shelf/anchors"
	"github.com/valery-judah/semantic-shelf/artifacts"
	"github.com/valery-judah/semantic-shelf/model"
	"github.com/valery-judah/semantic-shelf/scenario"
)

const (
	defaultScenarioID      = "similar_books_smoke"
	defaultScenarioVersion = "1.0"
	defaultDatasetID       = "local_dev"
	defaultSeed            = 42
	defaultAnchorCount     = 6
)

// runParams identify a new run.
type runParams struct {
	RunID           string
	ScenarioID      string
	ScenarioVersion string
	DatasetID       string
	Seed            int64
	AnchorCount     int
	// Without AnchorCountSet the count comes from the scenario file, or
	// defaultAnchorCount without one. An explicit 0 selects no anchors.
	AnchorCountSet bool
	GitSHA         string
}

func initFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "run-id",
			Usage:   "Run identifier (default run_<8 hex>)",
			EnvVars: []string{"EVAL_RUN_ID"},
		},
		&cli.StringFlag{
			Name:    "scenario",
			Usage:   "Scenario id",
			Value:   defaultScenarioID,
			EnvVars: []string{"EVAL_SCENARIO"},
		},
		&cli.StringFlag{
			Name:    "scenario-version",
			Usage:   "Scenario version recorded in run.json",
			Value:   defaultScenarioVersion,
			EnvVars: []string{"EVAL_SCENARIO_VERSION"},
		},
		&cli.StringFlag{
			Name:    "dataset-id",
			Usage:   "Dataset the anchors are drawn from",
			Value:   defaultDatasetID,
			EnvVars: []string{"EVAL_DATASET_ID"},
		},
		&cli.Int64Flag{
			Name:    "seed",
			Usage:   "Seed of the anchor selection and synthetic clicks",
			Value:   defaultSeed,
			EnvVars: []string{"EVAL_SEED"},
		},
		&cli.IntFlag{
			Name:    "anchor-count",
			Usage:   "Number of anchors (default: scenario anchors.anchor_count, else 6)",
			EnvVars: []string{"EVAL_ANCHOR_COUNT"},
		},
		&cli.StringFlag{
			Name:    "git-sha",
			Usage:   "Commit under test (default: git rev-parse HEAD)",
			EnvVars: []string{"GIT_SHA"},
		},
	}
}

func (a *App) runParamsFrom(ctx *cli.Context) runParams {
	return runParams{
		RunID:           ctx.String("run-id"),
		ScenarioID:      ctx.String("scenario"),
		ScenarioVersion: ctx.String("scenario-version"),
		DatasetID:       ctx.String("dataset-id"),
		Seed:            ctx.Int64("seed"),
		AnchorCount:     ctx.Int("anchor-count"),
		AnchorCountSet:  ctx.IsSet("anchor-count"),
		GitSHA:          a.resolveGitSHA(ctx.String("git-sha")),
	}
}

func (a *App) initCommand(ctx *cli.Context) error {
	w := a.workspace(ctx)
	run, err := w.initRun(a.runParamsFrom(ctx))
	if err != nil {
		return err
	}
	fmt.Fprintln(w.out, run.RunID)
	return nil
}

// newRunID returns run_ followed by 8 hex characters.
func newRunID() string {
	return "run_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// initRun selects the anchors of a new run and writes run.json and
// raw/anchors.json.
func (w *workspace) initRun(p runParams) (model.RunMetadata, error) {
	if p.RunID == "" {
		p.RunID = newRunID()
	}
	if p.ScenarioID == "" {
		p.ScenarioID = defaultScenarioID
	}
	if p.ScenarioVersion == "" {
		p.ScenarioVersion = defaultScenarioVersion
	}
	if p.DatasetID == "" {
		p.DatasetID = defaultDatasetID
	}
	if p.GitSHA == "" {
		p.GitSHA = "unknown"
	}
	if p.AnchorCount < 0 {
		return model.RunMetadata{}, fmt.Errorf("anchor count must not be negative, got %d", p.AnchorCount)
	}
	if !p.AnchorCountSet {
		cfg, err := scenario.LoadOptional(w.scenariosDir, p.ScenarioID)
		if err != nil {
			return model.RunMetadata{}, err
		}
		p.AnchorCount = defaultAnchorCount
		if cfg != nil {
			p.AnchorCount = cfg.Anchors.AnchorCount
		}
	}

	logger := w.logger.With().Str("run_id", p.RunID).Logger()

	selector := anchors.NewSelector(
		anchors.NewFileGoldenRepository(filepath.Join(w.scenariosDir, "goldens")),
		anchors.BuiltinCatalog(),
	)
	selected, err := selector.Select(p.DatasetID, p.ScenarioID, p.Seed, p.AnchorCount)
	if err != nil {
		return model.RunMetadata{}, fmt.Errorf("failed to select anchors: %w", err)
	}

	run := model.RunMetadata{
		RunID:            p.RunID,
		RunSchemaVersion: model.RunSchemaVersion,
		CreatedAt:        w.now().UTC(),
		ScenarioID:       p.ScenarioID,
		ScenarioVersion:  p.ScenarioVersion,
		GitSHA:           p.GitSHA,
		DatasetID:        p.DatasetID,
		Seed:             p.Seed,
		AnchorCount:      p.AnchorCount,
	}
	selection := model.AnchorSelection{
		AnchorsSchemaVersion: model.AnchorsSchemaVersion,
		RunID:                p.RunID,
		ScenarioID:           p.ScenarioID,
		DatasetID:            p.DatasetID,
		Seed:                 p.Seed,
		RequestedCount:       p.AnchorCount,
		Anchors:              selected,
	}

	paths := w.layout.Run(p.RunID)
	if err := paths.EnsureDirs(); err != nil {
		return model.RunMetadata{}, fmt.Errorf("failed to create run directory: %w", err)
	}
	if err := artifacts.WriteJSON(paths.RunJSON, run); err != nil {
		return model.RunMetadata{}, err
	}
	if err := artifacts.WriteJSON(paths.Anchors, selection); err != nil {
		return model.RunMetadata{}, err
	}

	if len(selected) < p.AnchorCount {
		logger.Warn().
			Int("requested", p.AnchorCount).
			Int("selected", len(selected)).
			Msg("Anchor pool is smaller than the requested count")
	}
	logger.Info().
		Str("scenario_id", p.ScenarioID).
		Str("dataset_id", p.DatasetID).
		Int("anchors", len(selected)).
		Str("path", paths.Dir).
		Msg("Initialized run")
	return run, nil
}
