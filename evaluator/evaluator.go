// Package evaluator turns the raw artifacts of a run into its summary,
// debug samples, report and single-run gate decision.
package evaluator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/valery-judah/semantic-shelf/artifacts"
	"github.com/valery-judah/semantic-shelf/metrics"
	"github.com/valery-judah/semantic-shelf/model"
	"github.com/valery-judah/semantic-shelf/report"
	"github.com/valery-judah/semantic-shelf/scenario"
	"github.com/valery-judah/semantic-shelf/telemetry"
)

const (
	DefaultSampleCap = 3
	DefaultTopN      = 5
)

// Options configures an evaluation.
type Options struct {
	RunID        string
	Layout       artifacts.Layout
	ScenariosDir string
	// TelemetryDB is a sqlite DSN exported to the run extract when the
	// extract does not exist yet.
	TelemetryDB string
	K           int
	SampleCap   int
	TopN        int
}

// Outcome is the result of a completed evaluation.
type Outcome struct {
	Summary    model.RunSummary
	Deltas     *model.PairedDeltas
	Gate       report.Gate
	DebugFiles []string
	Paths      artifacts.RunPaths
}

// Evaluator evaluates runs.
type Evaluator struct {
	logger zerolog.Logger
	opts   Options
}

// New returns an Evaluator with defaults applied to opts.
func New(logger zerolog.Logger, opts Options) *Evaluator {
	if opts.SampleCap <= 0 {
		opts.SampleCap = DefaultSampleCap
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.K <= 0 {
		opts.K = telemetry.DefaultK
	}
	return &Evaluator{
		logger: logger.With().Str("run_id", opts.RunID).Logger(),
		opts:   opts,
	}
}

// inputs are the artifacts an evaluation reads.
type inputs struct {
	run      model.RunMetadata
	scenario *scenario.Config
	anchors  model.AnchorSelection
	results  model.LoadgenResults
	failures []model.ValidationFailure
	slices   *model.SliceConfig
}

// Evaluate reads every input, then writes summary/summary.json,
// summary/deltas.json for paired runs, debug samples and the report. A
// failing gate is reported as *GateError after everything is written.
func (e *Evaluator) Evaluate(ctx context.Context) (*Outcome, error) {
	if e.opts.RunID == "" {
		return nil, errors.New("run id is required")
	}
	paths := e.opts.Layout.Run(e.opts.RunID)

	in, err := e.load(paths)
	if err != nil {
		return nil, err
	}

	scan, err := e.scanRequests(paths, in)
	if err != nil {
		return nil, err
	}

	events, status, err := e.loadTelemetry(ctx, paths)
	if err != nil {
		return nil, err
	}

	summary := metrics.BuildSummary(e.opts.RunID, in.results, in.failures)
	if scan.slices != nil {
		summary.Slices = scan.slices.Metrics()
	}
	summary.QualityMetricsStatus = status
	summary.QualityMetricsNotes = []string{}
	if status != model.QualityNoTelemetry {
		qm := telemetry.ComputeQualityMetrics(events, e.opts.K)
		summary.QualityMetrics = &qm
		if notes := telemetry.SufficiencyNotes(qm); len(notes) > 0 {
			summary.QualityMetricsNotes = notes
		}
	}

	if err := artifacts.WriteJSON(paths.Summary, summary); err != nil {
		return nil, err
	}
	e.logger.Info().Str("path", paths.Summary).Msg("Wrote summary")

	var deltas *model.PairedDeltas
	if scan.pairs.Paired() {
		d := scan.pairs.PairedDeltas(e.opts.RunID)
		deltas = &d
		if err := artifacts.WriteJSON(paths.Deltas, d); err != nil {
			return nil, err
		}
		e.logger.Info().Int("pairs", d.Stats.Count).Int("regressions", d.Stats.Regressions).Msg("Wrote paired deltas")
	}

	topFailures := metrics.TopFailingAnchors(steadyFailures(in.failures), e.opts.TopN)
	worst := scan.latency.Top(e.opts.TopN)

	targets := make([]string, 0, len(topFailures)+len(worst))
	for _, a := range topFailures {
		targets = append(targets, a.AnchorID)
	}
	for _, a := range worst {
		targets = append(targets, a.AnchorID)
	}
	debugFiles, err := ExtractSamples(paths, targets, e.opts.SampleCap)
	if err != nil {
		return nil, err
	}

	gate := Decide(summary, scan.pairs)

	md := report.Render(report.Input{
		Run:          in.run,
		Scenario:     in.scenario,
		Anchors:      in.anchors,
		Summary:      summary,
		TopFailures:  topFailures,
		WorstLatency: worst,
		DebugFiles:   debugFiles,
		Deltas:       deltas,
		Gate:         gate,
	})
	if err := writeFile(paths.Report, []byte(md)); err != nil {
		return nil, err
	}
	e.logger.Info().Str("path", paths.Report).Msg("Wrote report")

	out := &Outcome{
		Summary:    summary,
		Deltas:     deltas,
		Gate:       gate,
		DebugFiles: debugFiles,
		Paths:      paths,
	}
	if !gate.Passed {
		return out, &GateError{RunID: e.opts.RunID, Reason: gate.Reason}
	}
	return out, nil
}

func (e *Evaluator) load(paths artifacts.RunPaths) (*inputs, error) {
	in := &inputs{}
	var err error

	if in.run, err = artifacts.ReadRunMetadata(paths.RunJSON); err != nil {
		return nil, err
	}
	if in.run.RunID != e.opts.RunID {
		return nil, &artifacts.ArtifactError{
			Path: paths.RunJSON,
			Err:  fmt.Errorf("run_id %q does not match requested run %q", in.run.RunID, e.opts.RunID),
		}
	}
	e.logger.Debug().Str("scenario_id", in.run.ScenarioID).Msg("Loaded run metadata")

	if in.scenario, err = scenario.LoadOptional(e.opts.ScenariosDir, in.run.ScenarioID); err != nil {
		return nil, err
	}
	if in.scenario == nil {
		e.logger.Warn().Str("scenario_id", in.run.ScenarioID).Msg("Scenario config not found, report will omit traffic settings")
	}

	if in.anchors, err = artifacts.ReadAnchorSelection(paths.Anchors); err != nil {
		return nil, err
	}
	if in.anchors.RequestedCount != in.run.AnchorCount {
		return nil, &artifacts.ArtifactError{
			Path: paths.Anchors,
			Err:  fmt.Errorf("requested_count %d does not match run anchor_count %d", in.anchors.RequestedCount, in.run.AnchorCount),
		}
	}

	if in.results, err = artifacts.ReadLoadgenResults(paths.LoadgenResults); err != nil {
		return nil, err
	}
	if in.failures, err = artifacts.ReadFailures(paths.Failures); err != nil {
		return nil, err
	}

	if in.anchors.HasMetadata() {
		if in.slices, err = scenario.LoadSlicesOptional(e.opts.ScenariosDir, in.run.ScenarioID); err != nil {
			return nil, err
		}
	}
	return in, nil
}

type scanResult struct {
	latency *metrics.LatencyTracker
	pairs   *metrics.PairTracker
	slices  *metrics.SliceAccumulator
}

// scanRequests streams the request records once into every tracker.
func (e *Evaluator) scanRequests(paths artifacts.RunPaths, in *inputs) (*scanResult, error) {
	res := &scanResult{
		latency: metrics.NewLatencyTracker(),
		pairs:   metrics.NewPairTracker(),
	}
	if in.slices != nil {
		res.slices = metrics.NewSliceAccumulator(*in.slices, in.anchors.Anchors)
	}
	lines := 0
	err := artifacts.ScanRequests(paths.Requests, func(_ int, rec model.RequestRecord) error {
		lines++
		if rec.Phase != model.PhaseSteadyState {
			return nil
		}
		res.latency.Observe(rec)
		res.pairs.Observe(rec)
		if res.slices != nil {
			res.slices.Observe(rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Debug().Int("records", lines).Msg("Scanned request records")
	return res, nil
}

// loadTelemetry prefers the run extract and falls back to exporting from
// the telemetry database.
func (e *Evaluator) loadTelemetry(ctx context.Context, paths artifacts.RunPaths) ([]model.TelemetryEvent, model.QualityMetricsStatus, error) {
	if artifacts.Exists(paths.TelemetryExtract) {
		events, err := artifacts.ReadTelemetryExtract(paths.TelemetryExtract)
		if err != nil {
			return nil, "", err
		}
		return events, model.QualityFromExtract, nil
	}
	if e.opts.TelemetryDB == "" {
		return nil, model.QualityNoTelemetry, nil
	}

	store, err := telemetry.NewSQLiteStore(e.opts.TelemetryDB)
	if err != nil {
		return nil, "", err
	}
	defer store.Close()
	n, err := store.ExportRun(ctx, e.opts.RunID, paths.TelemetryExtract)
	if err != nil {
		return nil, "", fmt.Errorf("failed to export telemetry: %w", err)
	}
	e.logger.Info().Int("events", n).Str("path", paths.TelemetryExtract).Msg("Exported telemetry")
	events, err := artifacts.ReadTelemetryExtract(paths.TelemetryExtract)
	if err != nil {
		return nil, "", err
	}
	return events, model.QualityFromDBThenExported, nil
}

func steadyFailures(failures []model.ValidationFailure) []model.ValidationFailure {
	out := make([]model.ValidationFailure, 0, len(failures))
	for _, f := range failures {
		if f.Phase == model.PhaseSteadyState {
			out = append(out, f)
		}
	}
	return out
}
