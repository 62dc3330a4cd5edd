// Package compare resolves scenario baselines and gates a candidate run
// against one.
package compare

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/valery-judah/semantic-shelf/artifacts"
	"github.com/valery-judah/semantic-shelf/model"
)

// Gate thresholds.
const (
	MaxCorrectnessFailures   = 0.0
	MaxErrorRateIncrease     = 0.05
	MaxP95LatencyIncreaseRel = 0.20
)

// Metric names of the diff report.
const (
	MetricCorrectnessFailures = "correctness_failures"
	MetricErrorRate           = "error_rate"
	MetricP95Latency          = "p95_latency"
)

// ScenarioMismatchError is returned when the two runs belong to
// different scenarios.
type ScenarioMismatchError struct {
	Candidate, Baseline model.RunMetadata
}

func (e *ScenarioMismatchError) Error() string {
	return fmt.Sprintf("baseline scenario mismatch: candidate(run_id=%s, scenario_id=%s, scenario_version=%s) vs baseline(run_id=%s, scenario_id=%s, scenario_version=%s)",
		e.Candidate.RunID, e.Candidate.ScenarioID, e.Candidate.ScenarioVersion,
		e.Baseline.RunID, e.Baseline.ScenarioID, e.Baseline.ScenarioVersion)
}

// GateError is returned when the overall status is FAIL. The diff report
// has been written when it is returned.
type GateError struct {
	Report *model.DiffReport
}

func (e *GateError) Error() string {
	var failed []string
	for _, m := range e.Report.Metrics {
		if m.Status == model.StatusFail {
			failed = append(failed, m.Metric)
		}
	}
	return fmt.Sprintf("candidate %s regressed against baseline %s: %v", e.Report.CandidateRunID, e.Report.BaselineRunID, failed)
}

// Comparator compares evaluated runs.
type Comparator struct {
	logger zerolog.Logger
	layout artifacts.Layout
	now    func() time.Time
}

// NewComparator returns a Comparator over layout.
func NewComparator(logger zerolog.Logger, layout artifacts.Layout) *Comparator {
	return &Comparator{logger: logger, layout: layout, now: time.Now}
}

// Compare gates candidateID against baselineID and writes the diff report
// to the candidate's summary/deltas.json.
func (c *Comparator) Compare(candidateID, baselineID string) (*model.DiffReport, error) {
	cand, candSummary, err := c.load(candidateID)
	if err != nil {
		return nil, err
	}
	base, baseSummary, err := c.load(baselineID)
	if err != nil {
		return nil, err
	}
	if cand.ScenarioID != base.ScenarioID {
		return nil, &ScenarioMismatchError{Candidate: cand, Baseline: base}
	}

	report := Diff(baseSummary, candSummary)
	report.ScenarioID = cand.ScenarioID
	report.BaselineRunID = baselineID
	report.CandidateRunID = candidateID
	report.GeneratedAt = c.now().UTC()

	path := c.layout.Run(candidateID).Deltas
	if err := artifacts.WriteJSON(path, report); err != nil {
		return nil, err
	}
	c.logger.Info().
		Str("candidate_run_id", candidateID).
		Str("baseline_run_id", baselineID).
		Str("status", string(report.OverallStatus)).
		Str("path", path).
		Msg("Wrote diff report")

	if report.OverallStatus == model.StatusFail {
		return &report, &GateError{Report: &report}
	}
	return &report, nil
}

func (c *Comparator) load(runID string) (model.RunMetadata, model.RunSummary, error) {
	paths := c.layout.Run(runID)
	run, err := artifacts.ReadRunMetadata(paths.RunJSON)
	if err != nil {
		return run, model.RunSummary{}, err
	}
	summary, err := artifacts.ReadSummary(paths.Summary)
	return run, summary, err
}

// Diff evaluates the three hard gates. Identity fields are left empty.
func Diff(baseline, candidate model.RunSummary) model.DiffReport {
	metrics := []model.MetricDiff{
		correctnessGate(baseline.Counts.CorrectnessFailures, candidate.Counts.CorrectnessFailures),
		errorRateGate(baseline.Counts.ErrorRate, candidate.Counts.ErrorRate),
		p95Gate(baseline.Latency.P95MS, candidate.Latency.P95MS),
	}
	overall := model.StatusPass
	for _, m := range metrics {
		if m.Status == model.StatusFail {
			overall = model.StatusFail
		}
	}
	return model.DiffReport{
		DiffSchemaVersion: model.DiffSchemaVersion,
		OverallStatus:     overall,
		Metrics:           metrics,
	}
}

// correctnessGate fails on any candidate failure; the baseline count is
// informational.
func correctnessGate(baseline, candidate int) model.MetricDiff {
	b, c := float64(baseline), float64(candidate)
	status := model.StatusPass
	if c > MaxCorrectnessFailures {
		status = model.StatusFail
	}
	return model.MetricDiff{
		Metric:         MetricCorrectnessFailures,
		BaselineValue:  ptr(b),
		CandidateValue: ptr(c),
		AbsoluteDelta:  ptr(c - b),
		Status:         status,
		GateType:       model.GateHard,
		Threshold:      model.Threshold{Max: ptr(MaxCorrectnessFailures)},
	}
}

func errorRateGate(baseline, candidate float64) model.MetricDiff {
	delta := candidate - baseline
	status := model.StatusPass
	if delta > MaxErrorRateIncrease {
		status = model.StatusFail
	}
	return model.MetricDiff{
		Metric:         MetricErrorRate,
		BaselineValue:  ptr(baseline),
		CandidateValue: ptr(candidate),
		AbsoluteDelta:  ptr(delta),
		Status:         status,
		GateType:       model.GateHard,
		Threshold:      model.Threshold{MaxIncrease: ptr(MaxErrorRateIncrease)},
	}
}

// p95Gate is INFO when either side has no latency. A zero baseline yields
// a relative delta of zero.
func p95Gate(baseline, candidate *float64) model.MetricDiff {
	d := model.MetricDiff{
		Metric:         MetricP95Latency,
		BaselineValue:  baseline,
		CandidateValue: candidate,
		Status:         model.StatusInfo,
		GateType:       model.GateHard,
		Threshold:      model.Threshold{MaxIncreaseRatio: ptr(MaxP95LatencyIncreaseRel)},
	}
	if baseline == nil || candidate == nil {
		return d
	}
	abs := *candidate - *baseline
	rel := 0.0
	if *baseline > 0 {
		rel = abs / *baseline
	}
	d.AbsoluteDelta = ptr(abs)
	d.RelativeDelta = ptr(rel)
	d.Status = model.StatusPass
	if rel > MaxP95LatencyIncreaseRel {
		d.Status = model.StatusFail
	}
	return d
}

func ptr(v float64) *float64 {
	return &v
}
