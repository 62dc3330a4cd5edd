package artifacts

// This file contains the on-disk layout of evaluation runs.

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Layout resolves artifact paths below an artifacts root directory
// (default "artifacts").
type Layout struct {
	Root string
}

// NewLayout returns a layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{Root: root}
}

// EvalDir is the directory holding one subdirectory per run.
func (l Layout) EvalDir() string {
	return filepath.Join(l.Root, "eval")
}

// BaselinesDir holds one pointer file per scenario.
func (l Layout) BaselinesDir() string {
	return filepath.Join(l.Root, "baselines")
}

// BaselinePointer returns the pointer file of a scenario.
func (l Layout) BaselinePointer(scenarioID string) string {
	return filepath.Join(l.BaselinesDir(), scenarioID+".json")
}

// Run returns the paths of a single run.
func (l Layout) Run(runID string) RunPaths {
	dir := filepath.Join(l.EvalDir(), runID)
	raw := filepath.Join(dir, "raw")
	summary := filepath.Join(dir, "summary")
	report := filepath.Join(dir, "report")
	return RunPaths{
		Dir:              dir,
		RunJSON:          filepath.Join(dir, "run.json"),
		RawDir:           raw,
		Anchors:          filepath.Join(raw, "anchors.json"),
		LoadgenResults:   filepath.Join(raw, "loadgen_results.json"),
		Failures:         filepath.Join(raw, "validation_failures.jsonl"),
		Requests:         filepath.Join(raw, "requests.jsonl"),
		TelemetryExtract: filepath.Join(raw, "telemetry_extract.jsonl"),
		LoadgenMetrics:   filepath.Join(raw, "loadgen_metrics.prom"),
		SampleRequests:   filepath.Join(raw, "sample_requests"),
		SummaryDir:       summary,
		Summary:          filepath.Join(summary, "summary.json"),
		Deltas:           filepath.Join(summary, "deltas.json"),
		ReportDir:        report,
		Report:           filepath.Join(report, "report.md"),
	}
}

// RunPaths are the artifact paths of one run.
type RunPaths struct {
	Dir              string
	RunJSON          string
	RawDir           string
	Anchors          string
	LoadgenResults   string
	Failures         string
	Requests         string
	TelemetryExtract string
	LoadgenMetrics   string
	SampleRequests   string
	SummaryDir       string
	Summary          string
	Deltas           string
	ReportDir        string
	Report           string
}

// Rel returns path relative to the run directory, with forward slashes.
func (p RunPaths) Rel(path string) string {
	rel, err := filepath.Rel(p.Dir, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// SampleDir is the debug sample directory of an anchor.
func (p RunPaths) SampleDir(anchorID string) string {
	return filepath.Join(p.SampleRequests, SampleName(anchorID))
}

// SampleName turns an id into a single path element. Distinct ids always
// give distinct names.
func SampleName(id string) string {
	switch id {
	case "":
		return "%"
	case ".", "..":
		return strings.Repeat("%2E", len(id))
	}
	return url.PathEscape(id)
}

// EnsureDirs creates the raw, summary and report directories.
func (p RunPaths) EnsureDirs() error {
	for _, dir := range []string{p.RawDir, p.SummaryDir, p.ReportDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
