package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/valery-judah/semantic-shelf/anchors"
	"github.com/valery-judah/semantic-shelf/artifacts"
	"github.com/valery-judah/semantic-shelf/compare"
	"github.com/valery-judah/semantic-shelf/evaluator"
	"github.com/valery-judah/semantic-shelf/model"
	"github.com/valery-judah/semantic-shelf/stubservice"
)

const smokeScenario = `schema_version: "1.0.0"
scenario_id: similar_books_smoke
traffic:
  concurrency: 4
  request_count: 12
anchors:
  anchor_count: 4
`

func newTestWorkspace(t *testing.T, scenarioYAML string) (*workspace, *bytes.Buffer) {
	t.Helper()
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(scenarios, 0755))
	if scenarioYAML != "" {
		require.NoError(t, os.WriteFile(filepath.Join(scenarios, "similar_books_smoke.yaml"), []byte(scenarioYAML), 0644))
	}
	out := &bytes.Buffer{}
	return &workspace{
		logger:       zerolog.Nop(),
		layout:       artifacts.NewLayout(filepath.Join(root, "artifacts")),
		scenariosDir: scenarios,
		out:          out,
		now:          func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}, out
}

func newTestStub(t *testing.T, opts stubservice.Options) string {
	t.Helper()
	srv := httptest.NewServer(stubservice.New(zerolog.Nop(), opts))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestInitRunDefaults(t *testing.T) {
	w, _ := newTestWorkspace(t, "")

	run, err := w.initRun(runParams{Seed: 42})
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^run_[0-9a-f]{8}$`), run.RunID)
	require.Equal(t, "similar_books_smoke", run.ScenarioID)
	require.Equal(t, "1.0", run.ScenarioVersion)
	require.Equal(t, "local_dev", run.DatasetID)
	require.Equal(t, "unknown", run.GitSHA)
	require.Equal(t, 6, run.AnchorCount)

	paths := w.layout.Run(run.RunID)
	stored, err := artifacts.ReadRunMetadata(paths.RunJSON)
	require.NoError(t, err)
	require.Equal(t, run, stored)

	selection, err := artifacts.ReadAnchorSelection(paths.Anchors)
	require.NoError(t, err)
	require.Equal(t, 6, selection.RequestedCount)
	require.Len(t, selection.Anchors, 6)
	require.DirExists(t, paths.SummaryDir)
	require.DirExists(t, paths.ReportDir)
}

func TestInitRunIsDeterministic(t *testing.T) {
	w, _ := newTestWorkspace(t, "")

	var selections [][]string
	for _, id := range []string{"run_one", "run_two"} {
		_, err := w.initRun(runParams{RunID: id, Seed: 7, AnchorCount: 5, AnchorCountSet: true})
		require.NoError(t, err)
		selection, err := artifacts.ReadAnchorSelection(w.layout.Run(id).Anchors)
		require.NoError(t, err)
		selections = append(selections, selection.IDs())
	}
	require.Equal(t, selections[0], selections[1])
}

func TestInitRunAnchorCount(t *testing.T) {
	t.Run("from scenario file", func(t *testing.T) {
		w, _ := newTestWorkspace(t, smokeScenario)
		run, err := w.initRun(runParams{RunID: "run_a"})
		require.NoError(t, err)
		require.Equal(t, 4, run.AnchorCount)
	})

	t.Run("larger than the pool", func(t *testing.T) {
		w, _ := newTestWorkspace(t, "")
		run, err := w.initRun(runParams{RunID: "run_a", AnchorCount: 50, AnchorCountSet: true})
		require.NoError(t, err)
		require.Equal(t, 50, run.AnchorCount)

		selection, err := artifacts.ReadAnchorSelection(w.layout.Run("run_a").Anchors)
		require.NoError(t, err)
		require.Equal(t, 50, selection.RequestedCount)
		require.Len(t, selection.Anchors, 12)
	})

	t.Run("explicit zero", func(t *testing.T) {
		w, _ := newTestWorkspace(t, smokeScenario)
		run, err := w.initRun(runParams{RunID: "run_a", AnchorCount: 0, AnchorCountSet: true})
		require.NoError(t, err)
		require.Equal(t, 0, run.AnchorCount)

		selection, err := artifacts.ReadAnchorSelection(w.layout.Run("run_a").Anchors)
		require.NoError(t, err)
		require.Equal(t, 0, selection.RequestedCount)
		require.Empty(t, selection.Anchors)
	})

	t.Run("negative", func(t *testing.T) {
		w, _ := newTestWorkspace(t, "")
		_, err := w.initRun(runParams{RunID: "run_a", AnchorCount: -1, AnchorCountSet: true})
		require.Error(t, err)
	})
}

func TestInitRunUnknownDataset(t *testing.T) {
	w, _ := newTestWorkspace(t, "")

	_, err := w.initRun(runParams{RunID: "run_a", DatasetID: "prod"})
	require.ErrorIs(t, err, anchors.ErrAnchorsNotFound)
	require.NoFileExists(t, w.layout.Run("run_a").RunJSON)
}

func TestPipeline(t *testing.T) {
	w, out := newTestWorkspace(t, smokeScenario)
	api := newTestStub(t, stubservice.Options{Latency: 20 * time.Millisecond})
	ctx := context.Background()

	opts := func(runID string, autoPromote bool) pipelineOptions {
		return pipelineOptions{
			Params:      runParams{RunID: runID, Seed: 42, GitSHA: "abc123"},
			Endpoints:   endpoints{API: api},
			AutoPromote: autoPromote,
		}
	}

	// No baseline yet: the first passing run is promoted.
	runID, err := w.pipeline(ctx, opts("run_base", true))
	require.NoError(t, err)
	require.Equal(t, "run_base", runID)
	require.Contains(t, out.String(), "Promoted run_base as first baseline of similar_books_smoke")

	pointer, err := artifacts.ReadBaselinePointer(w.layout.BaselinePointer("similar_books_smoke"))
	require.NoError(t, err)
	require.Equal(t, "run_base", pointer.RunID)

	summary, err := artifacts.ReadSummary(w.layout.Run("run_base").Summary)
	require.NoError(t, err)
	require.Equal(t, 12, summary.Counts.TotalRequests)
	require.Zero(t, summary.Counts.FailedRequests)
	require.FileExists(t, w.layout.Run("run_base").Report)
	require.NoFileExists(t, w.layout.Run("run_base").Deltas)

	// The second run is compared against the promoted baseline.
	out.Reset()
	_, err = w.pipeline(ctx, opts("run_next", false))
	require.NoError(t, err)
	require.Contains(t, out.String(), "Gating Passed")

	data, err := os.ReadFile(w.layout.Run("run_next").Deltas)
	require.NoError(t, err)
	var diff model.DiffReport
	require.NoError(t, json.Unmarshal(data, &diff))
	require.Equal(t, "run_base", diff.BaselineRunID)
	require.Equal(t, "run_next", diff.CandidateRunID)
	require.Equal(t, model.StatusPass, diff.OverallStatus)
}

func TestPipelineWithoutBaseline(t *testing.T) {
	w, out := newTestWorkspace(t, smokeScenario)
	api := newTestStub(t, stubservice.Options{})

	_, err := w.pipeline(context.Background(), pipelineOptions{
		Params:    runParams{RunID: "run_a"},
		Endpoints: endpoints{API: api},
	})
	require.NoError(t, err)
	require.Contains(t, out.String(), "shelfeval baseline promote --run-id run_a")
	require.NoFileExists(t, w.layout.BaselinePointer("similar_books_smoke"))
}

func TestPipelineStopsOnFailingEvaluation(t *testing.T) {
	w, _ := newTestWorkspace(t, smokeScenario)
	healthy := newTestStub(t, stubservice.Options{})
	ctx := context.Background()

	_, err := w.pipeline(ctx, pipelineOptions{
		Params:      runParams{RunID: "run_base"},
		Endpoints:   endpoints{API: healthy},
		AutoPromote: true,
	})
	require.NoError(t, err)

	selection, err := artifacts.ReadAnchorSelection(w.layout.Run("run_base").Anchors)
	require.NoError(t, err)
	faults := map[string]stubservice.Fault{}
	for _, id := range selection.IDs() {
		faults[id] = stubservice.FaultServerError
	}
	broken := newTestStub(t, stubservice.Options{Faults: faults})

	_, err = w.pipeline(ctx, pipelineOptions{
		Params:    runParams{RunID: "run_broken"},
		Endpoints: endpoints{API: broken},
	})
	var gateErr *evaluator.GateError
	require.True(t, errors.As(err, &gateErr), "unexpected error: %v", err)
	require.Equal(t, "run_broken", gateErr.RunID)
	require.FileExists(t, w.layout.Run("run_broken").Report)
	require.NoFileExists(t, w.layout.Run("run_broken").Deltas)
}

func TestPipelinePairedSkipsComparison(t *testing.T) {
	w, out := newTestWorkspace(t, smokeScenario+"paired_arms: true\n")
	api := newTestStub(t, stubservice.Options{})
	ctx := context.Background()

	pointerPath := w.layout.BaselinePointer("similar_books_smoke")
	require.NoError(t, artifacts.WriteJSON(pointerPath, model.BaselinePointer{
		RunID:      "run_missing",
		ScenarioID: "similar_books_smoke",
	}))

	_, err := w.pipeline(ctx, pipelineOptions{
		Params:    runParams{RunID: "run_paired"},
		Endpoints: endpoints{API: api},
	})
	require.NoError(t, err)
	require.Contains(t, out.String(), "Deltas:")

	data, err := os.ReadFile(w.layout.Run("run_paired").Deltas)
	require.NoError(t, err)
	require.Contains(t, string(data), `"paired_deltas_schema_version"`)
}

func TestCompareRegression(t *testing.T) {
	w, out := newTestWorkspace(t, smokeScenario)
	ctx := context.Background()

	fast := newTestStub(t, stubservice.Options{})
	_, err := w.pipeline(ctx, pipelineOptions{
		Params:      runParams{RunID: "run_base"},
		Endpoints:   endpoints{API: fast},
		AutoPromote: true,
	})
	require.NoError(t, err)

	selection, err := artifacts.ReadAnchorSelection(w.layout.Run("run_base").Anchors)
	require.NoError(t, err)
	broken := newTestStub(t, stubservice.Options{Faults: map[string]stubservice.Fault{
		selection.IDs()[0]: stubservice.FaultDuplicates,
	}})
	_, err = w.initRun(runParams{RunID: "run_cand"})
	require.NoError(t, err)
	_, err = w.loadgen(ctx, "run_cand", endpoints{API: broken})
	require.NoError(t, err)
	_, err = w.evaluate(ctx, "run_cand", evaluateOptions{})
	require.Error(t, err)

	out.Reset()
	_, err = w.compare("run_cand", "run_base")
	var gateErr *compare.GateError
	require.True(t, errors.As(err, &gateErr), "unexpected error: %v", err)
	require.Contains(t, out.String(), "Gating Failed")
	require.Contains(t, gateErr.Error(), "correctness_failures")
}

func TestParseFaults(t *testing.T) {
	faults, err := parseFaults([]string{"1=server_error", "abc=slow"})
	require.NoError(t, err)
	require.Equal(t, map[string]stubservice.Fault{
		"1":   stubservice.FaultServerError,
		"abc": stubservice.FaultSlow,
	}, faults)

	for _, bad := range []string{"1", "=slow", "1=explode"} {
		_, err := parseFaults([]string{bad})
		require.Error(t, err, bad)
	}
}

func TestPrintEntries(t *testing.T) {
	p95 := 12.5
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []artifacts.Entry{
		{
			Run: model.RunMetadata{RunID: "run_new", ScenarioID: "similar_books_smoke", ScenarioVersion: "1.0", DatasetID: "local_dev", Seed: 42, GitSHA: "0123456789abcdef", CreatedAt: created},
			Summary: &model.RunSummary{
				Counts:  model.EvaluationCounts{TotalRequests: 10, FailedRequests: 2},
				Latency: model.LatencyMetrics{P95MS: &p95},
			},
			FullPath: "artifacts/eval/run_new",
		},
		{
			Run:      model.RunMetadata{RunID: "run_old", ScenarioID: "other", CreatedAt: created.Add(-time.Hour)},
			FullPath: "artifacts/eval/run_old",
		},
	}

	var out bytes.Buffer
	printEntries(&out, entries, "", 0)
	s := out.String()
	require.Contains(t, s, "=== Runs (2 total) ===")
	require.Contains(t, s, "✗")
	require.Contains(t, s, "[0]  run_new")
	require.Contains(t, s, "[-1]  run_old")
	require.Contains(t, s, "Commit: 01234567")
	require.Contains(t, s, "Requests: 10  Failed: 2  p95: 12.5 ms")

	out.Reset()
	printEntries(&out, entries, "other", 0)
	require.Contains(t, out.String(), "run_old")
	require.NotContains(t, out.String(), "run_new")

	out.Reset()
	printEntries(&out, entries, "missing", 0)
	require.Equal(t, "No runs found for scenario: missing\n", out.String())
}
