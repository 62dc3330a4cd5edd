package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/valery-judah/semantic-shelf/metrics"
	"github.com/valery-judah/semantic-shelf/model"
	"github.com/valery-judah/semantic-shelf/scenario"
)

func ptr(v float64) *float64 { return &v }

func baseInput() Input {
	cfg := scenario.Default("similar_books_smoke")
	n := 20
	cfg.Traffic.RequestCount = &n
	return Input{
		Run: model.RunMetadata{
			RunID:       "run_abc",
			CreatedAt:   time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
			ScenarioID:  "similar_books_smoke",
			DatasetID:   "local_dev",
			Seed:        42,
			AnchorCount: 3,
		},
		Scenario: &cfg,
		Anchors:  model.AnchorSelection{Anchors: []model.Anchor{{ID: "1"}, {ID: "2"}, {ID: "3"}}},
		Summary: model.RunSummary{
			Counts: model.EvaluationCounts{TotalRequests: 20, SuccessfulRequests: 20},
			Latency: model.LatencyMetrics{
				P50MS: ptr(10.04),
				P95MS: ptr(20.5),
			},
		},
		WorstLatency: []metrics.AnchorLatency{{AnchorID: "2", LatencyMS: 31.27}},
		Gate:         Gate{Passed: true, Reason: "no failed requests"},
	}
}

func TestRenderPassingRun(t *testing.T) {
	out := Render(baseInput())

	require.True(t, strings.HasPrefix(out, "# Evaluation Report: similar_books_smoke\n"))
	require.Contains(t, out, "## 1. Run Metadata Summary\n")
	require.Contains(t, out, "- **Date:** 2026-04-01T12:00:00Z\n")
	require.Contains(t, out, "- **Traffic Mode:** `request_count=20`\n")
	require.Contains(t, out, "## 3. Correctness\n✅ **PASS**: No validation failures.\n")
	require.Contains(t, out, "| P50 | 10.0 ms |\n")
	require.Contains(t, out, "| P99 | N/A |\n")
	require.Contains(t, out, "| `2` | 31.3 | N/A |\n")
	require.Contains(t, out, "## 5. Quality Metrics (Telemetry)\n- **Status:** `no_telemetry`\n")
	require.Contains(t, out, "## 6. Gate\n✅ **PASS**: no failed requests\n")
	require.Contains(t, out, "## 8. How to reproduce\n- `shelfeval evaluate --run-id run_abc`\n")
	require.NotContains(t, out, "Slice Metrics")
	require.NotContains(t, out, "Paired Analysis")
	require.NotContains(t, out, "sample_requests")
}

func TestRenderFailuresAndSamples(t *testing.T) {
	in := baseInput()
	in.Summary.Counts.FailedRequests = 3
	in.Summary.Counts.FailuresByType = map[string]int{"timeout": 1, "duplicate_ids": 1, "missing_key": 1}
	in.TopFailures = []metrics.AnchorCount{{AnchorID: "2", Count: 2}, {AnchorID: "3", Count: 1}}
	in.DebugFiles = []string{"raw/sample_requests/2/req-1.json", "raw/sample_requests/2/req-2.json"}
	in.Gate = Gate{Reason: "3 failed requests"}

	out := Render(in)
	require.Contains(t, out, "❌ **FAIL**: 3 failures found.\n")
	require.Contains(t, out, "### Failure Breakdown\n- `duplicate_ids`: 1\n- `missing_key`: 1\n- `timeout`: 1\n")
	require.Contains(t, out, "| `2` | 2 | `raw/sample_requests/2/req-1.json` |\n")
	require.Contains(t, out, "| `3` | 1 | N/A |\n")
	require.Contains(t, out, "❌ **FAIL**: 3 failed requests\n")
	require.Contains(t, out, "- `raw/sample_requests/...`\n")
}

func TestRenderSampleLinks(t *testing.T) {
	in := baseInput()
	in.Summary.Counts.FailedRequests = 4
	in.TopFailures = []metrics.AnchorCount{
		{AnchorID: "a/b", Count: 2},
		{AnchorID: "a_b", Count: 1},
		{AnchorID: "sample_requests", Count: 1},
	}
	in.DebugFiles = []string{
		"raw/sample_requests/a%2Fb/req-1.json",
		"raw/sample_requests/a_b/req-2.json",
	}
	in.Gate = Gate{Reason: "4 failed requests"}

	out := Render(in)
	require.Contains(t, out, "| `a/b` | 2 | `raw/sample_requests/a%2Fb/req-1.json` |\n")
	require.Contains(t, out, "| `a_b` | 1 | `raw/sample_requests/a_b/req-2.json` |\n")
	require.Contains(t, out, "| `sample_requests` | 1 | N/A |\n")
}

func TestRenderOptionalSections(t *testing.T) {
	in := baseInput()
	in.Summary.Slices = []model.SliceMetrics{{
		SliceID:    "fiction",
		SampleSize: 5,
		Counts:     model.EvaluationCounts{FailedRequests: 1},
		Latency:    model.LatencyMetrics{P50MS: ptr(1)},
	}}
	in.Deltas = &model.PairedDeltas{
		PairedDeltas: []model.PairedDelta{
			{AnchorID: "1", LatencyDeltaMS: 5, BaselineLatency: 10, CandidateLatency: 15},
			{AnchorID: "2", LatencyDeltaMS: -2, BaselineLatency: 12, CandidateLatency: 10},
		},
		Stats: model.PairedStats{Count: 2, AvgLatencyDeltaMS: 1.5},
	}
	ctr := 0.5
	in.Summary.QualityMetricsStatus = model.QualityFromExtract
	in.Summary.QualityMetrics = &model.QualityMetrics{
		K: 10,
		ByTrafficType: map[string]model.MetricBucket{
			model.BucketSynthetic: {Impressions: 2, Clicks: 1, CTRAtK: &ctr, CTRByPosition: map[int]float64{1: 0.5, 0: 0}},
			model.BucketCombined:  {Impressions: 2, Clicks: 1, CTRAtK: &ctr, CTRByPosition: map[int]float64{1: 0.5, 0: 0}},
		},
	}
	in.Summary.QualityMetricsNotes = []string{"Data Sufficiency Warning: synthetic Impressions (2) < 100"}

	out := Render(in)
	require.Contains(t, out, "## 5. Slice Metrics\n")
	require.Contains(t, out, "| `fiction` | 5 | ❌ (1) | 1.0 ms | N/A | N/A |\n")
	require.Contains(t, out, "## 6. Paired Analysis\n")
	require.Contains(t, out, "- **Min Delta:** -2.00 ms\n- **Max Delta:** 5.00 ms\n")
	require.Contains(t, out, "| `1` | +5.0 | 10.0 | 15.0 |\n")
	require.NotContains(t, out, "| `2` | +")
	require.Contains(t, out, "## 7. Quality Metrics (Telemetry)\n- **Status:** `computed_from_extract`\n")
	require.Contains(t, out, "### Traffic Type: Synthetic\n")
	require.NotContains(t, out, "### Traffic Type: Real\n")
	require.Contains(t, out, "#### CTR by Position\n| Position | CTR |\n|----------|-----|\n| 0 | 0.0000 |\n| 1 | 0.5000 |\n")
	require.Contains(t, out, "- Data Sufficiency Warning: synthetic Impressions (2) < 100\n")
	require.Contains(t, out, "- `raw/telemetry_extract.jsonl`\n")
	require.Less(t, strings.Index(out, "Traffic Type: Synthetic"), strings.Index(out, "Traffic Type: Combined"))
}

func TestRenderIsDeterministic(t *testing.T) {
	in := baseInput()
	in.Summary.Counts.FailedRequests = 4
	in.Summary.Counts.FailuresByType = map[string]int{"a": 2, "b": 2, "c": 1, "d": 1}
	first := Render(in)
	for range 10 {
		require.Equal(t, first, Render(in))
	}
}

func TestReproduceQuotesArguments(t *testing.T) {
	in := baseInput()
	in.Run.RunID = "run with space"
	out := Render(in)
	require.Contains(t, out, "shelfeval evaluate --run-id 'run with space'")
}
