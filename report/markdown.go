// Package report renders the markdown report of an evaluated run. The
// output depends only on its input so re-rendering a run is byte-stable.
package report

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"

	"github.com/valery-judah/semantic-shelf/artifacts"
	"github.com/valery-judah/semantic-shelf/metrics"
	"github.com/valery-judah/semantic-shelf/model"
	"github.com/valery-judah/semantic-shelf/scenario"
	"github.com/valery-judah/semantic-shelf/telemetry"
)

// Binary is the command name used in reproduce instructions.
const Binary = "shelfeval"

// topRegressions bounds the paired regression table.
const topRegressions = 5

// Gate is the single-run gate outcome shown in the report.
type Gate struct {
	Passed bool
	Reason string
}

// Input is everything the report shows.
type Input struct {
	Run      model.RunMetadata
	Scenario *scenario.Config
	Anchors  model.AnchorSelection
	Summary  model.RunSummary
	// TopFailures and WorstLatency are already ranked.
	TopFailures  []metrics.AnchorCount
	WorstLatency []metrics.AnchorLatency
	// DebugFiles are run-relative paths of extracted request samples.
	DebugFiles []string
	Deltas     *model.PairedDeltas
	Gate       Gate
}

// writer numbers top-level sections in the order they are emitted.
type writer struct {
	b       strings.Builder
	section int
}

func (w *writer) line(format string, args ...any) {
	if len(args) == 0 {
		w.b.WriteString(format)
	} else {
		fmt.Fprintf(&w.b, format, args...)
	}
	w.b.WriteByte('\n')
}

func (w *writer) blank() {
	w.b.WriteByte('\n')
}

func (w *writer) heading(title string) {
	w.section++
	w.line("## %d. %s", w.section, title)
}

// Render returns the markdown report.
func Render(in Input) string {
	w := &writer{}
	w.line("# Evaluation Report: %s", in.Run.ScenarioID)
	w.blank()

	renderMetadata(w, in)
	renderScenario(w, in)
	renderCorrectness(w, in)
	renderPerformance(w, in)
	if len(in.Summary.Slices) > 0 {
		renderSlices(w, in.Summary.Slices)
	}
	if in.Deltas != nil {
		renderPaired(w, *in.Deltas)
	}
	renderQuality(w, in.Summary)
	renderGate(w, in.Gate)
	renderArtifacts(w, in)
	renderReproduce(w, in.Run)

	return w.b.String()
}

func renderMetadata(w *writer, in Input) {
	w.heading("Run Metadata Summary")
	w.line("- **Run ID:** `%s`", in.Run.RunID)
	w.line("- **Date:** %s", in.Run.CreatedAt.UTC().Format(time.RFC3339))
	w.line("- **Scenario ID:** `%s`", in.Run.ScenarioID)
	if in.Run.ScenarioVersion != "" {
		w.line("- **Scenario Version:** `%s`", in.Run.ScenarioVersion)
	}
	w.line("- **Dataset ID:** `%s`", in.Run.DatasetID)
	w.line("- **Seed:** `%d`", in.Run.Seed)
	if in.Run.GitSHA != "" {
		w.line("- **Git SHA:** `%s`", in.Run.GitSHA)
	}
	w.blank()
}

func renderScenario(w *writer, in Input) {
	w.heading("Scenario Summary")
	w.line("- **Total Anchors:** %d", len(in.Anchors.Anchors))
	w.line("- **Configured Anchor Count:** %d", in.Run.AnchorCount)
	concurrency, mode, paired := "N/A", "N/A", "N/A"
	if in.Scenario != nil {
		concurrency = strconv.Itoa(in.Scenario.Traffic.Concurrency)
		mode = in.Scenario.Mode()
		paired = strconv.FormatBool(in.Scenario.PairedArms)
	}
	w.line("- **Concurrency:** %s", concurrency)
	w.line("- **Traffic Mode:** `%s`", mode)
	w.line("- **Paired Arms:** %s", paired)
	w.blank()
}

func renderCorrectness(w *writer, in Input) {
	counts := in.Summary.Counts
	w.heading("Correctness")
	if counts.FailedRequests == 0 {
		w.line("✅ **PASS**: No validation failures.")
		w.blank()
		return
	}
	w.line("❌ **FAIL**: %d failures found.", counts.FailedRequests)
	w.blank()

	w.line("### Failure Breakdown")
	type kv struct {
		kind  string
		count int
	}
	breakdown := make([]kv, 0, len(counts.FailuresByType))
	for k, v := range counts.FailuresByType {
		breakdown = append(breakdown, kv{k, v})
	}
	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].count != breakdown[j].count {
			return breakdown[i].count > breakdown[j].count
		}
		return breakdown[i].kind < breakdown[j].kind
	})
	for _, e := range breakdown {
		w.line("- `%s`: %d", e.kind, e.count)
	}
	w.blank()

	w.line("### Top Failing Anchors")
	w.line("| Anchor ID | Failure Count | Debug Samples |")
	w.line("|-----------|---------------|---------------|")
	for _, a := range in.TopFailures {
		w.line("| `%s` | %d | %s |", a.AnchorID, a.Count, sampleLink(in.DebugFiles, a.AnchorID))
	}
	w.blank()
}

func renderPerformance(w *writer, in Input) {
	lat := in.Summary.Latency
	w.heading("Performance")
	w.line("| Metric | Value |")
	w.line("|--------|-------|")
	w.line("| P50 | %s |", fmtLatency(lat.P50MS))
	w.line("| P95 | %s |", fmtLatency(lat.P95MS))
	w.line("| P99 | %s |", fmtLatency(lat.P99MS))
	w.line("| Error Rate | %.2f%% |", in.Summary.Counts.ErrorRate*100)
	w.blank()

	w.line("### Worst Latency Anchors (Max Latency)")
	w.line("| Anchor ID | Max Latency (ms) | Debug Samples |")
	w.line("|-----------|------------------|---------------|")
	for _, a := range in.WorstLatency {
		w.line("| `%s` | %.1f | %s |", a.AnchorID, a.LatencyMS, sampleLink(in.DebugFiles, a.AnchorID))
	}
	w.blank()
}

func renderSlices(w *writer, slices []model.SliceMetrics) {
	w.heading("Slice Metrics")
	w.line("| Slice ID | Count | Correctness | P50 | P95 | P99 |")
	w.line("|----------|-------|-------------|-----|-----|-----|")
	for _, s := range slices {
		status := "✅"
		if s.Counts.FailedRequests > 0 {
			status = fmt.Sprintf("❌ (%d)", s.Counts.FailedRequests)
		}
		w.line("| `%s` | %d | %s | %s | %s | %s |", s.SliceID, s.SampleSize, status,
			fmtLatency(s.Latency.P50MS), fmtLatency(s.Latency.P95MS), fmtLatency(s.Latency.P99MS))
	}
	w.blank()
}

func renderPaired(w *writer, d model.PairedDeltas) {
	w.heading("Paired Analysis")
	w.line("- **Paired Count:** %d", d.Stats.Count)
	w.line("- **Avg Latency Delta:** %.2f ms", d.Stats.AvgLatencyDeltaMS)
	w.line("- **Correctness Regressions:** %d", d.Stats.Regressions)
	if len(d.PairedDeltas) == 0 {
		w.blank()
		return
	}

	minDelta, maxDelta := d.PairedDeltas[0].LatencyDeltaMS, d.PairedDeltas[0].LatencyDeltaMS
	var regressions []model.PairedDelta
	for _, pd := range d.PairedDeltas {
		minDelta = min(minDelta, pd.LatencyDeltaMS)
		maxDelta = max(maxDelta, pd.LatencyDeltaMS)
		if pd.LatencyDeltaMS > 0 {
			regressions = append(regressions, pd)
		}
	}
	w.line("- **Min Delta:** %.2f ms", minDelta)
	w.line("- **Max Delta:** %.2f ms", maxDelta)
	w.blank()

	if len(regressions) == 0 {
		return
	}
	sort.SliceStable(regressions, func(i, j int) bool {
		if regressions[i].LatencyDeltaMS != regressions[j].LatencyDeltaMS {
			return regressions[i].LatencyDeltaMS > regressions[j].LatencyDeltaMS
		}
		return regressions[i].AnchorID < regressions[j].AnchorID
	})
	if len(regressions) > topRegressions {
		regressions = regressions[:topRegressions]
	}
	w.line("### Top Latency Regressions (Candidate - Baseline)")
	w.line("| Anchor ID | Delta (ms) | Baseline | Candidate |")
	w.line("|-----------|------------|----------|-----------|")
	for _, r := range regressions {
		w.line("| `%s` | +%.1f | %.1f | %.1f |", r.AnchorID, r.LatencyDeltaMS, r.BaselineLatency, r.CandidateLatency)
	}
	w.blank()
}

func renderQuality(w *writer, s model.RunSummary) {
	w.heading("Quality Metrics (Telemetry)")
	status := s.QualityMetricsStatus
	if status == "" {
		status = model.QualityNoTelemetry
	}
	w.line("- **Status:** `%s`", status)
	qm := s.QualityMetrics
	if qm == nil || len(qm.ByTrafficType) == 0 {
		w.line("- No telemetry events were available for this run.")
		w.blank()
		return
	}
	w.line("- **K:** %d", qm.K)
	w.blank()

	for _, bucket := range telemetry.BucketOrder {
		m, ok := qm.ByTrafficType[bucket]
		if !ok {
			continue
		}
		w.line("### Traffic Type: %s", bucketTitle(bucket))
		w.line("| Metric | Value |")
		w.line("|--------|-------|")
		w.line("| Impressions | %d |", m.Impressions)
		w.line("| Clicks | %d |", m.Clicks)
		w.line("| CTR@%d | %s |", qm.K, fmtRatio(m.CTRAtK))
		w.line("| Matched Clicks | %d |", m.Coverage[model.CoverageMatchedClicks])
		w.blank()

		positions := telemetry.SortedPositions(m)
		if len(positions) > 0 {
			w.line("#### CTR by Position")
			w.line("| Position | CTR |")
			w.line("|----------|-----|")
			for _, p := range positions {
				w.line("| %d | %.4f |", p, m.CTRByPosition[p])
			}
			w.blank()
		}
	}

	if len(s.QualityMetricsNotes) > 0 {
		w.line("### Notes")
		for _, n := range s.QualityMetricsNotes {
			w.line("- %s", n)
		}
		w.blank()
	}
}

func renderGate(w *writer, g Gate) {
	w.heading("Gate")
	if g.Passed {
		w.line("✅ **PASS**: %s", g.Reason)
	} else {
		w.line("❌ **FAIL**: %s", g.Reason)
	}
	w.blank()
}

func renderArtifacts(w *writer, in Input) {
	w.heading("Artifacts")
	w.line("- `run.json`")
	w.line("- `summary/summary.json`")
	if in.Deltas != nil {
		w.line("- `summary/deltas.json`")
	}
	w.line("- `raw/anchors.json`")
	w.line("- `raw/loadgen_results.json`")
	w.line("- `raw/validation_failures.jsonl`")
	w.line("- `raw/requests.jsonl`")
	if in.Summary.QualityMetricsStatus != "" && in.Summary.QualityMetricsStatus != model.QualityNoTelemetry {
		w.line("- `raw/telemetry_extract.jsonl`")
	}
	if len(in.DebugFiles) > 0 {
		w.line("- `raw/sample_requests/...`")
	}
	w.blank()
}

func renderReproduce(w *writer, run model.RunMetadata) {
	w.heading("How to reproduce")
	w.line("- `%s`", shellescape.QuoteCommand([]string{Binary, "evaluate", "--run-id", run.RunID}))
	w.line("- `%s` (if a baseline exists)", shellescape.QuoteCommand([]string{
		Binary, "compare", "--scenario", run.ScenarioID, "--candidate-run-id", run.RunID,
	}))
}

// sampleLink returns the first debug sample of an anchor. Samples live in
// a directory named after the anchor.
func sampleLink(files []string, anchorID string) string {
	dir := artifacts.SampleName(anchorID)
	for _, f := range files {
		if path.Base(path.Dir(f)) == dir {
			return "`" + f + "`"
		}
	}
	return "N/A"
}

func fmtLatency(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f ms", *v)
}

func fmtRatio(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.4f", *v)
}

func bucketTitle(bucket string) string {
	switch bucket {
	case model.BucketSynthetic:
		return "Synthetic"
	case model.BucketReal:
		return "Real"
	case model.BucketCombined:
		return "Combined"
	}
	return bucket
}
