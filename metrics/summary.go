package metrics

// This file contains summary construction from loadgen output.

import (
	"strconv"

	"github.com/valery-judah/semantic-shelf/model"
)

// BuildSummary turns the steady-state loadgen results and the failure list
// into the counts and latency of a RunSummary. Warmup failures are
// ignored, matching the steady-state scope of results.
func BuildSummary(runID string, results model.LoadgenResults, failures []model.ValidationFailure) model.RunSummary {
	byType := make(map[string]int)
	for _, f := range failures {
		if f.Phase != model.PhaseSteadyState {
			continue
		}
		byType[string(f.FailureType)]++
	}

	statusDist := make(map[string]int, len(results.StatusCodeDistribution))
	for k, v := range results.StatusCodeDistribution {
		statusDist[k] = v
	}

	return model.RunSummary{
		RunID:                runID,
		SummarySchemaVersion: model.SummarySchemaVersion,
		Counts: model.EvaluationCounts{
			TotalRequests:          results.TotalRequests,
			SuccessfulRequests:     results.PassedRequests,
			FailedRequests:         results.FailedRequests,
			ErrorRate:              errorRate(results.FailedRequests, results.TotalRequests),
			Timeouts:               byType[string(model.FailureTimeout)],
			CorrectnessFailures:    results.FailedRequests,
			FailuresByType:         byType,
			StatusCodeDistribution: statusDist,
		},
		Latency: model.LatencyMetrics{
			P50MS: results.LatencyMS.P50,
			P95MS: results.LatencyMS.P95,
			P99MS: results.LatencyMS.P99,
		},
		Slices: []model.SliceMetrics{},
	}
}

func errorRate(failed, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(failed) / float64(total)
}

// StatusKey is the histogram key of a status code; transport failures
// have no status and are not counted.
func StatusKey(code *int) (string, bool) {
	if code == nil {
		return "", false
	}
	return strconv.Itoa(*code), true
}

// Accumulator folds request records into counts and latencies.
type Accumulator struct {
	total, passed, failed int
	statusDist            map[string]int
	byType                map[string]int
	latencies             []float64
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		statusDist: make(map[string]int),
		byType:     make(map[string]int),
	}
}

// Add folds one record.
func (a *Accumulator) Add(rec model.RequestRecord) {
	a.total++
	if rec.Passed {
		a.passed++
	} else {
		a.failed++
		if kind := rec.Failure(); kind != "" {
			a.byType[string(kind)]++
		}
	}
	if key, ok := StatusKey(rec.StatusCode); ok {
		a.statusDist[key]++
	}
	a.latencies = append(a.latencies, rec.LatencyMS)
}

// Total is the number of folded records.
func (a *Accumulator) Total() int {
	return a.total
}

// Latencies returns the folded latencies in arrival order.
func (a *Accumulator) Latencies() []float64 {
	return a.latencies
}

// LoadgenResults renders the accumulator as loadgen results.
func (a *Accumulator) LoadgenResults() model.LoadgenResults {
	return model.LoadgenResults{
		SchemaVersion:          model.LoadgenSchemaVersion,
		TotalRequests:          a.total,
		PassedRequests:         a.passed,
		FailedRequests:         a.failed,
		StatusCodeDistribution: a.statusDist,
		LatencyMS:              LoadgenPercentiles(a.latencies),
	}
}

// Counts renders the accumulator as evaluation counts.
func (a *Accumulator) Counts() model.EvaluationCounts {
	return model.EvaluationCounts{
		TotalRequests:          a.total,
		SuccessfulRequests:     a.passed,
		FailedRequests:         a.failed,
		ErrorRate:              errorRate(a.failed, a.total),
		Timeouts:               a.byType[string(model.FailureTimeout)],
		CorrectnessFailures:    a.failed,
		FailuresByType:         a.byType,
		StatusCodeDistribution: a.statusDist,
	}
}
