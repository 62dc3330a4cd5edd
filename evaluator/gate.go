package evaluator

import (
	"fmt"

	"github.com/valery-judah/semantic-shelf/metrics"
	"github.com/valery-judah/semantic-shelf/model"
	"github.com/valery-judah/semantic-shelf/report"
)

// GateError is returned when a run fails its gate. All artifacts have
// been written when it is returned.
type GateError struct {
	RunID  string
	Reason string
}

func (e *GateError) Error() string {
	return fmt.Sprintf("run %s failed the gate: %s", e.RunID, e.Reason)
}

// Decide applies the single-run gate. Paired runs fail only on
// correctness regressions of the candidate arm; other runs fail on any
// steady-state failure.
func Decide(summary model.RunSummary, pairs *metrics.PairTracker) report.Gate {
	if pairs != nil {
		if regressions, paired := pairs.Regressions(); paired {
			if regressions > 0 {
				return report.Gate{Reason: fmt.Sprintf("%d candidate correctness regressions", regressions)}
			}
			return report.Gate{Passed: true, Reason: "no candidate correctness regressions"}
		}
	}
	if failed := summary.Counts.FailedRequests; failed > 0 {
		return report.Gate{Reason: fmt.Sprintf("%d failed requests", failed)}
	}
	return report.Gate{Passed: true, Reason: "no failed requests"}
}
