package metrics

// This file contains paired baseline/candidate analysis.

import (
	"github.com/valery-judah/semantic-shelf/model"
)

type pair struct {
	anchorID  string
	baseline  *model.RequestRecord
	candidate *model.RequestRecord
}

// PairTracker groups steady-state paired records by paired key and counts
// failures per arm.
type PairTracker struct {
	order             []string
	pairs             map[string]*pair
	baselineFailures  int
	candidateFailures int
	paired            bool
}

// NewPairTracker returns an empty tracker.
func NewPairTracker() *PairTracker {
	return &PairTracker{pairs: make(map[string]*pair)}
}

// Observe folds one record. Records without an arm or outside steady
// state are ignored.
func (t *PairTracker) Observe(rec model.RequestRecord) {
	if rec.Phase != model.PhaseSteadyState {
		return
	}
	if rec.Arm != model.ArmBaseline && rec.Arm != model.ArmCandidate {
		return
	}
	t.paired = true
	if !rec.Passed {
		if rec.Arm == model.ArmBaseline {
			t.baselineFailures++
		} else {
			t.candidateFailures++
		}
	}
	if rec.PairedKey == "" {
		return
	}

	p, ok := t.pairs[rec.PairedKey]
	if !ok {
		p = &pair{anchorID: rec.AnchorID}
		t.pairs[rec.PairedKey] = p
		t.order = append(t.order, rec.PairedKey)
	}
	r := rec
	// The last record of an arm wins.
	if rec.Arm == model.ArmBaseline {
		p.baseline = &r
	} else {
		p.candidate = &r
	}
}

// Paired reports whether any steady-state record carried an arm.
func (t *PairTracker) Paired() bool {
	return t.paired
}

// Regressions returns max(candidate_failures - baseline_failures, 0) and
// false for runs that are not paired.
func (t *PairTracker) Regressions() (int, bool) {
	if !t.paired {
		return 0, false
	}
	diff := t.candidateFailures - t.baselineFailures
	if diff < 0 {
		diff = 0
	}
	return diff, true
}

// Deltas returns one delta per complete pair, in first-seen key order.
// Incomplete pairs are dropped.
func (t *PairTracker) Deltas() []model.PairedDelta {
	deltas := make([]model.PairedDelta, 0, len(t.order))
	for _, key := range t.order {
		p := t.pairs[key]
		if p.baseline == nil || p.candidate == nil {
			continue
		}
		deltas = append(deltas, model.PairedDelta{
			AnchorID:         p.anchorID,
			PairedKey:        key,
			BaselineLatency:  p.baseline.LatencyMS,
			CandidateLatency: p.candidate.LatencyMS,
			LatencyDeltaMS:   p.candidate.LatencyMS - p.baseline.LatencyMS,
			BaselinePassed:   p.baseline.Passed,
			CandidatePassed:  p.candidate.Passed,
			PassedDelta:      boolInt(p.candidate.Passed) - boolInt(p.baseline.Passed),
		})
	}
	return deltas
}

// PairedDeltas builds the deltas artifact of a paired run.
func (t *PairTracker) PairedDeltas(runID string) model.PairedDeltas {
	deltas := t.Deltas()
	stats := model.PairedStats{Count: len(deltas)}
	if len(deltas) > 0 {
		var sum float64
		for _, d := range deltas {
			sum += d.LatencyDeltaMS
		}
		stats.AvgLatencyDeltaMS = sum / float64(len(deltas))
	}
	stats.Regressions, _ = t.Regressions()
	return model.PairedDeltas{
		PairedDeltasSchemaVersion: model.PairedDeltasSchemaVersion,
		RunID:                     runID,
		PairedDeltas:              deltas,
		Stats:                     stats,
	}
}

// ComputePairedDeltas is the slice form of PairTracker.Deltas.
func ComputePairedDeltas(records []model.RequestRecord) []model.PairedDelta {
	t := NewPairTracker()
	for _, r := range records {
		t.Observe(r)
	}
	return t.Deltas()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
