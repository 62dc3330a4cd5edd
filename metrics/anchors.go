package metrics

// This file contains per-anchor rankings used for triage.

import (
	"sort"

	"github.com/valery-judah/semantic-shelf/artifacts"
	"github.com/valery-judah/semantic-shelf/model"
)

// AnchorCount is a failure count of one anchor.
type AnchorCount struct {
	AnchorID string
	Count    int
}

// AnchorLatency is the max observed latency of one anchor.
type AnchorLatency struct {
	AnchorID  string
	LatencyMS float64
}

// TopFailingAnchors ranks anchors by (-count, anchor_id) and returns at
// most n of them.
func TopFailingAnchors(failures []model.ValidationFailure, n int) []AnchorCount {
	counts := make(map[string]int)
	for _, f := range failures {
		counts[f.AnchorID]++
	}
	ranked := make([]AnchorCount, 0, len(counts))
	for id, c := range counts {
		ranked = append(ranked, AnchorCount{AnchorID: id, Count: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].AnchorID < ranked[j].AnchorID
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// LatencyTracker keeps the max latency per anchor while records stream by.
type LatencyTracker struct {
	max map[string]float64
}

// NewLatencyTracker returns an empty tracker.
func NewLatencyTracker() *LatencyTracker {
	return &LatencyTracker{max: make(map[string]float64)}
}

// Observe folds one record.
func (t *LatencyTracker) Observe(rec model.RequestRecord) {
	if cur, ok := t.max[rec.AnchorID]; !ok || rec.LatencyMS > cur {
		t.max[rec.AnchorID] = rec.LatencyMS
	}
}

// Top ranks anchors by (-latency, anchor_id) and returns at most n.
func (t *LatencyTracker) Top(n int) []AnchorLatency {
	ranked := make([]AnchorLatency, 0, len(t.max))
	for id, l := range t.max {
		ranked = append(ranked, AnchorLatency{AnchorID: id, LatencyMS: l})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].LatencyMS != ranked[j].LatencyMS {
			return ranked[i].LatencyMS > ranked[j].LatencyMS
		}
		return ranked[i].AnchorID < ranked[j].AnchorID
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// FindWorstLatencyAnchors streams a requests file and ranks steady-state
// anchors by their max latency.
func FindWorstLatencyAnchors(requestsPath string, n int) ([]AnchorLatency, error) {
	tracker := NewLatencyTracker()
	err := artifacts.ScanRequests(requestsPath, func(_ int, rec model.RequestRecord) error {
		if rec.Phase == model.PhaseSteadyState {
			tracker.Observe(rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tracker.Top(n), nil
}
