package metrics

// This file contains slice membership and per-slice metrics.

import (
	"fmt"
	"sort"

	"github.com/valery-judah/semantic-shelf/model"
)

// Matches reports whether anchor satisfies rule.
func Matches(rule model.MembershipRule, anchor model.Anchor) bool {
	switch rule.Type {
	case model.RuleFieldEquals:
		v, ok := anchor.Metadata[rule.Field]
		return ok && equalValues(v, rule.Value)
	case model.RuleFieldIn:
		v, ok := anchor.Metadata[rule.Field]
		if !ok {
			return false
		}
		for _, candidate := range rule.Values {
			if equalValues(v, candidate) {
				return true
			}
		}
		return false
	case model.RuleNumericRange:
		v, ok := toFloat(anchor.Metadata[rule.Field])
		if !ok {
			return false
		}
		if rule.MinValue != nil && v < *rule.MinValue {
			return false
		}
		if rule.MaxValue != nil && v > *rule.MaxValue {
			return false
		}
		return true
	case model.RuleExplicitAnchorIDs:
		for _, id := range rule.AnchorIDs {
			if id == anchor.ID {
				return true
			}
		}
		return false
	}
	return false
}

// equalValues compares metadata values, treating all numbers alike since
// JSON and YAML decode them to different Go types.
func equalValues(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && fa == fb
	}
	return fmt.Sprint(a) == fmt.Sprint(b) && sameKind(a, b)
}

func sameKind(a, b any) bool {
	_, aBool := a.(bool)
	_, bBool := b.(bool)
	return aBool == bBool
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint:
		return float64(n), true
	}
	return 0, false
}

// SliceAccumulator folds request records into per-slice metrics.
type SliceAccumulator struct {
	defs       []model.SliceDefinition
	membership map[string][]int
	acc        []*Accumulator
}

// NewSliceAccumulator resolves the membership of every selected anchor up
// front.
func NewSliceAccumulator(cfg model.SliceConfig, anchors []model.Anchor) *SliceAccumulator {
	s := &SliceAccumulator{
		defs:       cfg.Slices,
		membership: make(map[string][]int),
		acc:        make([]*Accumulator, len(cfg.Slices)),
	}
	for i := range s.acc {
		s.acc[i] = NewAccumulator()
	}
	for _, a := range anchors {
		if _, done := s.membership[a.ID]; done {
			continue
		}
		var member []int
		for i, def := range cfg.Slices {
			if Matches(def.MembershipRule, a) {
				member = append(member, i)
			}
		}
		s.membership[a.ID] = member
	}
	return s
}

// Observe folds one steady-state record into every slice of its anchor.
func (s *SliceAccumulator) Observe(rec model.RequestRecord) {
	if rec.Phase != model.PhaseSteadyState {
		return
	}
	for _, i := range s.membership[rec.AnchorID] {
		s.acc[i].Add(rec)
	}
}

// Metrics returns slices meeting their minimum sample size, ordered by
// (priority, slice_id).
func (s *SliceAccumulator) Metrics() []model.SliceMetrics {
	out := []model.SliceMetrics{}
	order := make([]int, len(s.defs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := s.defs[order[i]], s.defs[order[j]]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.SliceID < b.SliceID
	})
	for _, i := range order {
		acc := s.acc[i]
		if acc.Total() == 0 || acc.Total() < s.defs[i].MinSampleSize {
			continue
		}
		out = append(out, model.SliceMetrics{
			SliceID:    s.defs[i].SliceID,
			SampleSize: acc.Total(),
			Counts:     acc.Counts(),
			Latency:    LatencyPercentiles(acc.Latencies()),
		})
	}
	return out
}
