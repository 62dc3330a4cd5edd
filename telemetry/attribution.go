package telemetry

// This file contains click attribution over telemetry events.

import (
	"fmt"
	"sort"

	"github.com/valery-judah/semantic-shelf/model"
)

// DefaultK is the default CTR cutoff.
const DefaultK = 10

// BucketOrder is the canonical order of traffic buckets.
var BucketOrder = []string{model.BucketSynthetic, model.BucketReal, model.BucketCombined}

type dedupKey struct {
	kind model.EventKind
	key  string
}

// Dedup drops events whose (event kind, idempotency key) was already seen,
// keeping the first occurrence.
func Dedup(events []model.TelemetryEvent) []model.TelemetryEvent {
	seen := make(map[dedupKey]bool, len(events))
	out := make([]model.TelemetryEvent, 0, len(events))
	for _, ev := range events {
		k := dedupKey{kind: ev.Kind, key: ev.Payload.IdempotencyKey}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, ev)
	}
	return out
}

// ComputeQualityMetrics deduplicates events and computes click-through
// metrics per traffic bucket. Buckets without impression or click events
// are omitted.
func ComputeQualityMetrics(events []model.TelemetryEvent, k int) model.QualityMetrics {
	if k <= 0 {
		k = DefaultK
	}
	buckets := make(map[string][]model.TelemetryEvent)
	for _, ev := range Dedup(events) {
		switch ev.Kind {
		case model.EventImpression, model.EventClick:
		default:
			continue
		}
		if ev.IsSynthetic {
			buckets[model.BucketSynthetic] = append(buckets[model.BucketSynthetic], ev)
		} else {
			buckets[model.BucketReal] = append(buckets[model.BucketReal], ev)
		}
		buckets[model.BucketCombined] = append(buckets[model.BucketCombined], ev)
	}

	qm := model.QualityMetrics{K: k, ByTrafficType: make(map[string]model.MetricBucket)}
	for name, evs := range buckets {
		qm.ByTrafficType[name] = computeBucket(evs, k)
	}
	return qm
}

func computeBucket(events []model.TelemetryEvent, k int) model.MetricBucket {
	var impressions, clicks []model.TelemetryPayload
	for _, ev := range events {
		switch ev.Kind {
		case model.EventImpression:
			impressions = append(impressions, ev.Payload)
		case model.EventClick:
			clicks = append(clicks, ev.Payload)
		}
	}

	byRequest := make(map[string][]model.TelemetryPayload)
	shownAt := make(map[int]int)
	impressionsLtK := 0
	for _, imp := range impressions {
		byRequest[imp.RequestID] = append(byRequest[imp.RequestID], imp)
		ltK := false
		seen := make(map[int]bool, len(imp.Positions))
		for _, p := range imp.Positions {
			if p < k {
				ltK = true
			}
			if !seen[p] {
				seen[p] = true
				shownAt[p]++
			}
		}
		if ltK {
			impressionsLtK++
		}
	}

	matchedAt := make(map[int]int)
	matched, matchedLtK := 0, 0
	for _, c := range clicks {
		if c.Position == nil || !clickMatches(c, byRequest[c.RequestID]) {
			continue
		}
		matched++
		matchedAt[*c.Position]++
		if *c.Position < k {
			matchedLtK++
		}
	}

	bucket := model.MetricBucket{
		Impressions:   len(impressions),
		Clicks:        len(clicks),
		CTRByPosition: make(map[int]float64, len(shownAt)),
		Coverage: map[string]int{
			model.CoverageImpressionsLtK:     impressionsLtK,
			model.CoverageMatchedClicks:      matched,
			model.CoverageMatchedClicksAtLtK: matchedLtK,
		},
	}
	if impressionsLtK > 0 {
		ctr := float64(matchedLtK) / float64(impressionsLtK)
		bucket.CTRAtK = &ctr
	}
	for p, shown := range shownAt {
		bucket.CTRByPosition[p] = float64(matchedAt[p]) / float64(shown)
	}
	return bucket
}

// clickMatches reports whether an impression of the same request showed
// the clicked id at the clicked position.
func clickMatches(click model.TelemetryPayload, impressions []model.TelemetryPayload) bool {
	for _, imp := range impressions {
		for i, p := range imp.Positions {
			if p != *click.Position || i >= len(imp.ShownIDs) {
				continue
			}
			if imp.ShownIDs[i] == click.ClickedID {
				return true
			}
		}
	}
	return false
}

// SufficiencyNotes warns about buckets with too few impressions for
// stable CTR estimates.
func SufficiencyNotes(qm model.QualityMetrics) []string {
	var notes []string
	for _, name := range BucketOrder {
		b, ok := qm.ByTrafficType[name]
		if !ok || b.Impressions >= model.DataSufficiencyImpressionsFloor {
			continue
		}
		notes = append(notes, fmt.Sprintf("Data Sufficiency Warning: %s Impressions (%d) < %d",
			name, b.Impressions, model.DataSufficiencyImpressionsFloor))
	}
	return notes
}

// SortedPositions returns the positions of a bucket in ascending order.
func SortedPositions(b model.MetricBucket) []int {
	positions := make([]int, 0, len(b.CTRByPosition))
	for p := range b.CTRByPosition {
		positions = append(positions, p)
	}
	sort.Ints(positions)
	return positions
}
