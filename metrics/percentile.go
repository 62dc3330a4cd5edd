package metrics

import (
	"math"
	"sort"

	"github.com/valery-judah/semantic-shelf/model"
)

// Percentile returns the nearest-rank percentile of sorted values. The
// rank is index = floor((p/100) * (n-1)), so P50 of [10 20 30 40] is 20.
// The second result is false for an empty input.
func Percentile(sorted []float64, p float64) (float64, bool) {
	n := len(sorted)
	if n == 0 {
		return 0, false
	}
	// The epsilon keeps exact products like 0.95*20 from truncating down.
	idx := int(math.Floor(p/100*float64(n-1) + 1e-9))
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx], true
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func percentilePtr(sorted []float64, p float64) *float64 {
	v, ok := Percentile(sorted, p)
	if !ok {
		return nil
	}
	v = Round2(v)
	return &v
}

// LoadgenPercentiles computes P50/P95/P99 of latencies, rounded to two
// decimals. latencies is not modified.
func LoadgenPercentiles(latencies []float64) model.LoadgenLatency {
	sorted := sortedCopy(latencies)
	return model.LoadgenLatency{
		P50: percentilePtr(sorted, 50),
		P95: percentilePtr(sorted, 95),
		P99: percentilePtr(sorted, 99),
	}
}

// LatencyPercentiles is LoadgenPercentiles in summary form.
func LatencyPercentiles(latencies []float64) model.LatencyMetrics {
	l := LoadgenPercentiles(latencies)
	return model.LatencyMetrics{P50MS: l.P50, P95MS: l.P95, P99MS: l.P99}
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}
