package stats

import (
	"errors"
	"sort"
)

// ErrInvalidPercentile is returned when the requested band is not within
// 0 <= lower < upper <= 100.
var ErrInvalidPercentile = errors.New("stats: invalid percentile bounds")

// PercentileSlice returns the ordered sub-sample between the lowerPct and
// upperPct percentiles. The sample does not need to be pre-sorted; the
// input slice is not modified.
//
// Index arithmetic is integral: the first floor(n*lowerPct/100) elements
// are dropped and floor(n*(upperPct-lowerPct)/100) elements are kept.
// An empty sample yields an empty result, not an error.
//
// This is the outlier-trimming step applied before computing mean and
// median for a report.
func PercentileSlice(lowerPct, upperPct int, sample []float64) ([]float64, error) {
	if lowerPct < 0 || upperPct > 100 || lowerPct >= upperPct {
		return nil, ErrInvalidPercentile
	}

	n := len(sample)
	if n == 0 {
		return []float64{}, nil
	}

	sorted := make([]float64, n)
	copy(sorted, sample)
	sort.Float64s(sorted)

	skip := n * lowerPct / 100
	take := n * (upperPct - lowerPct) / 100
	if skip+take > n {
		take = n - skip
	}

	return sorted[skip : skip+take], nil
}

// Mean returns the arithmetic mean of the sample, 0 for an empty sample.
func Mean(sample []float64) float64 {
	if len(sample) == 0 {
		return 0
	}
	var sum float64
	for _, v := range sample {
		sum += v
	}
	return sum / float64(len(sample))
}

// Median returns the median of an ascending-sorted sample, 0 when empty.
func Median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
