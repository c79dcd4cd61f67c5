// Package stats contains the pure numeric kernels of the aggregation
// engine: range bucketing, percentile trimming and quarter calendar math.
// Everything here is deterministic and stateless.
package stats

import (
	"errors"
	"math"
)

// ErrInvalidRange is returned for a non-positive step or an inverted range.
var ErrInvalidRange = errors.New("stats: invalid range arguments")

// Bucket is a half-open [Start,End) value range.
type Bucket struct {
	Start float64
	End   float64
}

// SplitRange partitions [min,max] into contiguous fixed-width buckets.
// The number of buckets is ceil((max-min)/step); the last bucket's End is
// clamped to exactly max even when the range is not an exact multiple of
// step. min == max yields no buckets.
func SplitRange(min, max, step float64) ([]Bucket, error) {
	if step <= 0 || max < min {
		return nil, ErrInvalidRange
	}

	count := int(math.Ceil((max - min) / step))
	buckets := make([]Bucket, 0, count)

	for i := 0; i < count; i++ {
		b := Bucket{
			Start: min + float64(i)*step,
			End:   min + float64(i+1)*step,
		}
		if i == count-1 {
			b.End = max
		}
		buckets = append(buckets, b)
	}

	return buckets, nil
}
