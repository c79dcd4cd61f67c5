package domain

import "time"

// TimeWindow bounds the records entering an aggregate.
type TimeWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// HistogramBucket is one [Start,End) bucket of a value histogram.
// The final bucket of a histogram includes its End bound.
type HistogramBucket struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Count int     `json:"count"`
}

// Snapshot is the computed numeric summary for one subscription at one
// point in time. It is embedded into run records so later runs can be
// diffed without recomputation.
//
// Invariants: the percentile band bounds are members of the sorted trimmed
// sample, and histogram bucket counts sum to SampleCount.
type Snapshot struct {
	SampleCount int      `json:"sample_count"`
	Mean        float64  `json:"mean"`
	Median      float64  `json:"median"`
	BandLower   float64  `json:"band_lower"`
	BandUpper   float64  `json:"band_upper"`
	Min         *float64 `json:"min"`
	Max         *float64 `json:"max"`

	Histogram []HistogramBucket `json:"histogram"`
	Window    TimeWindow        `json:"window"`
}

// IsEmpty reports whether the snapshot was computed from an empty sample.
// An empty snapshot is a legitimate, notifiable-or-suppressible state,
// not an error.
func (s *Snapshot) IsEmpty() bool {
	return s.SampleCount == 0
}
