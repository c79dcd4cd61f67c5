package aggregation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/bqworks/paygrid/internal/domain"
	"github.com/bqworks/paygrid/internal/records"
	"github.com/bqworks/paygrid/internal/segments"
	"github.com/bqworks/paygrid/internal/stats"
)

// AssemblerConfig tunes snapshot computation.
type AssemblerConfig struct {
	// BandLowerPct/BandUpperPct trim outliers before mean and median.
	BandLowerPct int
	BandUpperPct int
	// HistogramBuckets is the target bucket count; the actual step is
	// derived from the sample's value range so bucket counts stay stable
	// as the scale changes.
	HistogramBuckets int
}

// DefaultAssemblerConfig returns the production defaults.
func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{
		BandLowerPct:     10,
		BandUpperPct:     90,
		HistogramBuckets: 10,
	}
}

// Assembler gathers the filtered dataset for one subscription into an
// immutable snapshot.
type Assembler struct {
	records records.Repository
	catalog *segments.Catalog
	config  AssemblerConfig
}

// NewAssembler creates an assembler.
func NewAssembler(recordStore records.Repository, catalog *segments.Catalog, config AssemblerConfig) *Assembler {
	if config.HistogramBuckets <= 0 {
		config.HistogramBuckets = 10
	}
	return &Assembler{records: recordStore, catalog: catalog, config: config}
}

// Assemble computes the snapshot for a subscription as of the given time.
// The data window spans from the start of the previous fiscal quarter up
// to asOf. An empty trimmed sample yields a defined empty snapshot, not
// an error; a segment id that no longer exists in the catalog is logged
// and skipped, not fatal. When every scoped segment is skipped the
// subscription matches nothing and the empty snapshot is returned.
func (a *Assembler) Assemble(ctx context.Context, sub *domain.Subscription, asOf time.Time) (*domain.Snapshot, error) {
	scope, err := a.resolveScope(ctx, sub)
	if err != nil {
		return nil, err
	}

	window := reportingWindow(asOf)

	// A segment-scoped subscription whose every id was skipped matches no
	// records; it must not fall through to an unrestricted query.
	if len(sub.SegmentIDs) > 0 && len(scope) == 0 {
		slog.Warn("subscription scope resolved empty, producing empty snapshot",
			"subscription_id", sub.ID,
		)
		return &domain.Snapshot{Window: window}, nil
	}

	query := records.NewQuery().
		WithSource(sub.RecordSourceFor()).
		ApprovedOnly(true).
		Within(window)
	if len(scope) > 0 {
		query = query.RestrictToSegments(scope...)
	}

	values, err := a.records.Values(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query record values: %w", err)
	}

	return a.buildSnapshot(values, window)
}

// AssembleForSource computes an unrestricted snapshot for one record
// population, used by the monthly channel digest.
func (a *Assembler) AssembleForSource(ctx context.Context, source domain.RecordSource, asOf time.Time) (*domain.Snapshot, error) {
	window := reportingWindow(asOf)

	query := records.NewQuery().
		WithSource(source).
		ApprovedOnly(true).
		Within(window)

	values, err := a.records.Values(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query record values: %w", err)
	}

	return a.buildSnapshot(values, window)
}

// resolveScope checks the subscription's segment ids against the live
// catalog, dropping the ones that no longer exist.
func (a *Assembler) resolveScope(ctx context.Context, sub *domain.Subscription) ([]string, error) {
	if len(sub.SegmentIDs) == 0 {
		return nil, nil
	}

	scope := make([]string, 0, len(sub.SegmentIDs))
	for _, id := range sub.SegmentIDs {
		_, err := a.catalog.Resolve(ctx, id)
		if err != nil {
			if errors.Is(err, segments.ErrSegmentNotFound) {
				slog.Warn("subscription references unknown segment, skipping",
					"subscription_id", sub.ID,
					"segment_id", id,
				)
				continue
			}
			// Catalog unavailable is batch-fatal territory, propagate.
			return nil, fmt.Errorf("resolve segment scope: %w", err)
		}
		scope = append(scope, id)
	}

	return scope, nil
}

func (a *Assembler) buildSnapshot(values []float64, window domain.TimeWindow) (*domain.Snapshot, error) {
	trimmed, err := stats.PercentileSlice(a.config.BandLowerPct, a.config.BandUpperPct, values)
	if err != nil {
		return nil, fmt.Errorf("trim sample: %w", err)
	}

	if len(trimmed) == 0 {
		return &domain.Snapshot{Window: window}, nil
	}

	// trimmed is sorted ascending by PercentileSlice.
	minV := trimmed[0]
	maxV := trimmed[len(trimmed)-1]

	snapshot := &domain.Snapshot{
		SampleCount: len(trimmed),
		Mean:        stats.Mean(trimmed),
		Median:      stats.Median(trimmed),
		BandLower:   minV,
		BandUpper:   maxV,
		Min:         &minV,
		Max:         &maxV,
		Window:      window,
	}

	histogram, err := buildHistogram(trimmed, a.config.HistogramBuckets)
	if err != nil {
		return nil, err
	}
	snapshot.Histogram = histogram

	return snapshot, nil
}

// buildHistogram buckets a sorted sample. The step derives from the value
// range; a single-valued sample degenerates to one bucket.
func buildHistogram(sorted []float64, targetBuckets int) ([]domain.HistogramBucket, error) {
	minV := sorted[0]
	maxV := sorted[len(sorted)-1]

	if maxV == minV {
		return []domain.HistogramBucket{{Start: minV, End: maxV, Count: len(sorted)}}, nil
	}

	step := (maxV - minV) / float64(targetBuckets)
	buckets, err := stats.SplitRange(minV, maxV, step)
	if err != nil {
		return nil, fmt.Errorf("split value range: %w", err)
	}

	histogram := make([]domain.HistogramBucket, len(buckets))
	for i, b := range buckets {
		histogram[i] = domain.HistogramBucket{Start: b.Start, End: b.End}
	}

	for _, v := range sorted {
		idx := sort.Search(len(histogram), func(i int) bool { return histogram[i].End > v })
		if idx == len(histogram) {
			// The maximum value lands in the final, end-inclusive bucket.
			idx = len(histogram) - 1
		}
		histogram[idx].Count++
	}

	return histogram, nil
}

// reportingWindow spans from the start of the previous fiscal quarter up
// to asOf, so each report covers the current and immediately preceding
// quarter.
func reportingWindow(asOf time.Time) domain.TimeWindow {
	year, quarter := stats.PreviousQuarter(asOf)
	return domain.TimeWindow{
		From: stats.QuarterStart(year, quarter),
		To:   asOf,
	}
}
