package aggregation

import (
	"math"

	"github.com/bqworks/paygrid/internal/domain"
)

// ChangeGateConfig tunes suppression of redundant notifications.
type ChangeGateConfig struct {
	// RelativeThreshold is the relative difference under which a headline
	// statistic counts as unchanged. There is no canonical business value
	// for this, so it is configuration rather than a constant.
	RelativeThreshold float64
}

// DefaultChangeGateConfig returns a 1% threshold.
func DefaultChangeGateConfig() ChangeGateConfig {
	return ChangeGateConfig{RelativeThreshold: 0.01}
}

// ChangeGate decides whether a notification is redundant compared to the
// subscription's previously sent snapshot.
type ChangeGate struct {
	config ChangeGateConfig
}

// NewChangeGate creates a change gate.
func NewChangeGate(config ChangeGateConfig) *ChangeGate {
	if config.RelativeThreshold <= 0 {
		config.RelativeThreshold = DefaultChangeGateConfig().RelativeThreshold
	}
	return &ChangeGate{config: config}
}

// ShouldSuppress returns true only when the subscription opted into
// suppression, a previous run exists, and every tracked headline
// statistic (count, mean, median) is within the relative threshold of
// the previous snapshot. A first-ever run is never suppressed.
func (g *ChangeGate) ShouldSuppress(current, previous *domain.Snapshot, sub *domain.Subscription) bool {
	return sub.PreventNotificationIfNoDifference && g.Unchanged(current, previous)
}

// Unchanged reports whether every tracked headline statistic (count,
// mean, median) of current is within the relative threshold of the
// previous snapshot. A nil previous snapshot is always a change.
func (g *ChangeGate) Unchanged(current, previous *domain.Snapshot) bool {
	if previous == nil {
		return false
	}

	return g.within(float64(current.SampleCount), float64(previous.SampleCount)) &&
		g.within(current.Mean, previous.Mean) &&
		g.within(current.Median, previous.Median)
}

func (g *ChangeGate) within(a, b float64) bool {
	if a == b {
		return true
	}
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom == 0 {
		return true
	}
	return math.Abs(a-b)/denom <= g.config.RelativeThreshold
}
