// Package aggregation implements the statistics subscription and
// notification engine: snapshot assembly, report formatting, change-gate
// suppression, channel dispatch and the scheduled runner.
package aggregation

import (
	"context"

	"github.com/bqworks/paygrid/internal/domain"
)

// SubscriptionRepository defines subscription data access.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *domain.Subscription) error
	GetByID(ctx context.Context, id string) (*domain.Subscription, error)
	List(ctx context.Context, includeDeleted bool) ([]domain.Subscription, error)
	ListActive(ctx context.Context) ([]domain.Subscription, error)
	Update(ctx context.Context, sub *domain.Subscription) error
	SetActive(ctx context.Context, id string, active bool) error
	SoftDelete(ctx context.Context, id string) error
}

// RunRepository persists run records. Runs are append-only: they are
// created once per aggregation attempt and never updated.
type RunRepository interface {
	CreateRun(ctx context.Context, run *domain.NotificationRun) error
	// LatestRun returns the most recent run for a subscription, for
	// change-gate diffing. Returns ErrRunNotFound for a first-ever run.
	LatestRun(ctx context.Context, subscriptionID string) (*domain.NotificationRun, error)
	ListRecentRuns(ctx context.Context, subscriptionID string, limit int) ([]domain.NotificationRun, error)

	CreateChannelRun(ctx context.Context, run *domain.ChannelStatsRun) error
	LatestChannelRun(ctx context.Context, channelID string) (*domain.ChannelStatsRun, error)
}

// ChannelRepository lists the channels tracked by the monthly digest.
type ChannelRepository interface {
	ListTrackedChannels(ctx context.Context) ([]domain.TrackedChannel, error)
}
