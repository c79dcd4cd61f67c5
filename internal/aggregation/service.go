package aggregation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bqworks/paygrid/internal/domain"
	"github.com/bqworks/paygrid/internal/segments"
)

const defaultRunHistoryLimit = 20

// Service provides subscription management and run triggering.
type Service struct {
	subscriptions SubscriptionRepository
	runs          RunRepository
	catalog       *segments.Catalog
	runner        *Runner
	now           func() time.Time
}

// NewService creates a new aggregation service.
func NewService(subscriptions SubscriptionRepository, runs RunRepository, catalog *segments.Catalog, runner *Runner) *Service {
	return &Service{
		subscriptions: subscriptions,
		runs:          runs,
		catalog:       catalog,
		runner:        runner,
		now:           time.Now,
	}
}

// CreateSubscription validates and stores a new subscription. Segment
// ids must exist in the live catalog at creation time.
func (s *Service) CreateSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error) {
	if err := s.checkSegments(ctx, sub.SegmentIDs); err != nil {
		return nil, err
	}

	now := s.now()
	sub.ID = uuid.NewString()
	sub.IsActive = true
	sub.CreatedAt = now
	sub.UpdatedAt = now

	if err := s.subscriptions.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	slog.Info("subscription created",
		"subscription_id", sub.ID,
		"kind", sub.Kind,
		"regularity", sub.Regularity,
	)
	return sub, nil
}

// GetSubscription returns one subscription by id.
func (s *Service) GetSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	return s.subscriptions.GetByID(ctx, id)
}

// ListSubscriptions returns subscriptions, optionally including
// soft-deleted ones.
func (s *Service) ListSubscriptions(ctx context.Context, includeDeleted bool) ([]domain.Subscription, error) {
	return s.subscriptions.List(ctx, includeDeleted)
}

// UpdateSubscription applies changes to an existing subscription. A
// deleted subscription cannot be updated.
func (s *Service) UpdateSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error) {
	existing, err := s.subscriptions.GetByID(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if existing.DeletedAt != nil {
		return nil, ErrSubscriptionDeleted
	}

	if err := s.checkSegments(ctx, sub.SegmentIDs); err != nil {
		return nil, err
	}

	sub.CreatedAt = existing.CreatedAt
	sub.IsActive = existing.IsActive
	sub.UpdatedAt = s.now()

	if err := s.subscriptions.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}

	return sub, nil
}

// SetSubscriptionActive pauses or resumes a subscription.
func (s *Service) SetSubscriptionActive(ctx context.Context, id string, active bool) error {
	existing, err := s.subscriptions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.DeletedAt != nil {
		return ErrSubscriptionDeleted
	}

	if err := s.subscriptions.SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("set subscription active: %w", err)
	}

	slog.Info("subscription activity changed", "subscription_id", id, "active", active)
	return nil
}

// DeleteSubscription soft-deletes a subscription. The row stays behind
// because run history references it.
func (s *Service) DeleteSubscription(ctx context.Context, id string) error {
	if _, err := s.subscriptions.GetByID(ctx, id); err != nil {
		return err
	}

	if err := s.subscriptions.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}

	slog.Info("subscription deleted", "subscription_id", id)
	return nil
}

// TriggerManualRun runs the pipeline for one subscription immediately,
// bypassing its regularity. Deleted or paused subscriptions are refused.
func (s *Service) TriggerManualRun(ctx context.Context, id string) (*domain.NotificationRun, error) {
	sub, err := s.subscriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.DeletedAt != nil {
		return nil, ErrSubscriptionDeleted
	}
	if !sub.IsActive {
		return nil, ErrSubscriptionInactive
	}

	return s.runner.RunOne(ctx, id, domain.TriggerManual)
}

// TriggerScheduledBatch runs a full batch as of now. Exposed for
// operational use next to the scheduler.
func (s *Service) TriggerScheduledBatch(ctx context.Context) (BatchSummary, error) {
	return s.runner.RunBatch(ctx, domain.TriggerManual, s.now())
}

// ListRecentRuns returns the newest run records for a subscription.
func (s *Service) ListRecentRuns(ctx context.Context, subscriptionID string, limit int) ([]domain.NotificationRun, error) {
	if _, err := s.subscriptions.GetByID(ctx, subscriptionID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultRunHistoryLimit
	}
	return s.runs.ListRecentRuns(ctx, subscriptionID, limit)
}

// checkSegments verifies every segment id against the live catalog.
func (s *Service) checkSegments(ctx context.Context, segmentIDs []string) error {
	for _, id := range segmentIDs {
		if _, err := s.catalog.Resolve(ctx, id); err != nil {
			if errors.Is(err, segments.ErrSegmentNotFound) {
				return fmt.Errorf("%w: %s", ErrUnknownSegments, id)
			}
			return fmt.Errorf("resolve segment %s: %w", id, err)
		}
	}
	return nil
}
