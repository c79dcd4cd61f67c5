package aggregation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bqworks/paygrid/internal/domain"
)

func newTestService(t *testing.T, subs *fakeSubRepo, runs *fakeRunRepo, segs ...domain.Segment) *Service {
	t.Helper()
	runner := newTestRunner(t, subs, runs, []float64{100, 200, 300}, &fakeClient{kind: domain.ChannelKindTelegram})
	return NewService(subs, runs, newTestCatalog(segs...), runner)
}

func TestService_CreateSubscription(t *testing.T) {
	t.Run("assigns id and activates", func(t *testing.T) {
		subs := &fakeSubRepo{}
		svc := newTestService(t, subs, &fakeRunRepo{}, domain.Segment{ID: "seg-1", Title: "Backend"})

		created, err := svc.CreateSubscription(context.Background(), &domain.Subscription{
			Name:       "Backend salaries",
			Kind:       domain.SubscriptionKindSalary,
			SegmentIDs: []string{"seg-1"},
		})
		require.NoError(t, err)

		assert.NotEmpty(t, created.ID)
		assert.True(t, created.IsActive)
		assert.False(t, created.CreatedAt.IsZero())
		require.Len(t, subs.subs, 1)
	})

	t.Run("rejects unknown segment", func(t *testing.T) {
		svc := newTestService(t, &fakeSubRepo{}, &fakeRunRepo{})

		_, err := svc.CreateSubscription(context.Background(), &domain.Subscription{
			Name:       "Backend salaries",
			SegmentIDs: []string{"seg-gone"},
		})
		assert.ErrorIs(t, err, ErrUnknownSegments)
	})
}

func TestService_UpdateSubscription(t *testing.T) {
	existing := dailySub("a")
	existing.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("preserves creation time and activity", func(t *testing.T) {
		subs := &fakeSubRepo{subs: []domain.Subscription{existing}}
		svc := newTestService(t, subs, &fakeRunRepo{})

		updated, err := svc.UpdateSubscription(context.Background(), &domain.Subscription{
			ID:   "a",
			Name: "renamed",
			Kind: domain.SubscriptionKindSalary,
		})
		require.NoError(t, err)
		assert.Equal(t, existing.CreatedAt, updated.CreatedAt)
		assert.True(t, updated.IsActive)
		assert.Equal(t, "renamed", updated.Name)
	})

	t.Run("refuses deleted subscription", func(t *testing.T) {
		deleted := existing
		now := time.Now()
		deleted.DeletedAt = &now
		subs := &fakeSubRepo{subs: []domain.Subscription{deleted}}
		svc := newTestService(t, subs, &fakeRunRepo{})

		_, err := svc.UpdateSubscription(context.Background(), &domain.Subscription{ID: "a"})
		assert.ErrorIs(t, err, ErrSubscriptionDeleted)
	})
}

func TestService_TriggerManualRun(t *testing.T) {
	t.Run("runs active subscription", func(t *testing.T) {
		subs := &fakeSubRepo{subs: []domain.Subscription{dailySub("a")}}
		runs := &fakeRunRepo{}
		svc := newTestService(t, subs, runs)

		run, err := svc.TriggerManualRun(context.Background(), "a")
		require.NoError(t, err)
		assert.Equal(t, domain.TriggerManual, run.Trigger)
		assert.Equal(t, domain.RunStatusDelivered, run.Status)
	})

	t.Run("refuses paused subscription", func(t *testing.T) {
		paused := dailySub("a", func(s *domain.Subscription) { s.IsActive = false })
		svc := newTestService(t, &fakeSubRepo{subs: []domain.Subscription{paused}}, &fakeRunRepo{})

		_, err := svc.TriggerManualRun(context.Background(), "a")
		assert.ErrorIs(t, err, ErrSubscriptionInactive)
	})

	t.Run("unknown subscription", func(t *testing.T) {
		svc := newTestService(t, &fakeSubRepo{}, &fakeRunRepo{})

		_, err := svc.TriggerManualRun(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	})
}

func TestService_ListRecentRuns(t *testing.T) {
	subs := &fakeSubRepo{subs: []domain.Subscription{dailySub("a")}}
	runs := &fakeRunRepo{runs: []domain.NotificationRun{
		{ID: "r1", SubscriptionID: "a", Status: domain.RunStatusDelivered},
		{ID: "r2", SubscriptionID: "a", Status: domain.RunStatusSuppressed},
	}}
	svc := newTestService(t, subs, runs)

	got, err := svc.ListRecentRuns(context.Background(), "a", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Newest first.
	assert.Equal(t, "r2", got[0].ID)
}
