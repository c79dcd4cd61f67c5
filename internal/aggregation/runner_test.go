package aggregation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bqworks/paygrid/internal/channel"
	"github.com/bqworks/paygrid/internal/domain"
	"github.com/bqworks/paygrid/internal/report"
)

// mondayAsOf is a Monday, so weekly subscriptions are due.
var mondayAsOf = time.Date(2025, 8, 18, 9, 0, 0, 0, time.UTC)

type panickingClient struct {
	kind domain.ChannelKind
}

func (p *panickingClient) Kind() domain.ChannelKind { return p.kind }

func (p *panickingClient) Send(context.Context, channel.Message) error {
	panic("transport wedged")
}

func newTestRunner(t *testing.T, subs *fakeSubRepo, runs *fakeRunRepo, values []float64, clients ...channel.Client) *Runner {
	t.Helper()

	renderer, err := report.NewRenderer()
	require.NoError(t, err)

	assembler := NewAssembler(&fakeRecordRepo{values: values}, newTestCatalog(), DefaultAssemblerConfig())
	formatter := NewFormatter(assembler, nil, DefaultFormatterConfig())
	gate := NewChangeGate(DefaultChangeGateConfig())
	dispatcher := NewDispatcher(renderer, channel.NewRegistry(clients...), DefaultDispatcherConfig())

	return NewRunner(subs, runs, &fakeChannelRepo{}, assembler, formatter, gate, dispatcher)
}

func dailySub(id string, opts ...func(*domain.Subscription)) domain.Subscription {
	sub := domain.Subscription{
		ID:          id,
		Name:        "sub " + id,
		Kind:        domain.SubscriptionKindSalary,
		ChannelKind: domain.ChannelKindTelegram,
		ChatID:      "chat-" + id,
		Regularity:  domain.RegularityDaily,
		IsActive:    true,
	}
	for _, opt := range opts {
		opt(&sub)
	}
	return sub
}

func TestRunner_RunBatch(t *testing.T) {
	t.Run("delivers and records runs", func(t *testing.T) {
		subs := &fakeSubRepo{subs: []domain.Subscription{dailySub("a"), dailySub("b")}}
		runs := &fakeRunRepo{}
		client := &fakeClient{kind: domain.ChannelKindTelegram}
		runner := newTestRunner(t, subs, runs, []float64{100, 200, 300}, client)

		summary, err := runner.RunBatch(context.Background(), domain.TriggerScheduled, mondayAsOf)
		require.NoError(t, err)

		assert.Equal(t, BatchSummary{Runs: 2, Delivered: 2}, summary)
		assert.Equal(t, 2, client.sentCount())
		require.Len(t, runs.runsFor("a"), 1)
		assert.Equal(t, domain.RunStatusDelivered, runs.runsFor("a")[0].Status)
	})

	t.Run("first run never suppressed", func(t *testing.T) {
		sub := dailySub("a", func(s *domain.Subscription) {
			s.PreventNotificationIfNoDifference = true
		})
		subs := &fakeSubRepo{subs: []domain.Subscription{sub}}
		runs := &fakeRunRepo{}
		client := &fakeClient{kind: domain.ChannelKindTelegram}
		runner := newTestRunner(t, subs, runs, []float64{100, 200, 300}, client)

		summary, err := runner.RunBatch(context.Background(), domain.TriggerScheduled, mondayAsOf)
		require.NoError(t, err)
		assert.Equal(t, BatchSummary{Runs: 1, Delivered: 1}, summary)
	})

	t.Run("unchanged repeat run suppressed but still recorded", func(t *testing.T) {
		sub := dailySub("a", func(s *domain.Subscription) {
			s.PreventNotificationIfNoDifference = true
		})
		subs := &fakeSubRepo{subs: []domain.Subscription{sub}}
		runs := &fakeRunRepo{}
		client := &fakeClient{kind: domain.ChannelKindTelegram}
		runner := newTestRunner(t, subs, runs, []float64{100, 200, 300}, client)

		_, err := runner.RunBatch(context.Background(), domain.TriggerScheduled, mondayAsOf)
		require.NoError(t, err)

		summary, err := runner.RunBatch(context.Background(), domain.TriggerScheduled, mondayAsOf.Add(24*time.Hour))
		require.NoError(t, err)

		assert.Equal(t, BatchSummary{Runs: 1, Suppressed: 1}, summary)
		assert.Equal(t, 1, client.sentCount())

		history := runs.runsFor("a")
		require.Len(t, history, 2)
		assert.Equal(t, domain.RunStatusSuppressed, history[1].Status)
	})

	t.Run("suppressed run never calls the narrative provider", func(t *testing.T) {
		sub := dailySub("a", func(s *domain.Subscription) {
			s.PreventNotificationIfNoDifference = true
		})
		subs := &fakeSubRepo{subs: []domain.Subscription{sub}}
		runs := &fakeRunRepo{}
		client := &fakeClient{kind: domain.ChannelKindTelegram}
		analyzer := &fakeAnalyzer{text: "steady"}

		renderer, err := report.NewRenderer()
		require.NoError(t, err)
		assembler := NewAssembler(&fakeRecordRepo{values: []float64{100, 200, 300}}, newTestCatalog(), DefaultAssemblerConfig())
		runner := NewRunner(
			subs,
			runs,
			&fakeChannelRepo{},
			assembler,
			NewFormatter(assembler, analyzer, DefaultFormatterConfig()),
			NewChangeGate(DefaultChangeGateConfig()),
			NewDispatcher(renderer, channel.NewRegistry(client), DefaultDispatcherConfig()),
		)

		_, err = runner.RunBatch(context.Background(), domain.TriggerScheduled, mondayAsOf)
		require.NoError(t, err)
		delivered := analyzer.calls

		summary, err := runner.RunBatch(context.Background(), domain.TriggerScheduled, mondayAsOf.Add(24*time.Hour))
		require.NoError(t, err)

		assert.Equal(t, BatchSummary{Runs: 1, Suppressed: 1}, summary)
		assert.Equal(t, delivered, analyzer.calls)
	})

	t.Run("one failing subscription does not stop the batch", func(t *testing.T) {
		subs := &fakeSubRepo{subs: []domain.Subscription{dailySub("a"), dailySub("b"), dailySub("c")}}
		runs := &fakeRunRepo{}
		client := &fakeClient{
			kind:    domain.ChannelKindTelegram,
			failFor: map[string]error{"chat-b": errBoom},
		}
		runner := newTestRunner(t, subs, runs, []float64{100, 200, 300}, client)

		summary, err := runner.RunBatch(context.Background(), domain.TriggerScheduled, mondayAsOf)
		require.NoError(t, err)

		assert.Equal(t, BatchSummary{Runs: 3, Delivered: 2, Errored: 1}, summary)

		failed := runs.runsFor("b")
		require.Len(t, failed, 1)
		assert.Equal(t, domain.RunStatusFailed, failed[0].Status)
		assert.NotEmpty(t, failed[0].ErrorMessage)
	})

	t.Run("panic in pipeline is contained and recorded", func(t *testing.T) {
		subs := &fakeSubRepo{subs: []domain.Subscription{dailySub("a"), dailySub("b")}}
		runs := &fakeRunRepo{}
		runner := newTestRunner(t, subs, runs, []float64{100, 200, 300},
			&panickingClient{kind: domain.ChannelKindTelegram})

		summary, err := runner.RunBatch(context.Background(), domain.TriggerScheduled, mondayAsOf)
		require.NoError(t, err)

		assert.Equal(t, BatchSummary{Runs: 2, Errored: 2}, summary)

		recorded := runs.runsFor("a")
		require.Len(t, recorded, 1)
		assert.Equal(t, domain.RunStatusFailed, recorded[0].Status)
		assert.Contains(t, recorded[0].ErrorMessage, "panic")
	})

	t.Run("cancellation is honored between subscriptions", func(t *testing.T) {
		subs := &fakeSubRepo{subs: []domain.Subscription{dailySub("a"), dailySub("b")}}
		runs := &fakeRunRepo{}
		runner := newTestRunner(t, subs, runs, []float64{100}, &fakeClient{kind: domain.ChannelKindTelegram})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		summary, err := runner.RunBatch(ctx, domain.TriggerScheduled, mondayAsOf)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, summary.Runs)
	})

	t.Run("regularity filters due subscriptions", func(t *testing.T) {
		weekly := dailySub("w", func(s *domain.Subscription) { s.Regularity = domain.RegularityWeekly })
		monthly := dailySub("m", func(s *domain.Subscription) { s.Regularity = domain.RegularityMonthly })
		manual := dailySub("x", func(s *domain.Subscription) { s.Regularity = domain.RegularityManual })
		subs := &fakeSubRepo{subs: []domain.Subscription{dailySub("d"), weekly, monthly, manual}}
		runs := &fakeRunRepo{}
		runner := newTestRunner(t, subs, runs, []float64{100, 200}, &fakeClient{kind: domain.ChannelKindTelegram})

		// A Monday that is not the first of the month: daily and weekly run.
		summary, err := runner.RunBatch(context.Background(), domain.TriggerScheduled, mondayAsOf)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Runs)
		assert.Empty(t, runs.runsFor("m"))
		assert.Empty(t, runs.runsFor("x"))
	})
}

func TestRunner_RunOne(t *testing.T) {
	t.Run("runs a manual subscription on demand", func(t *testing.T) {
		manual := dailySub("x", func(s *domain.Subscription) { s.Regularity = domain.RegularityManual })
		subs := &fakeSubRepo{subs: []domain.Subscription{manual}}
		runs := &fakeRunRepo{}
		client := &fakeClient{kind: domain.ChannelKindTelegram}
		runner := newTestRunner(t, subs, runs, []float64{100, 200, 300}, client)

		run, err := runner.RunOne(context.Background(), "x", domain.TriggerManual)
		require.NoError(t, err)

		assert.Equal(t, domain.RunStatusDelivered, run.Status)
		assert.Equal(t, domain.TriggerManual, run.Trigger)
		assert.Equal(t, 1, client.sentCount())
	})

	t.Run("unknown subscription", func(t *testing.T) {
		runner := newTestRunner(t, &fakeSubRepo{}, &fakeRunRepo{}, nil)

		_, err := runner.RunOne(context.Background(), "missing", domain.TriggerManual)
		assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	})
}

func TestRunner_RunChannelDigest(t *testing.T) {
	tracked := []domain.TrackedChannel{
		{ID: "c1", Name: "backend-chat", Kind: domain.ChannelKindTelegram, ChatID: "chat-1", Source: domain.RecordSourceSalary, IsActive: true},
		{ID: "c2", Name: "dormant-chat", Kind: domain.ChannelKindTelegram, ChatID: "chat-2", Source: domain.RecordSourceSalary, IsActive: false},
	}

	newDigestRunner := func(t *testing.T, runs *fakeRunRepo, client *fakeClient) *Runner {
		t.Helper()
		renderer, err := report.NewRenderer()
		require.NoError(t, err)
		assembler := NewAssembler(&fakeRecordRepo{values: []float64{100, 200, 300}}, newTestCatalog(), DefaultAssemblerConfig())
		return NewRunner(
			&fakeSubRepo{},
			runs,
			&fakeChannelRepo{channels: tracked},
			assembler,
			NewFormatter(assembler, nil, DefaultFormatterConfig()),
			NewChangeGate(DefaultChangeGateConfig()),
			NewDispatcher(renderer, channel.NewRegistry(client), DefaultDispatcherConfig()),
		)
	}

	t.Run("delivers to active channels only", func(t *testing.T) {
		client := &fakeClient{kind: domain.ChannelKindTelegram}
		runs := &fakeRunRepo{}
		runner := newDigestRunner(t, runs, client)

		summary, err := runner.RunChannelDigest(context.Background(), domain.TriggerScheduled, mondayAsOf)
		require.NoError(t, err)

		// Inactive channels are skipped entirely.
		assert.Equal(t, BatchSummary{Runs: 1, Delivered: 1}, summary)
		require.Len(t, runs.channelRuns, 1)
		assert.Equal(t, "c1", runs.channelRuns[0].ChannelID)
	})

	t.Run("unchanged repeat digest suppressed but still recorded", func(t *testing.T) {
		client := &fakeClient{kind: domain.ChannelKindTelegram}
		runs := &fakeRunRepo{}
		runner := newDigestRunner(t, runs, client)

		_, err := runner.RunChannelDigest(context.Background(), domain.TriggerScheduled, mondayAsOf)
		require.NoError(t, err)

		summary, err := runner.RunChannelDigest(context.Background(), domain.TriggerScheduled, mondayAsOf.Add(24*time.Hour))
		require.NoError(t, err)

		assert.Equal(t, BatchSummary{Runs: 1, Suppressed: 1}, summary)
		assert.Equal(t, 1, client.sentCount())

		require.Len(t, runs.channelRuns, 2)
		assert.Equal(t, domain.RunStatusSuppressed, runs.channelRuns[1].Status)
	})
}

func TestIsDue(t *testing.T) {
	monday := time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC)
	tuesday := monday.Add(24 * time.Hour)
	firstOfMonth := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, isDue(domain.RegularityDaily, tuesday))
	assert.True(t, isDue(domain.RegularityWeekly, monday))
	assert.False(t, isDue(domain.RegularityWeekly, tuesday))
	assert.True(t, isDue(domain.RegularityMonthly, firstOfMonth))
	assert.False(t, isDue(domain.RegularityMonthly, monday))
	assert.False(t, isDue(domain.RegularityManual, monday))
}

func TestIsLastDayOfMonth(t *testing.T) {
	assert.True(t, IsLastDayOfMonth(time.Date(2025, 8, 31, 10, 0, 0, 0, time.UTC)))
	assert.True(t, IsLastDayOfMonth(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)))
	assert.False(t, IsLastDayOfMonth(time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC).Add(-24*time.Hour)))
	assert.False(t, IsLastDayOfMonth(time.Date(2025, 8, 30, 0, 0, 0, 0, time.UTC)))
}
