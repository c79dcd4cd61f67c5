package aggregation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bqworks/paygrid/internal/domain"
)

// BatchSummary counts the outcomes of one batch.
type BatchSummary struct {
	Runs       int `json:"runs"`
	Suppressed int `json:"suppressed"`
	Delivered  int `json:"delivered"`
	Errored    int `json:"errored"`
}

// Runner drives the aggregation pipeline for subscriptions and tracked
// channels. A batch walks the active subscriptions sequentially; one
// subscription failing never stops the rest, and every attempt leaves a
// run record behind regardless of outcome.
type Runner struct {
	subscriptions SubscriptionRepository
	runs          RunRepository
	channels      ChannelRepository
	assembler     *Assembler
	formatter     *Formatter
	gate          *ChangeGate
	dispatcher    *Dispatcher
	now           func() time.Time
}

// NewRunner creates a runner.
func NewRunner(
	subscriptions SubscriptionRepository,
	runs RunRepository,
	channels ChannelRepository,
	assembler *Assembler,
	formatter *Formatter,
	gate *ChangeGate,
	dispatcher *Dispatcher,
) *Runner {
	return &Runner{
		subscriptions: subscriptions,
		runs:          runs,
		channels:      channels,
		assembler:     assembler,
		formatter:     formatter,
		gate:          gate,
		dispatcher:    dispatcher,
		now:           time.Now,
	}
}

// RunBatch processes every active subscription that is due at asOf.
// Cancellation is honored between subscriptions; an in-flight
// subscription finishes its pipeline first.
func (r *Runner) RunBatch(ctx context.Context, trigger domain.TriggerSource, asOf time.Time) (BatchSummary, error) {
	started := r.now()
	defer func() { recordBatchDuration(time.Since(started)) }()

	var summary BatchSummary

	subs, err := r.subscriptions.ListActive(ctx)
	if err != nil {
		return summary, fmt.Errorf("list active subscriptions: %w", err)
	}

	slog.Info("starting aggregation batch",
		"trigger", trigger,
		"as_of", asOf,
		"candidates", len(subs),
	)

	for i := range subs {
		if err := ctx.Err(); err != nil {
			slog.Warn("aggregation batch canceled",
				"processed", summary.Runs,
				"remaining", len(subs)-i,
			)
			return summary, err
		}

		sub := &subs[i]
		if !isDue(sub.Regularity, asOf) {
			continue
		}

		summary.Runs++
		run := r.processSubscription(ctx, sub, trigger, asOf)
		switch run.Status {
		case domain.RunStatusDelivered:
			summary.Delivered++
		case domain.RunStatusSuppressed:
			summary.Suppressed++
		case domain.RunStatusFailed:
			summary.Errored++
		}
	}

	slog.Info("aggregation batch finished",
		"trigger", trigger,
		"runs", summary.Runs,
		"suppressed", summary.Suppressed,
		"delivered", summary.Delivered,
		"errored", summary.Errored,
		"duration", time.Since(started),
	)

	return summary, nil
}

// RunOne executes the pipeline for a single subscription regardless of
// its regularity. Used by the manual trigger endpoint.
func (r *Runner) RunOne(ctx context.Context, subscriptionID string, trigger domain.TriggerSource) (*domain.NotificationRun, error) {
	sub, err := r.subscriptions.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	run := r.processSubscription(ctx, sub, trigger, r.now())
	return run, nil
}

// processSubscription runs the full pipeline for one subscription and
// persists the run record. A panic anywhere in the pipeline is contained
// and recorded as a failed run.
func (r *Runner) processSubscription(ctx context.Context, sub *domain.Subscription, trigger domain.TriggerSource, asOf time.Time) (run *domain.NotificationRun) {
	run = &domain.NotificationRun{
		ID:             uuid.NewString(),
		SubscriptionID: sub.ID,
		Trigger:        trigger,
		ComputedAt:     asOf,
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("aggregation pipeline panicked",
				"subscription_id", sub.ID,
				"panic", rec,
			)
			run.Status = domain.RunStatusFailed
			run.ErrorMessage = fmt.Sprintf("panic: %v", rec)
		}

		recordRunOutcome(string(run.Status))
		if err := r.runs.CreateRun(ctx, run); err != nil {
			slog.Error("failed to persist run record",
				"subscription_id", sub.ID,
				"run_id", run.ID,
				"error", err,
			)
		}
	}()

	snapshot, err := r.assembler.Assemble(ctx, sub, asOf)
	if err != nil {
		slog.Error("snapshot assembly failed",
			"subscription_id", sub.ID,
			"error", err,
		)
		run.Status = domain.RunStatusFailed
		run.ErrorMessage = err.Error()
		return run
	}
	run.Snapshot = *snapshot

	previous, err := r.latestSnapshot(ctx, sub.ID)
	if err != nil {
		slog.Error("previous run lookup failed",
			"subscription_id", sub.ID,
			"error", err,
		)
		run.Status = domain.RunStatusFailed
		run.ErrorMessage = err.Error()
		return run
	}

	// The gate runs before formatting: a suppressed run produces no
	// report and never calls the narrative provider.
	if r.gate.ShouldSuppress(snapshot, previous, sub) {
		slog.Info("notification suppressed, no material change",
			"subscription_id", sub.ID,
		)
		run.Status = domain.RunStatusSuppressed
		return run
	}

	rep := r.formatter.Format(ctx, sub, snapshot, asOf)

	outcome, err := r.dispatcher.Dispatch(ctx, sub.ChannelKind, sub.ChatID, rep)
	if outcome != OutcomeDelivered {
		run.Status = domain.RunStatusFailed
		if err != nil {
			slog.Error("report delivery failed",
				"subscription_id", sub.ID,
				"channel_kind", sub.ChannelKind,
				"error", err,
			)
			run.ErrorMessage = err.Error()
		} else {
			run.ErrorMessage = fmt.Sprintf("channel %s unavailable", sub.ChannelKind)
		}
		return run
	}

	slog.Info("report delivered",
		"subscription_id", sub.ID,
		"channel_kind", sub.ChannelKind,
		"sample_count", snapshot.SampleCount,
	)
	run.Status = domain.RunStatusDelivered
	return run
}

// latestSnapshot returns the snapshot of the most recent delivered or
// suppressed run, or nil for a first-ever run. Failed runs carry no
// comparable snapshot and are skipped by the repository query.
func (r *Runner) latestSnapshot(ctx context.Context, subscriptionID string) (*domain.Snapshot, error) {
	last, err := r.runs.LatestRun(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load latest run: %w", err)
	}
	return &last.Snapshot, nil
}

// latestChannelSnapshot returns the snapshot of the channel's most
// recent non-failed digest run, or nil for a first-ever digest.
func (r *Runner) latestChannelSnapshot(ctx context.Context, channelID string) (*domain.Snapshot, error) {
	last, err := r.runs.LatestChannelRun(ctx, channelID)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load latest channel run: %w", err)
	}
	return &last.Snapshot, nil
}

// RunChannelDigest computes the monthly statistics digest for every
// tracked channel. Channels share the subscription failure-isolation
// semantics: one failing channel never stops the rest.
func (r *Runner) RunChannelDigest(ctx context.Context, trigger domain.TriggerSource, asOf time.Time) (BatchSummary, error) {
	var summary BatchSummary

	channels, err := r.channels.ListTrackedChannels(ctx)
	if err != nil {
		return summary, fmt.Errorf("list tracked channels: %w", err)
	}

	slog.Info("starting channel digest batch",
		"trigger", trigger,
		"channels", len(channels),
	)

	for i := range channels {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		ch := &channels[i]
		if !ch.IsActive {
			continue
		}

		summary.Runs++
		run := r.processChannel(ctx, ch, trigger, asOf)
		switch run.Status {
		case domain.RunStatusDelivered:
			summary.Delivered++
		case domain.RunStatusSuppressed:
			summary.Suppressed++
		case domain.RunStatusFailed:
			summary.Errored++
		}
	}

	slog.Info("channel digest batch finished",
		"runs", summary.Runs,
		"suppressed", summary.Suppressed,
		"delivered", summary.Delivered,
		"errored", summary.Errored,
	)

	return summary, nil
}

func (r *Runner) processChannel(ctx context.Context, ch *domain.TrackedChannel, trigger domain.TriggerSource, asOf time.Time) (run *domain.ChannelStatsRun) {
	run = &domain.ChannelStatsRun{
		ID:         uuid.NewString(),
		ChannelID:  ch.ID,
		Trigger:    trigger,
		ComputedAt: asOf,
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("channel digest pipeline panicked",
				"channel_id", ch.ID,
				"panic", rec,
			)
			run.Status = domain.RunStatusFailed
			run.ErrorMessage = fmt.Sprintf("panic: %v", rec)
		}

		if err := r.runs.CreateChannelRun(ctx, run); err != nil {
			slog.Error("failed to persist channel run record",
				"channel_id", ch.ID,
				"run_id", run.ID,
				"error", err,
			)
		}
	}()

	snapshot, err := r.assembler.AssembleForSource(ctx, ch.Source, asOf)
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.ErrorMessage = err.Error()
		return run
	}
	run.Snapshot = *snapshot

	previous, err := r.latestChannelSnapshot(ctx, ch.ID)
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.ErrorMessage = err.Error()
		return run
	}

	// Digests carry no per-channel opt-in; an unchanged month is always
	// suppressed, and the suppressed run is still recorded.
	if r.gate.Unchanged(snapshot, previous) {
		slog.Info("channel digest suppressed, no material change",
			"channel_id", ch.ID,
		)
		run.Status = domain.RunStatusSuppressed
		return run
	}

	rep := &domain.Report{
		SubscriptionName: ch.Name,
		Kind:             kindForSource(ch.Source),
		Snapshot:         *snapshot,
		GeneratedAt:      asOf,
	}

	outcome, err := r.dispatcher.Dispatch(ctx, ch.Kind, ch.ChatID, rep)
	if outcome != OutcomeDelivered {
		run.Status = domain.RunStatusFailed
		if err != nil {
			run.ErrorMessage = err.Error()
		} else {
			run.ErrorMessage = fmt.Sprintf("channel %s unavailable", ch.Kind)
		}
		return run
	}

	run.Status = domain.RunStatusDelivered
	return run
}

// isDue reports whether a subscription with the given regularity should
// run at asOf on a daily scheduler tick. Manual subscriptions only run
// through the trigger endpoint.
func isDue(reg domain.Regularity, asOf time.Time) bool {
	switch reg {
	case domain.RegularityDaily:
		return true
	case domain.RegularityWeekly:
		return asOf.Weekday() == time.Monday
	case domain.RegularityMonthly:
		return asOf.Day() == 1
	default:
		return false
	}
}

// IsLastDayOfMonth reports whether asOf falls on the last calendar day
// of its month. The channel digest runs on this day.
func IsLastDayOfMonth(asOf time.Time) bool {
	return asOf.AddDate(0, 0, 1).Day() == 1
}

func kindForSource(source domain.RecordSource) domain.SubscriptionKind {
	if source == domain.RecordSourceCompanyReview {
		return domain.SubscriptionKindCompanyReview
	}
	return domain.SubscriptionKindSalary
}
