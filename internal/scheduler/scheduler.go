// Package scheduler drives the daily aggregation batch and the monthly
// channel digest off wall-clock time.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bqworks/paygrid/internal/aggregation"
	"github.com/bqworks/paygrid/internal/domain"
)

// Config contains scheduler configuration.
type Config struct {
	// TickInterval is how often the scheduler checks whether a batch is
	// due. Batches fire at most once per calendar day.
	TickInterval time.Duration
	// BatchHourUTC is the hour of day (UTC) after which the daily batch
	// becomes due.
	BatchHourUTC int
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		TickInterval: time.Minute,
		BatchHourUTC: 9,
	}
}

// BatchRunner is the part of the aggregation runner the scheduler
// drives.
type BatchRunner interface {
	RunBatch(ctx context.Context, trigger domain.TriggerSource, asOf time.Time) (aggregation.BatchSummary, error)
	RunChannelDigest(ctx context.Context, trigger domain.TriggerSource, asOf time.Time) (aggregation.BatchSummary, error)
}

// Scheduler periodically runs the aggregation batch. The daily batch
// runs once per day after the configured hour; the channel digest runs
// on the last day of each month, after the daily batch.
type Scheduler struct {
	config Config
	runner BatchRunner
	now    func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu            sync.Mutex
	lastBatchDay  string
	lastDigestDay string
}

// New creates a scheduler.
func New(config Config, runner BatchRunner) *Scheduler {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultConfig().TickInterval
	}
	return &Scheduler{
		config: config,
		runner: runner,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// Start launches the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("starting scheduler",
		"tick_interval", s.config.TickInterval,
		"batch_hour_utc", s.config.BatchHourUTC,
	)

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	slog.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now().UTC()
	if now.Hour() < s.config.BatchHourUTC {
		return
	}

	day := now.Format("2006-01-02")

	if s.claimDay(&s.lastBatchDay, day) {
		summary, err := s.runner.RunBatch(ctx, domain.TriggerScheduled, now)
		if err != nil {
			slog.Error("scheduled batch failed", "error", err)
		} else {
			slog.Info("scheduled batch complete",
				"runs", summary.Runs,
				"suppressed", summary.Suppressed,
				"delivered", summary.Delivered,
				"errored", summary.Errored,
			)
		}
	}

	if aggregation.IsLastDayOfMonth(now) && s.claimDay(&s.lastDigestDay, day) {
		summary, err := s.runner.RunChannelDigest(ctx, domain.TriggerScheduled, now)
		if err != nil {
			slog.Error("channel digest failed", "error", err)
		} else {
			slog.Info("channel digest complete",
				"runs", summary.Runs,
				"delivered", summary.Delivered,
				"errored", summary.Errored,
			)
		}
	}
}

// claimDay marks a day done exactly once.
func (s *Scheduler) claimDay(last *string, day string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *last == day {
		return false
	}
	*last = day
	return true
}
