package aggregation

import (
	"context"
	"errors"
	"sync"

	"github.com/bqworks/paygrid/internal/ai"
	"github.com/bqworks/paygrid/internal/channel"
	"github.com/bqworks/paygrid/internal/domain"
	"github.com/bqworks/paygrid/internal/records"
)

// Shared in-memory fakes for the aggregation pipeline tests.

type fakeRecordRepo struct {
	values    []float64
	err       error
	lastQuery records.Query
	calls     int
}

func (f *fakeRecordRepo) Materialize(_ context.Context, q records.Query, page records.Page) (*records.PageResult, error) {
	return &records.PageResult{Page: page}, nil
}

func (f *fakeRecordRepo) Values(_ context.Context, q records.Query) ([]float64, error) {
	f.calls++
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return f.values, nil
}

type fakeSegmentRepo struct {
	segments []domain.Segment
	err      error
}

func (f *fakeSegmentRepo) ListSegments(context.Context) ([]domain.Segment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.segments, nil
}

type fakeSubRepo struct {
	subs []domain.Subscription
	err  error
}

func (f *fakeSubRepo) Create(_ context.Context, sub *domain.Subscription) error {
	if f.err != nil {
		return f.err
	}
	f.subs = append(f.subs, *sub)
	return nil
}

func (f *fakeSubRepo) GetByID(_ context.Context, id string) (*domain.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.subs {
		if f.subs[i].ID == id {
			sub := f.subs[i]
			return &sub, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (f *fakeSubRepo) List(_ context.Context, includeDeleted bool) ([]domain.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Subscription, 0, len(f.subs))
	for _, s := range f.subs {
		if !includeDeleted && s.DeletedAt != nil {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSubRepo) ListActive(_ context.Context) ([]domain.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Subscription, 0, len(f.subs))
	for _, s := range f.subs {
		if s.IsActive && s.DeletedAt == nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubRepo) Update(_ context.Context, sub *domain.Subscription) error {
	for i := range f.subs {
		if f.subs[i].ID == sub.ID {
			f.subs[i] = *sub
			return nil
		}
	}
	return ErrSubscriptionNotFound
}

func (f *fakeSubRepo) SetActive(_ context.Context, id string, active bool) error {
	for i := range f.subs {
		if f.subs[i].ID == id {
			f.subs[i].IsActive = active
			return nil
		}
	}
	return ErrSubscriptionNotFound
}

func (f *fakeSubRepo) SoftDelete(_ context.Context, id string) error {
	for i := range f.subs {
		if f.subs[i].ID == id {
			now := f.subs[i].UpdatedAt
			f.subs[i].DeletedAt = &now
			f.subs[i].IsActive = false
			return nil
		}
	}
	return ErrSubscriptionNotFound
}

type fakeRunRepo struct {
	mu          sync.Mutex
	runs        []domain.NotificationRun
	channelRuns []domain.ChannelStatsRun
	createErr   error
}

func (f *fakeRunRepo) CreateRun(_ context.Context, run *domain.NotificationRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.runs = append(f.runs, *run)
	return nil
}

func (f *fakeRunRepo) LatestRun(_ context.Context, subscriptionID string) (*domain.NotificationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.runs) - 1; i >= 0; i-- {
		r := f.runs[i]
		if r.SubscriptionID == subscriptionID && r.Status != domain.RunStatusFailed {
			return &r, nil
		}
	}
	return nil, ErrRunNotFound
}

func (f *fakeRunRepo) ListRecentRuns(_ context.Context, subscriptionID string, limit int) ([]domain.NotificationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.NotificationRun, 0, limit)
	for i := len(f.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if f.runs[i].SubscriptionID == subscriptionID {
			out = append(out, f.runs[i])
		}
	}
	return out, nil
}

func (f *fakeRunRepo) CreateChannelRun(_ context.Context, run *domain.ChannelStatsRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channelRuns = append(f.channelRuns, *run)
	return nil
}

func (f *fakeRunRepo) LatestChannelRun(_ context.Context, channelID string) (*domain.ChannelStatsRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.channelRuns) - 1; i >= 0; i-- {
		r := f.channelRuns[i]
		if r.ChannelID == channelID && r.Status != domain.RunStatusFailed {
			return &r, nil
		}
	}
	return nil, ErrRunNotFound
}

func (f *fakeRunRepo) runsFor(subscriptionID string) []domain.NotificationRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.NotificationRun, 0)
	for _, r := range f.runs {
		if r.SubscriptionID == subscriptionID {
			out = append(out, r)
		}
	}
	return out
}

type fakeChannelRepo struct {
	channels []domain.TrackedChannel
	err      error
}

func (f *fakeChannelRepo) ListTrackedChannels(context.Context) ([]domain.TrackedChannel, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.channels, nil
}

type fakeClient struct {
	kind    domain.ChannelKind
	err     error
	mu      sync.Mutex
	sent    []channel.Message
	failFor map[string]error
}

func (f *fakeClient) Kind() domain.ChannelKind { return f.kind }

func (f *fakeClient) Send(_ context.Context, msg channel.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if err, ok := f.failFor[msg.ChatID]; ok {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeClient) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeAnalyzer struct {
	text  string
	err   error
	calls int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ ai.AnalysisRequest) (*ai.Analysis, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Analysis{Text: f.text, Model: "test-model"}, nil
}

var errBoom = errors.New("boom")
