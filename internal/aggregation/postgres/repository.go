// Package postgres provides PostgreSQL implementation of aggregation
// repositories.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bqworks/paygrid/internal/aggregation"
	"github.com/bqworks/paygrid/internal/domain"
)

// Repository implements the aggregation repositories using PostgreSQL.
// Snapshots are stored as jsonb alongside their run rows so a run record
// is self-contained.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new subscription.
func (r *Repository) Create(ctx context.Context, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, name, kind, channel_kind, chat_id, regularity, segment_ids,
			use_ai_analysis, prevent_notification_if_no_difference, is_active,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Exec(ctx, query,
		sub.ID,
		sub.Name,
		sub.Kind,
		sub.ChannelKind,
		sub.ChatID,
		sub.Regularity,
		sub.SegmentIDs,
		sub.UseAiAnalysis,
		sub.PreventNotificationIfNoDifference,
		sub.IsActive,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

const subscriptionColumns = `
	id, name, kind, channel_kind, chat_id, regularity, segment_ids,
	use_ai_analysis, prevent_notification_if_no_difference, is_active,
	created_at, updated_at, deleted_at
`

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := row.Scan(
		&sub.ID,
		&sub.Name,
		&sub.Kind,
		&sub.ChannelKind,
		&sub.ChatID,
		&sub.Regularity,
		&sub.SegmentIDs,
		&sub.UseAiAnalysis,
		&sub.PreventNotificationIfNoDifference,
		&sub.IsActive,
		&sub.CreatedAt,
		&sub.UpdatedAt,
		&sub.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByID retrieves a subscription by id, including soft-deleted rows.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	sub, err := scanSubscription(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, aggregation.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// List retrieves subscriptions, newest first.
func (r *Repository) List(ctx context.Context, includeDeleted bool) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions`
	if !includeDeleted {
		query += ` WHERE deleted_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	return r.querySubscriptions(ctx, query)
}

// ListActive retrieves subscriptions eligible for scheduled runs.
func (r *Repository) ListActive(ctx context.Context) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE deleted_at IS NULL AND is_active = true
		ORDER BY created_at ASC`

	return r.querySubscriptions(ctx, query)
}

func (r *Repository) querySubscriptions(ctx context.Context, query string, args ...any) ([]domain.Subscription, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]domain.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}

	return subs, rows.Err()
}

// Update rewrites a subscription's mutable fields.
func (r *Repository) Update(ctx context.Context, sub *domain.Subscription) error {
	query := `
		UPDATE subscriptions
		SET name = $2, kind = $3, channel_kind = $4, chat_id = $5,
			regularity = $6, segment_ids = $7, use_ai_analysis = $8,
			prevent_notification_if_no_difference = $9, updated_at = $10
		WHERE id = $1 AND deleted_at IS NULL
	`
	tag, err := r.db.Exec(ctx, query,
		sub.ID,
		sub.Name,
		sub.Kind,
		sub.ChannelKind,
		sub.ChatID,
		sub.Regularity,
		sub.SegmentIDs,
		sub.UseAiAnalysis,
		sub.PreventNotificationIfNoDifference,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return aggregation.ErrSubscriptionNotFound
	}
	return nil
}

// SetActive pauses or resumes a subscription.
func (r *Repository) SetActive(ctx context.Context, id string, active bool) error {
	query := `
		UPDATE subscriptions
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	tag, err := r.db.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("set subscription active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return aggregation.ErrSubscriptionNotFound
	}
	return nil
}

// SoftDelete marks a subscription deleted without removing the row.
func (r *Repository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE subscriptions
		SET deleted_at = NOW(), is_active = false, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("soft delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return aggregation.ErrSubscriptionNotFound
	}
	return nil
}

// CreateRun inserts a run record. Runs are append-only.
func (r *Repository) CreateRun(ctx context.Context, run *domain.NotificationRun) error {
	snapshot, err := json.Marshal(run.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO notification_runs (id, subscription_id, trigger_source, status, error_message, snapshot, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.Exec(ctx, query,
		run.ID,
		run.SubscriptionID,
		run.Trigger,
		run.Status,
		run.ErrorMessage,
		snapshot,
		run.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// LatestRun returns the most recent comparable run for a subscription.
// Failed runs carry no usable snapshot, so they are excluded from
// change-gate diffing.
func (r *Repository) LatestRun(ctx context.Context, subscriptionID string) (*domain.NotificationRun, error) {
	query := `
		SELECT id, subscription_id, trigger_source, status, error_message, snapshot, computed_at
		FROM notification_runs
		WHERE subscription_id = $1 AND status != 'failed'
		ORDER BY computed_at DESC, id DESC
		LIMIT 1
	`
	run, err := scanRun(r.db.QueryRow(ctx, query, subscriptionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, aggregation.ErrRunNotFound
		}
		return nil, fmt.Errorf("get latest run: %w", err)
	}
	return run, nil
}

// ListRecentRuns returns the newest run records for a subscription.
func (r *Repository) ListRecentRuns(ctx context.Context, subscriptionID string, limit int) ([]domain.NotificationRun, error) {
	query := `
		SELECT id, subscription_id, trigger_source, status, error_message, snapshot, computed_at
		FROM notification_runs
		WHERE subscription_id = $1
		ORDER BY computed_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, subscriptionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.NotificationRun, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*domain.NotificationRun, error) {
	var run domain.NotificationRun
	var snapshot []byte

	err := row.Scan(
		&run.ID,
		&run.SubscriptionID,
		&run.Trigger,
		&run.Status,
		&run.ErrorMessage,
		&snapshot,
		&run.ComputedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &run.Snapshot); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
	}
	return &run, nil
}

// CreateChannelRun inserts a channel digest run record.
func (r *Repository) CreateChannelRun(ctx context.Context, run *domain.ChannelStatsRun) error {
	snapshot, err := json.Marshal(run.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO channel_stats_runs (id, channel_id, trigger_source, status, error_message, snapshot, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.Exec(ctx, query,
		run.ID,
		run.ChannelID,
		run.Trigger,
		run.Status,
		run.ErrorMessage,
		snapshot,
		run.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("insert channel run: %w", err)
	}
	return nil
}

// LatestChannelRun returns the most recent digest run for a channel.
func (r *Repository) LatestChannelRun(ctx context.Context, channelID string) (*domain.ChannelStatsRun, error) {
	query := `
		SELECT id, channel_id, trigger_source, status, error_message, snapshot, computed_at
		FROM channel_stats_runs
		WHERE channel_id = $1 AND status != 'failed'
		ORDER BY computed_at DESC, id DESC
		LIMIT 1
	`
	var run domain.ChannelStatsRun
	var snapshot []byte

	err := r.db.QueryRow(ctx, query, channelID).Scan(
		&run.ID,
		&run.ChannelID,
		&run.Trigger,
		&run.Status,
		&run.ErrorMessage,
		&snapshot,
		&run.ComputedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, aggregation.ErrRunNotFound
		}
		return nil, fmt.Errorf("get latest channel run: %w", err)
	}

	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &run.Snapshot); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
	}
	return &run, nil
}

// ListTrackedChannels returns the channels included in the monthly
// digest.
func (r *Repository) ListTrackedChannels(ctx context.Context) ([]domain.TrackedChannel, error) {
	query := `
		SELECT id, name, kind, chat_id, source, is_active, created_at
		FROM tracked_channels
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tracked channels: %w", err)
	}
	defer rows.Close()

	channels := make([]domain.TrackedChannel, 0)
	for rows.Next() {
		var ch domain.TrackedChannel
		err := rows.Scan(
			&ch.ID,
			&ch.Name,
			&ch.Kind,
			&ch.ChatID,
			&ch.Source,
			&ch.IsActive,
			&ch.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tracked channel: %w", err)
		}
		channels = append(channels, ch)
	}

	return channels, rows.Err()
}
