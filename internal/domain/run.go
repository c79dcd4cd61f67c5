package domain

import "time"

// TriggerSource records what started a run.
type TriggerSource string

const (
	TriggerScheduled TriggerSource = "scheduled"
	TriggerManual    TriggerSource = "manual"
)

// RunStatus is the terminal outcome of one aggregation attempt.
type RunStatus string

const (
	// RunStatusDelivered means the report was computed and pushed to the channel.
	RunStatusDelivered RunStatus = "delivered"
	// RunStatusSuppressed means the report was computed but the change gate
	// decided nothing material changed. The run is still recorded so diffing
	// has a continuous history.
	RunStatusSuppressed RunStatus = "suppressed"
	// RunStatusFailed means the pipeline errored for this subscription;
	// ErrorMessage carries the cause.
	RunStatusFailed RunStatus = "failed"
)

// NotificationRun is the append-only audit record of one aggregation
// attempt for a subscription. Runs are never mutated after creation.
type NotificationRun struct {
	ID             string
	SubscriptionID string
	Trigger        TriggerSource
	Status         RunStatus
	ErrorMessage   string
	Snapshot       Snapshot
	ComputedAt     time.Time
}

// ChannelStatsRun is the monthly channel-digest counterpart of
// NotificationRun, keyed by tracked channel instead of subscription.
type ChannelStatsRun struct {
	ID           string
	ChannelID    string
	Trigger      TriggerSource
	Status       RunStatus
	ErrorMessage string
	Snapshot     Snapshot
	ComputedAt   time.Time
}
