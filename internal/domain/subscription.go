package domain

import "time"

// SubscriptionKind selects which record population a subscription aggregates.
type SubscriptionKind string

const (
	SubscriptionKindSalary        SubscriptionKind = "salary"
	SubscriptionKindCompanyReview SubscriptionKind = "company_review"
)

// Regularity is the intended cadence of a subscription.
type Regularity string

const (
	RegularityDaily   Regularity = "daily"
	RegularityWeekly  Regularity = "weekly"
	RegularityMonthly Regularity = "monthly"
	RegularityManual  Regularity = "manual"
)

// Subscription is a saved configuration requesting periodic aggregate
// reports to a chat destination. Deleted subscriptions are kept as rows
// because run history references them.
type Subscription struct {
	ID          string
	Name        string
	Kind        SubscriptionKind
	ChannelKind ChannelKind
	ChatID      string
	Regularity  Regularity

	// SegmentIDs restricts which records enter the aggregate.
	// Empty means unrestricted.
	SegmentIDs []string

	UseAiAnalysis                     bool
	PreventNotificationIfNoDifference bool
	IsActive                          bool

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// RecordSourceFor maps a subscription kind to the record population it reads.
func (s *Subscription) RecordSourceFor() RecordSource {
	if s.Kind == SubscriptionKindCompanyReview {
		return RecordSourceCompanyReview
	}
	return RecordSourceSalary
}
