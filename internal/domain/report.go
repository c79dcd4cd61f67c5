package domain

import "time"

// HistoryPoint is a prior snapshot computed the same way as the current
// one, used as comparison input for the AI narrative.
type HistoryPoint struct {
	AsOf     time.Time `json:"as_of"`
	Snapshot Snapshot  `json:"snapshot"`
}

// Report is the transport-agnostic output of the formatter: the numeric
// summary plus an optional AI-authored narrative. Rendering to a channel's
// markup is the dispatcher's job.
type Report struct {
	SubscriptionName string
	Kind             SubscriptionKind
	Snapshot         Snapshot
	History          []HistoryPoint

	Narrative         string
	AiSectionDegraded bool

	GeneratedAt time.Time
}
