package domain

import "time"

// ChannelKind identifies a chat transport.
type ChannelKind string

const (
	ChannelKindTelegram   ChannelKind = "telegram"
	ChannelKindMattermost ChannelKind = "mattermost"
)

// TrackedChannel is a chat channel receiving the monthly aggregate digest,
// independent of any user subscription.
type TrackedChannel struct {
	ID        string
	Name      string
	Kind      ChannelKind
	ChatID    string
	Source    RecordSource
	IsActive  bool
	CreatedAt time.Time
}
