package channel

import (
	"context"
	"testing"

	"github.com/bqworks/paygrid/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	kind domain.ChannelKind
}

func (s *stubClient) Kind() domain.ChannelKind               { return s.kind }
func (s *stubClient) Send(context.Context, Message) error    { return nil }

func TestRegistry_Resolve(t *testing.T) {
	telegram := &stubClient{kind: domain.ChannelKindTelegram}
	registry := NewRegistry(telegram)

	got, ok := registry.Resolve(domain.ChannelKindTelegram)
	require.True(t, ok)
	assert.Same(t, telegram, got.(*stubClient))

	_, ok = registry.Resolve(domain.ChannelKindMattermost)
	assert.False(t, ok, "unregistered kind means channel is disabled")
}

func TestRegistry_Kinds(t *testing.T) {
	registry := NewRegistry(
		&stubClient{kind: domain.ChannelKindTelegram},
		&stubClient{kind: domain.ChannelKindMattermost},
	)

	assert.ElementsMatch(t,
		[]domain.ChannelKind{domain.ChannelKindTelegram, domain.ChannelKindMattermost},
		registry.Kinds(),
	)
}
