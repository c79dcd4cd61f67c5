// Package channel defines the chat transport contract and the
// capability-keyed registry of concrete clients.
package channel

import (
	"context"

	"github.com/bqworks/paygrid/internal/domain"
)

// Message is one rendered report ready for a destination chat.
// Text already carries the channel-specific markup.
type Message struct {
	ChatID string
	Text   string
}

// Client sends messages over one chat transport.
type Client interface {
	Kind() domain.ChannelKind
	Send(ctx context.Context, msg Message) error
}

// Registry holds the enabled channel clients keyed by kind. It is built
// once at startup from enabled configurations only, so a disabled or
// misconfigured channel is simply absent rather than a nil client.
type Registry struct {
	clients map[domain.ChannelKind]Client
}

// NewRegistry creates a registry from the given clients.
func NewRegistry(clients ...Client) *Registry {
	m := make(map[domain.ChannelKind]Client, len(clients))
	for _, c := range clients {
		m[c.Kind()] = c
	}
	return &Registry{clients: m}
}

// Resolve returns the client for a channel kind. ok is false when the
// channel is disabled or unknown.
func (r *Registry) Resolve(kind domain.ChannelKind) (Client, bool) {
	c, ok := r.clients[kind]
	return c, ok
}

// Kinds lists the registered channel kinds.
func (r *Registry) Kinds() []domain.ChannelKind {
	kinds := make([]domain.ChannelKind, 0, len(r.clients))
	for k := range r.clients {
		kinds = append(kinds, k)
	}
	return kinds
}
