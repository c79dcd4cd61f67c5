package aggregation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bqworks/paygrid/internal/channel"
	"github.com/bqworks/paygrid/internal/domain"
	"github.com/bqworks/paygrid/internal/report"
)

// DeliveryOutcome classifies one dispatch attempt.
type DeliveryOutcome string

const (
	// OutcomeDelivered means the channel accepted the message.
	OutcomeDelivered DeliveryOutcome = "delivered"
	// OutcomeChannelUnavailable means no client is registered for the
	// subscription's channel kind.
	OutcomeChannelUnavailable DeliveryOutcome = "channel_unavailable"
	// OutcomeDeliveryFailed means rendering or sending errored.
	OutcomeDeliveryFailed DeliveryOutcome = "delivery_failed"
)

// DispatcherConfig tunes report delivery.
type DispatcherConfig struct {
	// SendTimeout bounds one channel send independently of the batch.
	SendTimeout time.Duration
}

// DefaultDispatcherConfig returns the production defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{SendTimeout: 15 * time.Second}
}

// Dispatcher renders a report for its destination channel and sends it.
type Dispatcher struct {
	renderer *report.Renderer
	registry *channel.Registry
	config   DispatcherConfig
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(renderer *report.Renderer, registry *channel.Registry, config DispatcherConfig) *Dispatcher {
	if config.SendTimeout == 0 {
		config.SendTimeout = DefaultDispatcherConfig().SendTimeout
	}
	return &Dispatcher{renderer: renderer, registry: registry, config: config}
}

// Dispatch delivers a report to one destination chat. The outcome is
// always classified; err carries the cause for OutcomeDeliveryFailed.
func (d *Dispatcher) Dispatch(ctx context.Context, kind domain.ChannelKind, chatID string, rep *domain.Report) (DeliveryOutcome, error) {
	client, ok := d.registry.Resolve(kind)
	if !ok {
		slog.Warn("no client registered for channel kind",
			"channel_kind", kind,
		)
		return OutcomeChannelUnavailable, nil
	}

	text, err := d.renderer.Render(kind, rep)
	if err != nil {
		return OutcomeDeliveryFailed, fmt.Errorf("render report: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.config.SendTimeout)
	defer cancel()

	started := time.Now()
	err = client.Send(sendCtx, channel.Message{ChatID: chatID, Text: text})
	recordDispatchDuration(string(kind), time.Since(started))

	if err != nil {
		return OutcomeDeliveryFailed, fmt.Errorf("send to %s: %w", kind, err)
	}

	return OutcomeDelivered, nil
}
