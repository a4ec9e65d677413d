package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"secure-escrow/internal/core/domain"
	"secure-escrow/internal/metrics"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const eventChannelPrefix = "escrow-events:"

// EventBus fans escrow events out over Redis pub/sub, one channel per escrow.
// It implements ports.EventPublisher and ports.EventSubscriber.
type EventBus struct {
	client *goredis.Client
	log    zerolog.Logger
	buffer int
}

// NewEventBus creates a Redis pub/sub event bus.
func NewEventBus(client *goredis.Client, log zerolog.Logger) *EventBus {
	return &EventBus{
		client: client,
		log:    log.With().Str("component", "event_bus").Logger(),
		buffer: 16,
	}
}

func eventChannel(escrowID uuid.UUID) string {
	return eventChannelPrefix + escrowID.String()
}

// Publish sends event to every current watcher of its escrow.
func (b *EventBus) Publish(ctx context.Context, event domain.EscrowEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal escrow event: %w", err)
	}
	if err := b.client.Publish(ctx, eventChannel(event.EscrowID), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe streams events for escrowID until ctx ends or cancel is called.
// The channel is closed once the subscription is released. Slow readers
// lose events rather than stall the relay.
func (b *EventBus) Subscribe(ctx context.Context, escrowID uuid.UUID) (<-chan domain.EscrowEvent, func(), error) {
	sub := b.client.Subscribe(ctx, eventChannel(escrowID))
	// Wait for the confirmation so no event published after Subscribe returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close() //nolint:errcheck
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	metrics.ActiveWatchers.Inc()

	out := make(chan domain.EscrowEvent, b.buffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			sub.Close() //nolint:errcheck
		})
	}

	go func() {
		defer close(out)
		defer metrics.ActiveWatchers.Dec()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev domain.EscrowEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed escrow event")
					continue
				}
				select {
				case out <- ev:
				default:
					b.log.Warn().Str("escrow_id", escrowID.String()).Msg("watcher too slow, event dropped")
				}
			}
		}
	}()

	return out, cancel, nil
}
