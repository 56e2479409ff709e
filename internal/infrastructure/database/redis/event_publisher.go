// internal/infrastructure/database/redis/event_publisher.go
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/your-org/configurator-backend/internal/domain/cart"
)

// EventPublisher forwards cart events to Redis pub/sub, one channel per cart
type EventPublisher struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// NewEventPublisher creates a publisher using channels named prefix+cartID
func NewEventPublisher(client *redis.Client, prefix string) *EventPublisher {
	return &EventPublisher{
		client:  client,
		prefix:  prefix,
		timeout: 2 * time.Second,
	}
}

// Channel returns the channel events of cartID go to
func (p *EventPublisher) Channel(cartID string) string {
	return p.prefix + cartID
}

// OnEvent implements cart.Observer
func (p *EventPublisher) OnEvent(e cart.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.Channel(e.CartID), payload).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// OnSnapshot implements cart.Observer. Snapshots are persisted by the
// store, not broadcast.
func (p *EventPublisher) OnSnapshot(c *cart.Cart) error {
	return nil
}
