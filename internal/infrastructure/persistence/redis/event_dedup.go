package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEBHOOK EVENT DEDUPLICATION
// The gateway delivers webhook events at least once. SET NX on the event
// id is the atomic first-delivery check; the TTL bounds memory while
// comfortably covering the gateway's redelivery window.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultEventTTL is how long a processed event id is remembered.
const DefaultEventTTL = 72 * time.Hour

// EventDeduplicator implements payment.EventDeduplicator over Redis.
type EventDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEventDeduplicator creates a new EventDeduplicator.
// A non-positive ttl falls back to DefaultEventTTL.
func NewEventDeduplicator(client *redis.Client, ttl time.Duration) *EventDeduplicator {
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}
	return &EventDeduplicator{client: client, ttl: ttl}
}

// MarkProcessed atomically marks an event as processed.
// Returns false if the event was already marked.
func (d *EventDeduplicator) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	first, err := d.client.SetNX(ctx, PrefixWebhookEvent+eventID, "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: mark event processed: %w", err)
	}
	return first, nil
}

// Unmark releases an event id so a gateway redelivery is processed again.
func (d *EventDeduplicator) Unmark(ctx context.Context, eventID string) error {
	if err := d.client.Del(ctx, PrefixWebhookEvent+eventID).Err(); err != nil {
		return fmt.Errorf("redis: unmark event: %w", err)
	}
	return nil
}
