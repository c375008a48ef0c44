package observer

import (
	"context"
	"encoding/json"
	"time"

	"go-shelf-inspector/internal/logger"

	"github.com/redis/go-redis/v9"
)

// DefaultAlertChannel is the pub/sub channel alert events go to.
const DefaultAlertChannel = "shelf_alerts"

const publishTimeout = 2 * time.Second

// RedisObserver publishes alert events as JSON on a Redis channel so other
// systems (pagers, restocking tools) can react to them.
type RedisObserver struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisObserver wraps an existing client.
func NewRedisObserver(client redis.UniversalClient, channel string) *RedisObserver {
	if channel == "" {
		channel = DefaultAlertChannel
	}
	return &RedisObserver{client: client, channel: channel}
}

// OnEvent publishes alert events and ignores analysis lifecycle events.
func (o *RedisObserver) OnEvent(ctx context.Context, event ShelfEvent) {
	if !event.EventType.IsAlert() {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logger.WithError(err).Error("Failed to encode alert event")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := o.client.Publish(ctx, o.channel, payload).Err(); err != nil {
		logger.WithError(err).
			WithField("channel", o.channel).
			WithField("event_type", event.EventType).
			Warn("Failed to publish alert event")
	}
}

// GetObserverName returns the observer name
func (o *RedisObserver) GetObserverName() string {
	return "redis_observer"
}

// Channel returns the channel events are published on.
func (o *RedisObserver) Channel() string {
	return o.channel
}
