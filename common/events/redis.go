package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
)

// RedisPublisher publishes events to Redis pub/sub channels named
// missions:events:<project>. Listeners subscribe with the pattern
// missions:events:* and demultiplex by channel suffix.
type RedisPublisher struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisPublisher connects to the Redis at url and verifies the
// connection with a ping
func NewRedisPublisher(ctx context.Context, url string, log *logger.Logger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info("redis event publisher connected", "addr", opts.Addr)
	return &RedisPublisher{client: client, log: log}, nil
}

// Publish sends the encoded event to the project's channel
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := event.Encode()
	if err != nil {
		return err
	}

	channel := ChannelFor(event.Project)
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", channel, err)
	}

	p.log.Debug("published event", "channel", channel, "event", event.Event)
	return nil
}

// Close releases the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
