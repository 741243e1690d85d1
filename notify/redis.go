package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"vehicle-service-server/logger"
	"vehicle-service-server/models"
)

// RedisPublisher publishes events as JSON on a Redis channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, event models.LifecycleEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// RedisRelay subscribes to the event channel and hands every event to a
// local sink, normally the websocket hub.
type RedisRelay struct {
	client  *redis.Client
	channel string
	sink    Sink
}

func NewRedisRelay(client *redis.Client, channel string, sink Sink) *RedisRelay {
	return &RedisRelay{client: client, channel: channel, sink: sink}
}

// Run blocks until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	logger.Info("📡 Relaying lifecycle events from Redis", zap.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(ctx, []byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) handle(ctx context.Context, payload []byte) {
	var event models.LifecycleEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		logger.Warn("Dropping malformed lifecycle event", zap.Error(err))
		return
	}
	if err := r.sink.Publish(ctx, event); err != nil {
		logger.Warn("Relay sink failed", zap.String("type", event.Type), zap.Error(err))
	}
}
