package live

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/pkg/redis"
)

const (
	channel        = "occurrence.counts"
	publishTimeout = 5 * time.Second
)

// RedisBus implements Bus with Redis pub/sub.
type RedisBus struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisBus creates a Redis bus.
func NewRedisBus(client *redis.Client, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{client: client, logger: logger}
}

// Publish sends m to every subscribed instance.
func (b *RedisBus) Publish(ctx context.Context, m Message) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return b.client.PublishJSON(ctx, channel, m)
}

// Subscribe blocks, calling fn for each message, until ctx is done.
func (b *RedisBus) Subscribe(ctx context.Context, fn func(Message)) error {
	pubsub := b.client.Subscribe(ctx, channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				b.logger.Warn("bad live message", zap.Error(err))
				continue
			}
			fn(m)
		}
	}
}
