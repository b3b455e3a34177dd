package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher fans events out through Redis pub/sub so every instance's
// hub can deliver to its own connections.
type RedisPublisher struct {
	client redisPublisher
	prefix string
}

func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, event Event, excludeConnID string) error {
	encoded, err := json.Marshal(event)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(Envelope{Exclude: excludeConnID, Event: encoded})
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, redisChannel(p.prefix, channel), payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

func redisChannel(prefix, channel string) string {
	return prefix + ":" + channel
}

// Subscriber relays Redis pub/sub traffic into a local Hub.
type Subscriber struct {
	client *redis.Client
	prefix string
	hub    *Hub
	logger *zap.Logger
}

func NewSubscriber(client *redis.Client, prefix string, hub *Hub, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{client: client, prefix: prefix, hub: hub, logger: logger}
}

// Run subscribes until ctx is cancelled, resubscribing with backoff when the
// connection drops.
func (s *Subscriber) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	b.MaxInterval = 30 * time.Second

	operation := func() error {
		err := s.consume(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		s.logger.Warn("redis subscription ended, retrying", zap.Error(err))
		return err
	}
	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Subscriber) consume(ctx context.Context) error {
	pubsub := s.client.PSubscribe(ctx, redisChannel(s.prefix, "*"))
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe: %w", err)
	}
	s.logger.Info("redis subscription active", zap.String("prefix", s.prefix))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("subscription channel closed")
			}
			s.relay(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (s *Subscriber) relay(redisChan string, payload []byte) {
	channel := strings.TrimPrefix(redisChan, s.prefix+":")
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		s.logger.Warn("invalid envelope", zap.String("channel", channel), zap.Error(err))
		return
	}
	s.hub.Deliver(channel, env.Exclude, env.Event)
}
