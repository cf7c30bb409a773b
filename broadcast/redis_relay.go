package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"face-match-system/logging"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisRelay fans events out across instances via a Redis channel.
// Every instance, the publisher included, delivers received events to its own hub.
type RedisRelay struct {
	client  redis.UniversalClient
	channel string
	hub     *Hub
	logger  *zap.Logger

	mu     sync.Mutex
	sub    *redis.PubSub
	done   chan struct{}
	active bool
}

var _ Broadcaster = (*RedisRelay)(nil)

func NewRedisRelay(client redis.UniversalClient, channel string, hub *Hub, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		hub:     hub,
		logger:  logging.OrNop(logger),
	}
}

// Start subscribes and begins relaying. It returns once the subscription is confirmed.
func (r *RedisRelay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return nil
	}

	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	r.sub = sub
	r.done = make(chan struct{})
	r.active = true
	go r.relay(sub.Channel(), r.done)

	r.logger.Info("broadcast relay subscribed", zap.String("channel", r.channel))
	return nil
}

func (r *RedisRelay) relay(msgs <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for msg := range msgs {
		n := r.hub.Deliver([]byte(msg.Payload))
		r.logger.Debug("relayed broadcast", zap.Int("delivered", n))
	}
}

// Broadcast publishes ev. If Redis is unavailable the event is delivered locally only.
func (r *RedisRelay) Broadcast(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.logger.Error("encode broadcast event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}

	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.logger.Warn("broadcast publish failed, delivering locally", zap.Error(err))
		r.hub.Deliver(payload)
	}
}

// Close unsubscribes and waits for the relay loop to exit.
func (r *RedisRelay) Close() error {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return nil
	}
	sub, done := r.sub, r.done
	r.active = false
	r.mu.Unlock()

	err := sub.Close()
	<-done
	return err
}
