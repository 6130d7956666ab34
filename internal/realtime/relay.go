package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Yetunde495/mentorr-me/pkg/chatwire"
)

// Broadcaster publishes envelopes onto a conversation channel. The delivery
// pipeline only needs this half; fan-out failures are non-fatal to senders.
type Broadcaster interface {
	Publish(ctx context.Context, env chatwire.Envelope) error
}

// Relay is the hosted pub/sub boundary. A hub subscribes to the channels it
// has local members for; every instance attached to the same relay sees the
// same events, so multi-instance behaves like single-instance.
type Relay interface {
	Broadcaster
	Subscribe(ctx context.Context, channel string) error
	Unsubscribe(ctx context.Context, channel string) error
}

// RedisRelay implements Relay over Redis PUB/SUB.
type RedisRelay struct {
	client *redis.Client
	pubsub *redis.PubSub
	logger *zap.Logger
}

func NewRedisRelay(client *redis.Client, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{
		client: client,
		pubsub: client.Subscribe(context.Background()),
		logger: logger,
	}
}

func (r *RedisRelay) Publish(ctx context.Context, env chatwire.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, env.Channel, payload).Err()
}

func (r *RedisRelay) Subscribe(ctx context.Context, channel string) error {
	return r.pubsub.Subscribe(ctx, channel)
}

func (r *RedisRelay) Unsubscribe(ctx context.Context, channel string) error {
	return r.pubsub.Unsubscribe(ctx, channel)
}

// Listen pumps relay messages into deliver until ctx is cancelled. Malformed
// payloads are dropped with a log line; they must never reach client state.
func (r *RedisRelay) Listen(ctx context.Context, deliver func(chatwire.Envelope)) {
	ch := r.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env chatwire.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Warn("relay: dropping malformed envelope",
					zap.String("channel", msg.Channel),
					zap.Error(err),
				)
				continue
			}
			deliver(env)
		}
	}
}

func (r *RedisRelay) Close() error {
	return r.pubsub.Close()
}

// LocalRelay is an in-process Relay used by tests and single-node setups
// without Redis. Publish delivers synchronously to the attached sink.
type LocalRelay struct {
	mu       sync.RWMutex
	channels map[string]struct{}
	sink     func(chatwire.Envelope)
}

func NewLocalRelay() *LocalRelay {
	return &LocalRelay{channels: make(map[string]struct{})}
}

// Attach sets the delivery sink. A hub attaches its Deliver method.
func (l *LocalRelay) Attach(sink func(chatwire.Envelope)) {
	l.mu.Lock()
	l.sink = sink
	l.mu.Unlock()
}

func (l *LocalRelay) Publish(_ context.Context, env chatwire.Envelope) error {
	l.mu.RLock()
	_, subscribed := l.channels[env.Channel]
	sink := l.sink
	l.mu.RUnlock()

	if subscribed && sink != nil {
		sink(env)
	}
	return nil
}

func (l *LocalRelay) Subscribe(_ context.Context, channel string) error {
	l.mu.Lock()
	l.channels[channel] = struct{}{}
	l.mu.Unlock()
	return nil
}

func (l *LocalRelay) Unsubscribe(_ context.Context, channel string) error {
	l.mu.Lock()
	delete(l.channels, channel)
	l.mu.Unlock()
	return nil
}
