package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const relayRetryDelay = time.Second

// RedisRelay broadcasts envelopes over one redis pub/sub channel.
type RedisRelay struct {
	rdb     redis.UniversalClient
	channel string
	retry   time.Duration
	log     *slog.Logger
}

func NewRedisRelay(rdb redis.UniversalClient, channel string, log *slog.Logger) *RedisRelay {
	if log == nil {
		log = slog.Default()
	}
	return &RedisRelay{rdb: rdb, channel: channel, retry: relayRetryDelay, log: log.With("relay", "redis")}
}

func (r *RedisRelay) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return r.rdb.Publish(ctx, r.channel, payload).Err()
}

// Subscribe keeps a subscription open until ctx ends, resubscribing after
// a failed handshake so an unreachable redis only delays delivery.
func (r *RedisRelay) Subscribe(ctx context.Context, fn func(Envelope)) error {
	for {
		err := r.subscribe(ctx, fn)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			// subscription channel closed under us
			err = errors.New("subscription closed")
		}
		r.log.Warn("relay subscribe failed, retrying", "channel", r.channel, "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.retry):
		}
	}
}

func (r *RedisRelay) subscribe(ctx context.Context, fn func(Envelope)) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	// wait for the subscription to be confirmed before reporting ready
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.log.Info("relay subscribed", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				r.log.Warn("dropping malformed envelope", "error", err)
				continue
			}
			fn(env)
		}
	}
}

// Close is a no-op; the redis client is owned by the caller.
func (r *RedisRelay) Close() error {
	return nil
}
