package realtime

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// LocalPresence answers from this instance's registry only.
type LocalPresence struct {
	registry *Registry
}

func NewLocalPresence(registry *Registry) *LocalPresence {
	return &LocalPresence{registry: registry}
}

func (p *LocalPresence) Connected(context.Context, string) error    { return nil }
func (p *LocalPresence) Disconnected(context.Context, string) error { return nil }

func (p *LocalPresence) Online(_ context.Context, uid string) (bool, error) {
	return p.registry.Online(uid), nil
}

// decrPresence drops the key once no instance holds a socket for the user.
var decrPresence = redis.NewScript(`
local n = redis.call("DECR", KEYS[1])
if n <= 0 then
	redis.call("DEL", KEYS[1])
end
return n
`)

// RedisPresence keeps a per-user count of instances holding a live socket.
type RedisPresence struct {
	rdb redis.UniversalClient
}

func NewRedisPresence(rdb redis.UniversalClient) *RedisPresence {
	return &RedisPresence{rdb: rdb}
}

func presenceKey(uid string) string {
	return "presence:" + uid
}

func (p *RedisPresence) Connected(ctx context.Context, uid string) error {
	return p.rdb.Incr(ctx, presenceKey(uid)).Err()
}

func (p *RedisPresence) Disconnected(ctx context.Context, uid string) error {
	return decrPresence.Run(ctx, p.rdb, []string{presenceKey(uid)}).Err()
}

func (p *RedisPresence) Online(ctx context.Context, uid string) (bool, error) {
	n, err := p.rdb.Get(ctx, presenceKey(uid)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
