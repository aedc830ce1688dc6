// Package lock guards trade submission across bot instances with a Redis
// lease.
package lock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"flashArb/internal/model"
)

// releaseLua deletes the key only while it still holds the caller's token.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// Client is the Redis surface the guard uses. *redis.Client satisfies it.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

// Dial connects to Redis and pings it.
func Dial(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return rdb, nil
}

// Guard is a SETNX lease on one key.
type Guard struct {
	client  Client
	key     string
	ttl     time.Duration
	release *redis.Script
}

func NewGuard(client Client, key string, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Guard{client: client, key: key, ttl: ttl, release: redis.NewScript(releaseLua)}
}

// Key names the lease for a pair so bots trading other pairs do not contend.
func Key(pair model.Pair) string {
	return fmt.Sprintf("flasharb:lock:%s:%s:%d",
		strings.ToLower(pair.Token0.Address.Hex()), strings.ToLower(pair.Token1.Address.Hex()), pair.Fee)
}

// Acquire takes the lease or returns model.ErrLockHeld. The returned release
// func is idempotent and runs on a fresh context.
func (g *Guard) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire %s: %w", g.key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrLockHeld, g.key)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = g.release.Run(releaseCtx, g.client, []string{g.key}, token).Err()
	}, nil
}
