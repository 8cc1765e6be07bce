package guard

import (
	"context"
	"fmt"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// RedisGuard is a fixed-window failure counter (INCR + EXPIRE) shared across
// replicas.
type RedisGuard struct {
	client *rdb.Client
	prefix string
	max    int64
	window time.Duration
}

// NewRedisGuard returns a guard that blocks a key after max failures within
// the window, counting in redis under the given prefix.
func NewRedisGuard(client *rdb.Client, prefix string, max int, window time.Duration) *RedisGuard {
	if prefix == "" {
		prefix = "authfail:"
	}
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisGuard{client: client, prefix: prefix, max: int64(max), window: window}
}

func (g *RedisGuard) key(key string, now time.Time) string {
	winStart := now.Truncate(g.window)
	return fmt.Sprintf("%s%s:%d", g.prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())
}

func (g *RedisGuard) CheckAllowed(ctx context.Context, key string) (bool, error) {
	n, err := g.client.Get(ctx, g.key(key, time.Now().UTC())).Int64()
	if err != nil {
		if err == rdb.Nil {
			return true, nil
		}
		return false, err
	}
	return n < g.max, nil
}

func (g *RedisGuard) ReportFailure(ctx context.Context, key string) error {
	k := g.key(key, time.Now().UTC())
	n, err := g.client.Incr(ctx, k).Result()
	if err != nil {
		return err
	}
	// set expiry on first hit
	if n == 1 {
		return g.client.Expire(ctx, k, g.window).Err()
	}
	return nil
}

func (g *RedisGuard) ReportSuccess(ctx context.Context, key string) error {
	return g.client.Del(ctx, g.key(key, time.Now().UTC())).Err()
}
