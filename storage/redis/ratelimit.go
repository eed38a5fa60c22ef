package redisstore

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limit configures one named bucket: Limit events per Window.
type Limit struct {
	Limit  int
	Window time.Duration
}

// RateLimiter is a fixed-window counter shared across instances.
type RateLimiter struct {
	rdb     redis.UniversalClient
	limits  map[string]Limit
	timeout time.Duration
}

func NewRateLimiter(rdb redis.UniversalClient, limits map[string]Limit) *RateLimiter {
	cp := make(map[string]Limit, len(limits))
	for k, v := range limits {
		cp[k] = v
	}
	return &RateLimiter{rdb: rdb, limits: cp, timeout: 250 * time.Millisecond}
}

// AllowNamed increments key's counter for the current window.
func (l *RateLimiter) AllowNamed(bucket, key string) (bool, error) {
	lim, ok := l.limits[bucket]
	if !ok {
		lim, ok = l.limits["default"]
	}
	if !ok || lim.Limit <= 0 || lim.Window <= 0 {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	window := time.Now().UnixNano() / int64(lim.Window)
	rkey := "cpop:rl:" + key + ":" + strconv.FormatInt(window, 10)

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, rkey)
	pipe.Expire(ctx, rkey, lim.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= int64(lim.Limit), nil
}
