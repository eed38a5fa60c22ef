package memorystore

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limit configures one named bucket: Limit events per Window.
type Limit struct {
	Limit  int
	Window time.Duration
}

// RateLimiter keeps a token bucket per key. Buckets not listed in limits use "default";
// when there is no default the bucket is unlimited.
type RateLimiter struct {
	limits map[string]Limit

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewRateLimiter(limits map[string]Limit) *RateLimiter {
	cp := make(map[string]Limit, len(limits))
	for k, v := range limits {
		cp[k] = v
	}
	return &RateLimiter{limits: cp, limiters: make(map[string]*rate.Limiter)}
}

// AllowNamed reports whether one more event for key is allowed under bucket's limit.
func (l *RateLimiter) AllowNamed(bucket, key string) (bool, error) {
	lim, ok := l.limits[bucket]
	if !ok {
		lim, ok = l.limits["default"]
	}
	if !ok || lim.Limit <= 0 || lim.Window <= 0 {
		return true, nil
	}

	l.mu.Lock()
	rl, ok := l.limiters[key]
	if !ok {
		rl = rate.NewLimiter(rate.Every(lim.Window/time.Duration(lim.Limit)), lim.Limit)
		l.limiters[key] = rl
	}
	l.mu.Unlock()
	return rl.Allow(), nil
}
