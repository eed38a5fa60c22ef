package authhttp

import (
	"time"

	memorystore "github.com/chainsona/cpop-sub001/storage/memory"
	redisstore "github.com/chainsona/cpop-sub001/storage/redis"
)

// RateLimiter is a minimal interface used by adapters.
type RateLimiter interface {
	AllowNamed(bucket string, key string) (bool, error)
}

// Bucket names used by the wallet auth endpoints.
const (
	RLSolanaChallenge = "auth_solana_challenge"
	RLSolanaLogin     = "auth_solana_login"
	RLSolanaSession   = "auth_solana_session"
	RLAuthLogout      = "auth_logout"
)

// Limit configures a named rate limit bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

// DefaultRateLimits returns the built-in per-endpoint rate limits.
//
// These limits are enforced per client IP (as determined by the Service's ClientIPFunc).
// Hosts can override by supplying their own limiter via WithRateLimiter(...).
func DefaultRateLimits() map[string]Limit {
	return map[string]Limit{
		"default": {Limit: 120, Window: time.Minute},

		RLSolanaChallenge: {Limit: 30, Window: 10 * time.Minute},
		RLSolanaLogin:     {Limit: 20, Window: 10 * time.Minute},
		RLSolanaSession:   {Limit: 120, Window: time.Minute},
		RLAuthLogout:      {Limit: 60, Window: 10 * time.Minute},
	}
}

func ToMemoryLimits(in map[string]Limit) map[string]memorystore.Limit {
	out := make(map[string]memorystore.Limit, len(in))
	for k, v := range in {
		out[k] = memorystore.Limit{Limit: v.Limit, Window: v.Window}
	}
	return out
}

func ToRedisLimits(in map[string]Limit) map[string]redisstore.Limit {
	out := make(map[string]redisstore.Limit, len(in))
	for k, v := range in {
		out[k] = redisstore.Limit{Limit: v.Limit, Window: v.Window}
	}
	return out
}
