package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chainsona/cpop-sub001/siws"
	"github.com/redis/go-redis/v9"
)

const (
	challengePrefix = "cpop:siws:challenge:"
	issuedPrefix    = "cpop:siws:issued:"
)

// ChallengeCache stores pending challenges as JSON with a Redis TTL.
type ChallengeCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewChallengeCache(rdb redis.UniversalClient, ttl time.Duration) *ChallengeCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ChallengeCache{rdb: rdb, ttl: ttl}
}

func (c *ChallengeCache) Put(ctx context.Context, nonce string, data siws.ChallengeData) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	ttl := c.ttl
	if !data.ExpiresAt.IsZero() {
		if until := time.Until(data.ExpiresAt); until > 0 && until < ttl {
			ttl = until
		}
	}
	// The issued marker outlives the challenge so a redeemed nonce is recognised until its
	// message expires.
	marker := time.Until(data.RedeemUntil(time.Now().Add(ttl)))
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, challengePrefix+nonce, b, ttl)
		pipe.Set(ctx, issuedPrefix+nonce, 1, marker)
		return nil
	})
	return err
}

func (c *ChallengeCache) Get(ctx context.Context, nonce string) (siws.ChallengeData, bool, error) {
	b, err := c.rdb.Get(ctx, challengePrefix+nonce).Bytes()
	if errors.Is(err, redis.Nil) {
		return siws.ChallengeData{}, false, nil
	}
	if err != nil {
		return siws.ChallengeData{}, false, err
	}
	var data siws.ChallengeData
	if err := json.Unmarshal(b, &data); err != nil {
		return siws.ChallengeData{}, false, fmt.Errorf("unmarshal challenge: %w", err)
	}
	return data, true, nil
}

// Take redeems nonce with GETDEL so concurrent logins cannot both win.
func (c *ChallengeCache) Take(ctx context.Context, nonce string) (siws.ChallengeData, bool, error) {
	b, err := c.rdb.GetDel(ctx, challengePrefix+nonce).Bytes()
	if errors.Is(err, redis.Nil) {
		n, err := c.rdb.Exists(ctx, issuedPrefix+nonce).Result()
		if err != nil {
			return siws.ChallengeData{}, false, err
		}
		if n > 0 {
			return siws.ChallengeData{}, false, siws.ErrChallengeRedeemed
		}
		return siws.ChallengeData{}, false, nil
	}
	if err != nil {
		return siws.ChallengeData{}, false, err
	}
	var data siws.ChallengeData
	if err := json.Unmarshal(b, &data); err != nil {
		return siws.ChallengeData{}, false, fmt.Errorf("unmarshal challenge: %w", err)
	}
	return data, true, nil
}

func (c *ChallengeCache) Del(ctx context.Context, nonce string) error {
	return c.rdb.Del(ctx, challengePrefix+nonce).Err()
}

var _ siws.ChallengeCache = (*ChallengeCache)(nil)
