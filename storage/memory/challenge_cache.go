package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/chainsona/cpop-sub001/siws"
)

// ChallengeCache stores pending server-issued challenges in memory.
// This is only suitable for single-node deployments or local development.
type ChallengeCache struct {
	mu     sync.RWMutex
	data   map[string]challengeEntry
	issued map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
}

type challengeEntry struct {
	data      siws.ChallengeData
	expiresAt time.Time
}

// NewChallengeCache creates an in-memory challenge cache whose entries live for ttl.
func NewChallengeCache(ttl time.Duration) *ChallengeCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ChallengeCache{
		data:   make(map[string]challengeEntry),
		issued: make(map[string]time.Time),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (c *ChallengeCache) Put(ctx context.Context, nonce string, data siws.ChallengeData) error {
	exp := c.now().Add(c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[nonce] = challengeEntry{data: data, expiresAt: exp}
	c.issued[nonce] = data.RedeemUntil(exp)
	return nil
}

func (c *ChallengeCache) Get(ctx context.Context, nonce string) (siws.ChallengeData, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.data[nonce]
	if !ok || !c.now().Before(entry.expiresAt) {
		return siws.ChallengeData{}, false, nil
	}
	return entry.data, true, nil
}

func (c *ChallengeCache) Take(ctx context.Context, nonce string) (siws.ChallengeData, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	entry, ok := c.data[nonce]
	delete(c.data, nonce)
	if ok && now.Before(entry.expiresAt) {
		return entry.data, true, nil
	}
	if until, ok := c.issued[nonce]; ok && now.Before(until) {
		return siws.ChallengeData{}, false, siws.ErrChallengeRedeemed
	}
	return siws.ChallengeData{}, false, nil
}

func (c *ChallengeCache) Del(ctx context.Context, nonce string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, nonce)
	return nil
}

// Start removes expired entries every interval until ctx is done.
func (c *ChallengeCache) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.cleanup()
			}
		}
	}()
}

func (c *ChallengeCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, v := range c.data {
		if !now.Before(v.expiresAt) {
			delete(c.data, k)
		}
	}
	for k, until := range c.issued {
		if !now.Before(until) {
			delete(c.issued, k)
		}
	}
}

var _ siws.ChallengeCache = (*ChallengeCache)(nil)
