package memorystore

import (
	"context"
	"sync"
	"time"
)

// DefaultValidationTTL is how long a structural verdict is reused.
const DefaultValidationTTL = 60 * time.Second

type validationEntry struct {
	valid     bool
	checkedAt time.Time
}

// ValidationCache memoizes the structural validity of raw tokens for a short TTL.
// It never caches signature verification.
type ValidationCache struct {
	ttl      time.Duration
	interval time.Duration
	validate func(string) bool
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]validationEntry

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	started  bool
}

// ValidationCacheOption configures a ValidationCache.
type ValidationCacheOption func(*ValidationCache)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ValidationCacheOption {
	return func(c *ValidationCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSweepInterval sets how often Start sweeps stale entries. Defaults to the TTL.
func WithSweepInterval(d time.Duration) ValidationCacheOption {
	return func(c *ValidationCache) {
		if d > 0 {
			c.interval = d
		}
	}
}

// NewValidationCache wraps validate, which is typically siws.ValidateStructure bound to a clock.
func NewValidationCache(ttl time.Duration, validate func(string) bool, opts ...ValidationCacheOption) *ValidationCache {
	if ttl <= 0 {
		ttl = DefaultValidationTTL
	}
	c := &ValidationCache{
		ttl:      ttl,
		interval: ttl,
		validate: validate,
		now:      time.Now,
		entries:  make(map[string]validationEntry),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// IsStructurallyValid returns the cached verdict for token if it is younger than the TTL,
// otherwise it recomputes and stores a new one. Concurrent misses may both compute; the
// last write wins and both results are identical.
func (c *ValidationCache) IsStructurallyValid(token string) bool {
	now := c.now()
	c.mu.Lock()
	e, ok := c.entries[token]
	c.mu.Unlock()
	if ok && now.Sub(e.checkedAt) < c.ttl {
		return e.valid
	}

	valid := c.validate != nil && c.validate(token)

	c.mu.Lock()
	c.entries[token] = validationEntry{valid: valid, checkedAt: now}
	c.mu.Unlock()
	return valid
}

// Invalidate drops any verdict for token.
func (c *ValidationCache) Invalidate(token string) {
	c.mu.Lock()
	delete(c.entries, token)
	c.mu.Unlock()
}

// Sweep removes every entry older than the TTL and returns how many were removed.
func (c *ValidationCache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if now.Sub(e.checkedAt) >= c.ttl {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries.
func (c *ValidationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Start runs the periodic sweep until ctx is done or Close is called.
// Calling Start more than once has no effect.
func (c *ValidationCache) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

// Close stops the sweeper started by Start and waits for it to exit.
func (c *ValidationCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if started {
		<-c.done
	}
}
