package memorystore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chainsona/cpop-sub001/siws"
	"github.com/stretchr/testify/require"
)

func TestKV_TTL(t *testing.T) {
	clk := newTestClock()
	kv := NewKVWithClock(clk.Now)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", []byte("v"), time.Second))
	require.NoError(t, kv.Set(ctx, "forever", []byte("x"), 0))

	v, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", string(v))

	clk.Advance(time.Second)
	_, ok, _ = kv.Get(ctx, "k")
	require.False(t, ok)
	_, ok, _ = kv.Get(ctx, "forever")
	require.True(t, ok)

	require.NoError(t, kv.Del(ctx, "forever"))
	require.Zero(t, kv.Len())
}

func TestChallengeCache_TTL(t *testing.T) {
	clk := newTestClock()
	c := NewChallengeCache(10 * time.Minute)
	c.now = clk.Now
	ctx := context.Background()

	data := siws.ChallengeData{Address: "addr", ExpiresAt: clk.Now().Add(time.Hour)}
	require.NoError(t, c.Put(ctx, "n1", data))

	got, ok, err := c.Get(ctx, "n1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "addr", got.Address)

	clk.Advance(10 * time.Minute)
	_, ok, _ = c.Get(ctx, "n1")
	require.False(t, ok)

	c.cleanup()
	require.Empty(t, c.data)
}

func TestChallengeCache_TakeOnce(t *testing.T) {
	clk := newTestClock()
	c := NewChallengeCache(10 * time.Minute)
	c.now = clk.Now
	ctx := context.Background()

	msg, err := siws.BuildChallenge("addr", "example.com", siws.WithClock(clk.Now))
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, msg.Nonce, siws.ChallengeData{Address: "addr", Message: msg}))

	got, ok, err := c.Take(ctx, msg.Nonce)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "addr", got.Address)

	_, ok, err = c.Take(ctx, msg.Nonce)
	require.ErrorIs(t, err, siws.ErrChallengeRedeemed)
	require.False(t, ok)

	// Past the redemption window but before the message expires, the nonce stays known.
	require.NoError(t, c.Put(ctx, "late", siws.ChallengeData{Address: "addr", Message: msg}))
	clk.Advance(time.Hour)
	_, _, err = c.Take(ctx, "late")
	require.ErrorIs(t, err, siws.ErrChallengeRedeemed)

	_, ok, err = c.Take(ctx, "never-issued")
	require.NoError(t, err)
	require.False(t, ok)

	clk.Advance(siws.DefaultChallengeWindow)
	c.cleanup()
	require.Empty(t, c.issued)
	_, _, err = c.Take(ctx, msg.Nonce)
	require.NoError(t, err)
}

func TestChallengeCache_TakeConcurrent(t *testing.T) {
	c := NewChallengeCache(time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "n", siws.ChallengeData{Address: "addr"}))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := c.Take(ctx, "n"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins.Load())
}

func TestRateLimiter_AllowNamed(t *testing.T) {
	rl := NewRateLimiter(map[string]Limit{
		"login": {Limit: 2, Window: time.Hour},
	})
	for i := 0; i < 2; i++ {
		ok, err := rl.AllowNamed("login", "ip-1")
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, _ := rl.AllowNamed("login", "ip-1")
	require.False(t, ok)

	ok, _ = rl.AllowNamed("login", "ip-2")
	require.True(t, ok)

	ok, _ = rl.AllowNamed("unknown", "ip-1")
	require.True(t, ok)
}
