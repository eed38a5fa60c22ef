package wallet

import (
	"context"
	"errors"
	"net/http/cookiejar"
	"sync"
	"testing"
	"time"

	memorystore "github.com/chainsona/cpop-sub001/storage/memory"
	"github.com/stretchr/testify/require"
)

type mapSlot struct {
	mu     sync.Mutex
	value  string
	sets   int
	clears int
	err    error
}

func (m *mapSlot) Get(context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	return m.value, m.value != "", nil
}

func (m *mapSlot) Set(_ context.Context, token string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = token
	m.sets++
	return nil
}

func (m *mapSlot) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = ""
	m.clears++
	return nil
}

func (m *mapSlot) has() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value != ""
}

func TestTokenStore_PersistBackfillsOnlyEmptySlots(t *testing.T) {
	ctx := context.Background()
	cookie, local := &mapSlot{}, &mapSlot{value: "old"}
	s := NewTokenStore(cookie, local)

	require.NoError(t, s.Persist(ctx, "new", time.Now().Add(time.Hour)))
	require.Equal(t, "new", cookie.value)
	require.Equal(t, "old", local.value)
	require.Equal(t, 0, local.sets)

	require.Error(t, s.Persist(ctx, "", time.Now()))
}

func TestTokenStore_ReadPrefersCookieAndMirrors(t *testing.T) {
	ctx := context.Background()
	cookie, local := &mapSlot{value: "c"}, &mapSlot{value: "l"}
	s := NewTokenStore(cookie, local)

	tok, ok := s.Read(ctx)
	require.True(t, ok)
	require.Equal(t, "c", tok)
	require.Equal(t, "c", local.value)

	// Agreeing slots are not rewritten.
	sets := local.sets
	_, _ = s.Read(ctx)
	require.Equal(t, sets, local.sets)
}

func TestTokenStore_ReadFallsBackToLocal(t *testing.T) {
	ctx := context.Background()
	cookie, local := &mapSlot{}, &mapSlot{value: "l"}
	s := NewTokenStore(cookie, local)

	tok, ok := s.Read(ctx)
	require.True(t, ok)
	require.Equal(t, "l", tok)
	require.Equal(t, "l", cookie.value)

	require.NoError(t, s.Clear(ctx))
	_, ok = s.Read(ctx)
	require.False(t, ok)
}

func TestTokenStore_SlotErrorTreatedAsEmpty(t *testing.T) {
	cookie, local := &mapSlot{err: errors.New("blocked")}, &mapSlot{value: "l"}
	tok, ok := NewTokenStore(cookie, local).Read(context.Background())
	require.True(t, ok)
	require.Equal(t, "l", tok)
}

func TestTokenStore_ClearIdempotent(t *testing.T) {
	ctx := context.Background()
	cookie, local := &mapSlot{value: "c"}, &mapSlot{value: "l"}
	s := NewTokenStore(cookie, local)
	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))
	require.False(t, cookie.has())
	require.False(t, local.has())
	require.Equal(t, 2, cookie.clears)
}

func TestTokenStore_CookieJarAndLocalKV(t *testing.T) {
	ctx := context.Background()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	cookie, err := NewCookieSlot(jar, "https://pop.example.com/app")
	require.NoError(t, err)
	local := NewLocalSlot(memorystore.NewKV())
	s := NewTokenStore(cookie, local)

	require.NoError(t, s.Persist(ctx, "tok-1", time.Now().Add(time.Hour)))
	v, ok, err := cookie.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok-1", v)
	v, ok, err = local.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok-1", v)

	// Another tab rewrote the cookie; the cookie wins and the local copy follows.
	require.NoError(t, cookie.Set(ctx, "tok-2", time.Now().Add(time.Hour)))
	tok, ok := s.Read(ctx)
	require.True(t, ok)
	require.Equal(t, "tok-2", tok)
	v, _, _ = local.Get(ctx)
	require.Equal(t, "tok-2", v)

	require.NoError(t, s.Clear(ctx))
	_, ok, _ = cookie.Get(ctx)
	require.False(t, ok)
	_, ok, _ = local.Get(ctx)
	require.False(t, ok)
}

func TestNewCookieSlot_RejectsRelativeOrigin(t *testing.T) {
	jar, _ := cookiejar.New(nil)
	_, err := NewCookieSlot(jar, "/relative")
	require.Error(t, err)
}

func TestMismatch(t *testing.T) {
	require.False(t, Mismatch("", ""))
	require.False(t, Mismatch("a", ""))
	require.False(t, Mismatch("", "b"))
	require.False(t, Mismatch("a", "a"))
	require.True(t, Mismatch("a", "b"))
	require.Equal(t, "authenticated_mismatched", StateAuthenticatedMismatched.String())
}
