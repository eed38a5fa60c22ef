package wallet

import (
	"context"
	"errors"
	"time"

	core "github.com/chainsona/cpop-sub001/core"
	"github.com/chainsona/cpop-sub001/siws"
	log "github.com/sirupsen/logrus"
)

// Slot is one place a token can live. Get reports ok=false for an empty slot.
type Slot interface {
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, token string, expiry time.Time) error
	Clear(ctx context.Context) error
}

// TokenStore keeps the durable cookie slot and the ephemeral local slot in sync.
// The cookie wins whenever the two disagree.
type TokenStore struct {
	cookie Slot
	local  Slot
	log    *log.Entry
	now    func() time.Time
}

func NewTokenStore(cookie, local Slot) *TokenStore {
	return &TokenStore{
		cookie: cookie,
		local:  local,
		log:    log.WithField("component", "wallet.token_store"),
		now:    time.Now,
	}
}

// Persist writes token into every empty slot. Slots already holding a value are left alone.
func (s *TokenStore) Persist(ctx context.Context, token string, expiry time.Time) error {
	if token == "" {
		return errors.New("wallet: empty token")
	}
	var errs []error
	for _, slot := range []Slot{s.cookie, s.local} {
		if _, ok := s.get(ctx, slot); ok {
			continue
		}
		if err := slot.Set(ctx, token, expiry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Read returns the current token, preferring the cookie, and mirrors it into the other slot.
func (s *TokenStore) Read(ctx context.Context) (string, bool) {
	c, cok := s.get(ctx, s.cookie)
	l, lok := s.get(ctx, s.local)

	switch {
	case cok && (!lok || l != c):
		s.mirror(ctx, s.local, c)
		return c, true
	case cok:
		return c, true
	case lok:
		s.mirror(ctx, s.cookie, l)
		return l, true
	default:
		return "", false
	}
}

// Clear empties both slots. Safe to call repeatedly.
func (s *TokenStore) Clear(ctx context.Context) error {
	return errors.Join(s.cookie.Clear(ctx), s.local.Clear(ctx))
}

func (s *TokenStore) get(ctx context.Context, slot Slot) (string, bool) {
	v, ok, err := slot.Get(ctx)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("token slot read failed")
		return "", false
	}
	return v, ok && v != ""
}

func (s *TokenStore) mirror(ctx context.Context, dst Slot, token string) {
	if err := dst.Set(ctx, token, s.expiryOf(token)); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("token slot mirror failed")
	}
}

// expiryOf reads the challenge expiry from token, falling back to the default window.
func (s *TokenStore) expiryOf(token string) time.Time {
	if tok, err := siws.DecodeToken(token); err == nil {
		if exp, ok := tok.Challenge.Expiry(); ok {
			return exp
		}
	}
	return s.now().Add(siws.DefaultChallengeWindow)
}

const localTokenKey = "solana_auth_token"

// LocalSlot stores the token in an ephemeral key-value store.
type LocalSlot struct {
	store core.EphemeralStore
	key   string
	now   func() time.Time
}

func NewLocalSlot(store core.EphemeralStore) *LocalSlot {
	return &LocalSlot{store: store, key: localTokenKey, now: time.Now}
}

func (l *LocalSlot) Get(ctx context.Context) (string, bool, error) {
	b, ok, err := l.store.Get(ctx, l.key)
	if err != nil || !ok {
		return "", false, err
	}
	return string(b), true, nil
}

func (l *LocalSlot) Set(ctx context.Context, token string, expiry time.Time) error {
	ttl := expiry.Sub(l.now())
	if ttl <= 0 {
		return l.store.Del(ctx, l.key)
	}
	return l.store.Set(ctx, l.key, []byte(token), ttl)
}

func (l *LocalSlot) Clear(ctx context.Context) error { return l.store.Del(ctx, l.key) }
