package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// A server session (identified by an opaque session id cookie) remembers which wallet
// signed in through it. The binding is what a dual-session check compares the token against.

type sessionBinding struct {
	Address  string    `json:"address"`
	BoundAt  time.Time `json:"bound_at"`
	IssuedAt time.Time `json:"issued_at"`
}

func sessionBindingKey(sid string) string { return "cpop:session:" + sid }

// BindSession records that sid is signed in as address.
func (s *Service) BindSession(ctx context.Context, sid, address string, issuedAt time.Time) error {
	sid = strings.TrimSpace(sid)
	if sid == "" || address == "" {
		return errors.New("session id and address required")
	}
	if s.ephemeralStore == nil {
		return errors.New("session store unavailable")
	}
	b, err := json.Marshal(sessionBinding{
		Address:  address,
		BoundAt:  s.now().UTC(),
		IssuedAt: issuedAt,
	})
	if err != nil {
		return err
	}
	return s.ephemeralStore.Set(ctx, sessionBindingKey(sid), b, s.opts.SessionBindingTTL)
}

// SessionWallet returns the wallet bound to sid, if any.
func (s *Service) SessionWallet(ctx context.Context, sid string) (string, bool, error) {
	if strings.TrimSpace(sid) == "" || s.ephemeralStore == nil {
		return "", false, nil
	}
	raw, ok, err := s.ephemeralStore.Get(ctx, sessionBindingKey(sid))
	if err != nil || !ok {
		return "", false, err
	}
	var b sessionBinding
	if err := json.Unmarshal(raw, &b); err != nil {
		return "", false, err
	}
	return b.Address, b.Address != "", nil
}

// UnbindSession forgets sid. Missing bindings are not an error.
func (s *Service) UnbindSession(ctx context.Context, sid string) error {
	if strings.TrimSpace(sid) == "" || s.ephemeralStore == nil {
		return nil
	}
	return s.ephemeralStore.Del(ctx, sessionBindingKey(sid))
}
