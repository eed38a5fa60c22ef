package handlers

import (
	"context"
	"time"

	authhttp "github.com/chainsona/cpop-sub001/adapters/http"
	core "github.com/chainsona/cpop-sub001/core"
	"github.com/chainsona/cpop-sub001/siws"
)

// WalletAuth is the subset of *core.Service the handlers need.
type WalletAuth interface {
	IssueChallenge(ctx context.Context, address string) (siws.ChallengeMessage, error)
	Login(ctx context.Context, raw string) (core.Identity, error)
	Logout(ctx context.Context, address string)
	BindSession(ctx context.Context, sid, address string, issuedAt time.Time) error
	UnbindSession(ctx context.Context, sid string) error
}

// Config carries cookie attributes shared by login and logout.
type Config struct {
	Cookies authhttp.CookieConfig
}
