package authhttp

import (
	"context"
	"time"

	core "github.com/chainsona/cpop-sub001/core"
)

// Wallet is the authenticated identity attached to the request context by the middleware.
type Wallet struct {
	Address   string    `json:"address"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	// Relaxed is true when the signature was accepted without Ed25519 proof.
	Relaxed bool `json:"relaxed,omitempty"`
}

// WalletFromIdentity converts a verified core identity for responses and context.
func WalletFromIdentity(id core.Identity) Wallet {
	return Wallet{Address: id.Address, IssuedAt: id.IssuedAt, ExpiresAt: id.ExpiresAt, Relaxed: id.Relaxed}
}

type walletCtxKey struct{}

// ContextWithWallet attaches w so WalletFromContext can find it.
func ContextWithWallet(ctx context.Context, w Wallet) context.Context {
	return context.WithValue(ctx, walletCtxKey{}, w)
}

// WalletFromContext returns the wallet set by Required or Optional.
func WalletFromContext(ctx context.Context) (Wallet, bool) {
	w, ok := ctx.Value(walletCtxKey{}).(Wallet)
	return w, ok
}
