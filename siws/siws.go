// Package siws implements Sign In With Solana (SIWS) authentication.
// A wallet proves ownership of its Ed25519 key by signing a structured challenge
// message; the signed challenge is then carried as an opaque bearer token.
package siws

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Version is the protocol version tag written into every challenge.
const Version = "1"

// DefaultStatement is the fixed sentence a wallet is asked to sign.
const DefaultStatement = "Sign in to POP to prove you own this wallet. This request will not trigger a blockchain transaction or cost any fees."

// DefaultChallengeWindow is how long a signed challenge stays usable as a bearer credential.
const DefaultChallengeWindow = 7 * 24 * time.Hour

// LegacyChallengeWindow is the window used by earlier protocol revisions.
const LegacyChallengeWindow = 30 * time.Minute

// timeLayout renders instants the way browsers do (Date.prototype.toISOString).
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// ChallengeMessage is the structured payload a wallet signs.
// Values are immutable once built; a new sign-in always builds a new message.
type ChallengeMessage struct {
	Domain         string   `json:"domain"`
	Address        string   `json:"address"`
	Statement      string   `json:"statement"`
	URI            *string  `json:"uri,omitempty"`
	Version        string   `json:"version"`
	ChainID        *string  `json:"chainId,omitempty"`
	Nonce          string   `json:"nonce"`
	IssuedAt       string   `json:"issuedAt"`
	NotBefore      string   `json:"notBefore,omitempty"`
	ExpirationTime string   `json:"expirationTime"`
	RequestID      *string  `json:"requestId,omitempty"`
	Resources      []string `json:"resources,omitempty"`
}

// ChallengeData is stored server-side for challenges issued by the backend.
type ChallengeData struct {
	Address   string           `json:"address"`
	IssuedAt  time.Time        `json:"issued_at"`
	ExpiresAt time.Time        `json:"expires_at"`
	Message   ChallengeMessage `json:"message"`
}

// ErrChallengeRedeemed is returned by ChallengeCache.Take for a nonce the server issued
// that was already redeemed or outlived its redemption window.
var ErrChallengeRedeemed = errors.New("challenge already redeemed or expired")

// ChallengeCache stores pending server-issued challenges keyed by nonce.
type ChallengeCache interface {
	Put(ctx context.Context, nonce string, data ChallengeData) error
	Get(ctx context.Context, nonce string) (ChallengeData, bool, error)
	// Take atomically redeems nonce. found is false for nonces the server never issued;
	// a nonce issued before and no longer redeemable yields ErrChallengeRedeemed until
	// the challenge message itself expires.
	Take(ctx context.Context, nonce string) (data ChallengeData, found bool, err error)
	Del(ctx context.Context, nonce string) error
}

// RedeemUntil is how long a nonce must stay known as issued: the later of the
// challenge message expiry and fallback.
func (d ChallengeData) RedeemUntil(fallback time.Time) time.Time {
	exp, err := d.Message.Expiry()
	if err != nil || exp.Before(fallback) {
		return fallback
	}
	return exp
}

// FormatTime renders t in the challenge timestamp format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime parses a challenge timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// Base58ToPublicKey decodes a base58-encoded Solana address to an Ed25519 public key.
func Base58ToPublicKey(address string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("base58 decode failed: %w", err)
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key length: got %d, want %d", len(decoded), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(decoded), nil
}

// PublicKeyToBase58 encodes an Ed25519 public key to a base58 Solana address.
func PublicKeyToBase58(pubKey ed25519.PublicKey) string {
	return base58.Encode(pubKey)
}

// ValidateAddress checks if a string is a valid Solana address.
func ValidateAddress(address string) error {
	_, err := Base58ToPublicKey(address)
	return err
}

// IsOnCurve reports whether address decodes to a valid point on the Ed25519 curve.
// Program-derived addresses are deliberately off-curve and report false.
func IsOnCurve(address string) bool {
	pub, err := Base58ToPublicKey(address)
	if err != nil {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(pub)
	return err == nil
}
