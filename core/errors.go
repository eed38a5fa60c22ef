package core

import (
	"errors"
	"fmt"

	"github.com/chainsona/cpop-sub001/siws"
)

var (
	ErrMissingToken      = errors.New("missing authentication token")
	ErrMalformedToken    = siws.ErrMalformedToken
	ErrExpiredChallenge  = siws.ErrChallengeExpired
	ErrSignatureMismatch = errors.New("signature does not match address")
	ErrIdentityMismatch  = errors.New("session wallet mismatch")
	ErrTransientNetwork  = errors.New("transient network failure")
	ErrChallengeNotFound = errors.New("challenge not found or expired")
	ErrChallengeRedeemed = siws.ErrChallengeRedeemed
)

// AuthError carries redacted diagnostics for a failed authentication.
// It never holds the full signature or nonce.
type AuthError struct {
	Kind            error
	Address         string
	NoncePrefix     string
	SignatureLen    int
	SignaturePrefix string
}

func (e *AuthError) Error() string {
	msg := e.Kind.Error()
	if e.Address != "" {
		msg += fmt.Sprintf(" (address=%s", e.Address)
		if e.NoncePrefix != "" {
			msg += " nonce=" + e.NoncePrefix + "…"
		}
		if e.SignatureLen > 0 {
			msg += fmt.Sprintf(" sig_len=%d sig=%s…", e.SignatureLen, e.SignaturePrefix)
		}
		msg += ")"
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Kind }

func newAuthError(kind error, tok siws.Token) *AuthError {
	e := &AuthError{Kind: kind}
	if tok.Challenge != nil {
		e.Address = tok.Challenge.Address()
		e.NoncePrefix = prefix(tok.Challenge.Nonce(), 8)
	}
	if tok.Signature != "" {
		e.SignatureLen = len(tok.Signature)
		e.SignaturePrefix = prefix(tok.Signature, 8)
	}
	return e
}

// UserMessage is the only text about an auth failure that should reach end users.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrIdentityMismatch) {
		return "connected wallet differs from the signed-in wallet"
	}
	return "authentication failed, please try again"
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
