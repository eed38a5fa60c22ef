// Package testing provides helpers for exercising wallet sign-in against a real server.
package testing

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"net/http/httptest"

	authhttp "github.com/chainsona/cpop-sub001/adapters/http"
	"github.com/chainsona/cpop-sub001/core"
	"github.com/chainsona/cpop-sub001/siws"
	"github.com/mr-tron/base58"
)

// TestWallet is an in-process Solana keypair that signs challenges like a browser wallet.
type TestWallet struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
	// HashBeforeSign signs sha256(message) instead of the raw bytes.
	HashBeforeSign bool
}

func NewTestWallet() (*TestWallet, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}
	return &TestWallet{pub: pub, priv: priv}, nil
}

func (w *TestWallet) Address() string { return siws.PublicKeyToBase58(w.pub) }

// Sign implements wallet.Signer.
func (w *TestWallet) Sign(ctx context.Context, message []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if w.HashBeforeSign {
		h := sha256.Sum256(message)
		message = h[:]
	}
	return ed25519.Sign(w.priv, message), nil
}

// SignToken signs msg in the structured variant and returns the encoded token.
func (w *TestWallet) SignToken(msg siws.ChallengeMessage) (string, error) {
	return w.sign(siws.StructuredChallenge{Message: msg})
}

// SignTextToken signs the rendered text of msg and returns the encoded token.
func (w *TestWallet) SignTextToken(msg siws.ChallengeMessage) (string, error) {
	return w.sign(siws.NewTextChallenge(msg))
}

// Token builds a fresh challenge for domain and returns it signed.
func (w *TestWallet) Token(domain string, opts ...siws.ChallengeOption) (string, error) {
	msg, err := siws.BuildChallenge(w.Address(), domain, opts...)
	if err != nil {
		return "", err
	}
	return w.SignToken(msg)
}

func (w *TestWallet) sign(c siws.Challenge) (string, error) {
	payload, err := c.SignedBytes()
	if err != nil {
		return "", err
	}
	sig, err := w.Sign(context.Background(), payload)
	if err != nil {
		return "", err
	}
	return siws.EncodeToken(siws.Token{Challenge: c, Signature: base58.Encode(sig)})
}

// Server is an httptest server running the net/http adapter with in-memory stores.
type Server struct {
	*httptest.Server
	Auth *authhttp.Service
}

// NewServer starts a server for domain. Close it when done.
func NewServer(opts core.Options) *Server {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://" + opts.Domain
	}
	svc := authhttp.Wrap(core.NewService(opts), authhttp.CookieConfig{}).DisableRateLimiter()
	return &Server{Server: httptest.NewServer(svc.APIHandler()), Auth: svc}
}
