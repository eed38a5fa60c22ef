package authhttp

import (
	"crypto/ed25519"
	"crypto/sha256"
	"net/http"
	"testing"

	core "github.com/chainsona/cpop-sub001/core"
	"github.com/chainsona/cpop-sub001/siws"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
)

type testWallet struct {
	addr string
	priv ed25519.PrivateKey
}

func newTestWallet(t *testing.T) testWallet {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return testWallet{addr: siws.PublicKeyToBase58(pub), priv: priv}
}

func (w testWallet) sign(t *testing.T, msg siws.ChallengeMessage) string {
	t.Helper()
	c := siws.StructuredChallenge{Message: msg}
	b, err := c.SignedBytes()
	require.NoError(t, err)
	h := sha256.Sum256(b)
	raw, err := siws.EncodeToken(siws.Token{Challenge: c, Signature: base58.Encode(ed25519.Sign(w.priv, h[:]))})
	require.NoError(t, err)
	return raw
}

func (w testWallet) token(t *testing.T) string {
	t.Helper()
	msg, err := siws.BuildChallenge(w.addr, "pop.example.com")
	require.NoError(t, err)
	return w.sign(t, msg)
}

func newTestCoreService() *core.Service {
	return core.NewService(core.Options{
		Domain:           "pop.example.com",
		BaseURL:          "https://pop.example.com",
		StrictSignatures: true,
	})
}

func newTestService() *Service {
	return Wrap(newTestCoreService(), CookieConfig{}).DisableRateLimiter()
}

func cookiesNamed(res *http.Response, name string) []*http.Cookie {
	var out []*http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wallet, _ := WalletFromContext(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{"address": wallet.Address})
	})
}

func decodeForTest(raw string) (siws.ChallengeMessage, error) {
	tok, err := siws.DecodeToken(raw)
	if err != nil {
		return siws.ChallengeMessage{}, err
	}
	return tok.Challenge.(siws.StructuredChallenge).Message, nil
}
