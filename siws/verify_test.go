package siws

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
)

func signChallenge(t *testing.T, priv ed25519.PrivateKey, c Challenge, hashed bool) []byte {
	t.Helper()
	msg, err := c.SignedBytes()
	require.NoError(t, err)
	if hashed {
		h := sha256.Sum256(msg)
		msg = h[:]
	}
	return ed25519.Sign(priv, msg)
}

func TestVerify_EncodingsAndDigests(t *testing.T) {
	addr, priv := testAddress(t)
	msg, err := BuildChallenge(addr, "d")
	require.NoError(t, err)

	encoders := map[string]func([]byte) string{
		"base64": base64.StdEncoding.EncodeToString,
		"base58": base58.Encode,
		"hex":    hex.EncodeToString,
		"0xhex":  func(b []byte) string { return "0x" + hex.EncodeToString(b) },
	}
	v := NewVerifier()
	v.Strict = true

	for _, c := range []Challenge{StructuredChallenge{Message: msg}, NewTextChallenge(msg)} {
		for _, hashed := range []bool{true, false} {
			sig := signChallenge(t, priv, c, hashed)
			for name, enc := range encoders {
				res := v.Check(c, enc(sig), addr)
				require.Equal(t, OutcomeVerified, res.Outcome, "format=%s hashed=%v encoding=%s reason=%s", c.Format(), hashed, name, res.Reason)
				require.Equal(t, ed25519.SignatureSize, res.CandidateLen)
			}
		}
	}
}

func TestVerify_StrategyOrderPrefersHashed(t *testing.T) {
	addr, priv := testAddress(t)
	msg, err := BuildChallenge(addr, "d")
	require.NoError(t, err)
	c := StructuredChallenge{Message: msg}

	v := NewVerifier()
	res := v.Check(c, base58.Encode(signChallenge(t, priv, c, true)), addr)
	require.Equal(t, "base58/sha256", res.Strategy)

	res = v.Check(c, base58.Encode(signChallenge(t, priv, c, false)), addr)
	require.Equal(t, "base58/raw", res.Strategy)
}

func TestVerify_UndecodableSignature(t *testing.T) {
	addr, _ := testAddress(t)
	msg, err := BuildChallenge(addr, "d")
	require.NoError(t, err)

	v := NewVerifier()
	require.False(t, v.Verify(StructuredChallenge{Message: msg}, "not-base64!!", addr))
	res := v.Check(StructuredChallenge{Message: msg}, "not-base64!!", addr)
	require.Equal(t, OutcomeFailed, res.Outcome)
	require.Zero(t, res.CandidateLen)
}

func TestVerify_NilVerifierUsesDefaults(t *testing.T) {
	addr, priv := testAddress(t)
	msg, err := BuildChallenge(addr, "d")
	require.NoError(t, err)
	c := StructuredChallenge{Message: msg}

	var v *Verifier
	res := v.Check(c, base58.Encode(signChallenge(t, priv, c, true)), addr)
	require.Equal(t, OutcomeVerified, res.Outcome)
	require.Equal(t, "base58/sha256", res.Strategy)

	res = v.Check(c, "not-base64!!", addr)
	require.Equal(t, OutcomeFailed, res.Outcome)
	require.NotContains(t, res.Reason, "internal error")
}

func TestVerify_RelaxedAcceptance(t *testing.T) {
	addr, _ := testAddress(t)
	msg, err := BuildChallenge(addr, "d")
	require.NoError(t, err)
	c := StructuredChallenge{Message: msg}

	junk := make([]byte, ed25519.SignatureSize)
	_, err = rand.Read(junk)
	require.NoError(t, err)
	sig := base64.StdEncoding.EncodeToString(junk)

	relaxed := NewVerifier()
	res := relaxed.Check(c, sig, addr)
	require.Equal(t, OutcomeRelaxed, res.Outcome)
	require.True(t, relaxed.Verify(c, sig, addr))

	strict := NewVerifier()
	strict.Strict = true
	require.False(t, strict.Verify(c, sig, addr))

	// Wrong length never passes the relaxed path.
	require.False(t, relaxed.Verify(c, base64.StdEncoding.EncodeToString(junk[:63]), addr))
}

func TestVerify_SignatureFromOtherKey(t *testing.T) {
	addr, _ := testAddress(t)
	_, otherPriv := testAddress(t)
	msg, err := BuildChallenge(addr, "d")
	require.NoError(t, err)
	c := StructuredChallenge{Message: msg}
	sig := base58.Encode(signChallenge(t, otherPriv, c, true))

	strict := NewVerifier()
	strict.Strict = true
	require.False(t, strict.Verify(c, sig, addr))
}

func TestVerify_InvalidAddress(t *testing.T) {
	addr, priv := testAddress(t)
	msg, err := BuildChallenge(addr, "d")
	require.NoError(t, err)
	c := StructuredChallenge{Message: msg}
	sig := base58.Encode(signChallenge(t, priv, c, true))

	v := NewVerifier()
	require.False(t, v.Verify(c, sig, "tooShort"))
	require.False(t, v.Verify(c, sig, ""))
	require.False(t, v.Verify(nil, sig, addr))
}

func TestVerify_TamperedMessage(t *testing.T) {
	addr, priv := testAddress(t)
	msg, err := BuildChallenge(addr, "d")
	require.NoError(t, err)
	sig := base58.Encode(signChallenge(t, priv, StructuredChallenge{Message: msg}, true))

	msg.ExpirationTime = "2099-01-01T00:00:00.000Z"
	strict := NewVerifier()
	strict.Strict = true
	require.False(t, strict.Verify(StructuredChallenge{Message: msg}, sig, addr))
}

func TestVerifyToken(t *testing.T) {
	addr, priv := testAddress(t)
	msg, err := BuildChallenge(addr, "d")
	require.NoError(t, err)
	c := StructuredChallenge{Message: msg}
	tok := Token{Challenge: c, Signature: base64.StdEncoding.EncodeToString(signChallenge(t, priv, c, false))}

	raw, err := EncodeToken(tok)
	require.NoError(t, err)
	decoded, err := DecodeToken(raw)
	require.NoError(t, err)

	strict := NewVerifier()
	strict.Strict = true
	res, err := strict.VerifyToken(decoded)
	require.NoError(t, err)
	require.Equal(t, "base64/raw", res.Strategy)

	_, err = strict.VerifyToken(Token{})
	require.ErrorIs(t, err, ErrMalformedToken)
}
