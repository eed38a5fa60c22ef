package siws

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func testAddress(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return PublicKeyToBase58(pub), priv
}

func TestBuildChallenge_SevenDayWindow(t *testing.T) {
	addr, _ := testAddress(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	msg, err := BuildChallenge(addr, "app.example.com", WithClock(fixedClock(now)))
	require.NoError(t, err)

	require.Equal(t, "app.example.com", msg.Domain)
	require.Equal(t, addr, msg.Address)
	require.Equal(t, DefaultStatement, msg.Statement)
	require.Equal(t, Version, msg.Version)
	require.Equal(t, "2025-03-01T12:00:00.000Z", msg.IssuedAt)
	require.Equal(t, msg.IssuedAt, msg.NotBefore)
	require.Equal(t, "2025-03-08T12:00:00.000Z", msg.ExpirationTime)

	iat, err := msg.IssuedTime()
	require.NoError(t, err)
	exp, err := msg.Expiry()
	require.NoError(t, err)
	require.Equal(t, 7*24*time.Hour, exp.Sub(iat))
}

func TestBuildChallenge_TruncatesToMilliseconds(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 123456789, time.FixedZone("X", 3600))
	msg, err := BuildChallenge("addr", "d", WithClock(fixedClock(now)), WithWindow(LegacyChallengeWindow))
	require.NoError(t, err)
	require.Equal(t, "2025-03-01T11:00:00.123Z", msg.IssuedAt)
	require.Equal(t, "2025-03-01T11:30:00.123Z", msg.ExpirationTime)
}

func TestBuildChallenge_CopiesAddressVerbatim(t *testing.T) {
	msg, err := BuildChallenge("not a real address", "d")
	require.NoError(t, err)
	require.Equal(t, "not a real address", msg.Address)
}

func TestBuildChallenge_EntropyFailure(t *testing.T) {
	_, err := BuildChallenge("addr", "d", WithRandom(bytes.NewReader([]byte{1, 2, 3})))
	require.Error(t, err)
}

func TestBuildChallenge_OptionalFields(t *testing.T) {
	msg, err := BuildChallenge("addr", "d",
		WithURI("https://d"),
		WithChainID("solana:devnet"),
		WithRequestID("req-1"),
		WithResources("https://d/terms"),
		WithStatement("Custom"),
	)
	require.NoError(t, err)
	require.Equal(t, "https://d", *msg.URI)
	require.Equal(t, "solana:devnet", *msg.ChainID)
	require.Equal(t, "req-1", *msg.RequestID)
	require.Equal(t, []string{"https://d/terms"}, msg.Resources)
	require.Equal(t, "Custom", msg.Statement)

	bare, err := BuildChallenge("addr", "d", WithURI("  "))
	require.NoError(t, err)
	require.Nil(t, bare.URI)
	raw, err := bare.CanonicalJSON()
	require.NoError(t, err)
	require.NotContains(t, string(raw), "uri")
	require.NotContains(t, string(raw), "chainId")
}

func TestNonce_Distinct(t *testing.T) {
	const n = 100000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		nonce, err := GenerateNonce()
		require.NoError(t, err)
		_, dup := seen[nonce]
		require.False(t, dup, "duplicate nonce after %d draws", i)
		seen[nonce] = struct{}{}
	}
}

func TestNonce_Encoding(t *testing.T) {
	nonce, err := NewNonce(bytes.NewReader(bytes.Repeat([]byte{0xAB}, NonceSize)))
	require.NoError(t, err)
	raw, err := base58.Decode(nonce)
	require.NoError(t, err)
	require.Len(t, raw, NonceSize)
}

func TestCanonicalJSON_FieldOrderAndEscaping(t *testing.T) {
	msg := ChallengeMessage{
		Domain:         "a&b.example",
		Address:        "addr",
		Statement:      "<stmt>",
		Version:        "1",
		Nonce:          "n",
		IssuedAt:       "2025-01-01T00:00:00.000Z",
		ExpirationTime: "2025-01-08T00:00:00.000Z",
	}
	raw, err := msg.CanonicalJSON()
	require.NoError(t, err)
	require.Equal(t,
		`{"domain":"a&b.example","address":"addr","statement":"<stmt>","version":"1","nonce":"n","issuedAt":"2025-01-01T00:00:00.000Z","expirationTime":"2025-01-08T00:00:00.000Z"}`,
		string(raw))
	require.True(t, json.Valid(raw))
}

func TestRenderText_ParseText(t *testing.T) {
	msg, err := BuildChallenge("Addr1111", "app.example.com", WithChainID("solana:mainnet"), WithURI("https://app.example.com"))
	require.NoError(t, err)

	text := RenderText(msg)
	require.True(t, strings.HasPrefix(text, "app.example.com wants you to sign in with your Solana account:\nAddr1111\n\n"))
	require.Contains(t, text, "Chain ID: solana:mainnet\n")

	f, err := ParseText(text)
	require.NoError(t, err)
	require.Equal(t, TextFields{
		Domain:    "app.example.com",
		Address:   "Addr1111",
		Statement: DefaultStatement,
		Nonce:     msg.Nonce,
		IssuedAt:  msg.IssuedAt,
		Expires:   msg.ExpirationTime,
	}, f)
}

func TestParseText_StatementByPosition(t *testing.T) {
	msg, err := BuildChallenge("Addr1111", "app.example.com", WithStatement("Note: signing is free. Terms: https://app.example.com/terms"))
	require.NoError(t, err)
	f, err := ParseText(RenderText(msg))
	require.NoError(t, err)
	require.Equal(t, msg.Statement, f.Statement)
	require.Equal(t, "Addr1111", f.Address)

	msg.Statement = ""
	f, err = ParseText(RenderText(msg))
	require.NoError(t, err)
	require.Empty(t, f.Statement)
	require.Equal(t, msg.Nonce, f.Nonce)
}

func TestParseText_ToleratesForeignLinesAndCRLF(t *testing.T) {
	text := "Please sign this\r\nWallet: Abc\r\nSomething: else\r\nExpires: 2030-01-01T00:00:00.000Z\r\n"
	f, err := ParseText(text)
	require.NoError(t, err)
	require.Equal(t, "Abc", f.Address)
	require.Equal(t, "2030-01-01T00:00:00.000Z", f.Expires)
	require.Empty(t, f.Nonce)
	require.Empty(t, f.Domain)

	_, err = ParseText("hello world")
	require.True(t, errors.Is(err, ErrNotChallengeText))
}

func TestValidAt(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	msg, err := BuildChallenge("a", "d", WithClock(fixedClock(now)), WithWindow(time.Hour))
	require.NoError(t, err)

	require.False(t, msg.ValidAt(now.Add(-time.Millisecond)))
	require.True(t, msg.ValidAt(now))
	require.True(t, msg.ValidAt(now.Add(59*time.Minute)))
	require.False(t, msg.ValidAt(now.Add(time.Hour)))
}

func TestIsOnCurve(t *testing.T) {
	addr, _ := testAddress(t)
	require.True(t, IsOnCurve(addr))
	require.False(t, IsOnCurve("short"))
	require.False(t, IsOnCurve("0OIl"))
}
