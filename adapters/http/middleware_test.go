package authhttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequired_MissingToken(t *testing.T) {
	h := Required(newTestCoreService(), MiddlewareConfig{})(okHandler())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"error":"Unauthorized: Missing authentication token"}`, w.Body.String())
}

func TestRequired_InvalidFormat(t *testing.T) {
	h := Required(newTestCoreService(), MiddlewareConfig{})(okHandler())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Solana "+strings.Repeat("a", 48))
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"error":"Unauthorized: Invalid token format"}`, w.Body.String())
}

func TestRequired_InvalidSignature(t *testing.T) {
	owner := newTestWallet(t)
	forger := newTestWallet(t)
	tok := owner.token(t)
	// Re-sign the owner's challenge with another key.
	dec, err := decodeForTest(tok)
	require.NoError(t, err)
	forged := forger.sign(t, dec)

	h := Required(newTestCoreService(), MiddlewareConfig{})(okHandler())
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Solana "+forged)
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"error":"Unauthorized: Invalid signature"}`, w.Body.String())
}

func TestRequired_HeaderAndCookie(t *testing.T) {
	wlt := newTestWallet(t)
	tok := wlt.token(t)
	h := Required(newTestCoreService(), MiddlewareConfig{})(okHandler())

	for name, setup := range map[string]func(r *http.Request){
		"header":           func(r *http.Request) { r.Header.Set("Authorization", "Solana "+tok) },
		"header lowercase": func(r *http.Request) { r.Header.Set("Authorization", "solana "+tok) },
		"cookie":           func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: tok}) },
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			setup(r)
			h.ServeHTTP(w, r)
			require.Equal(t, http.StatusOK, w.Code)
			require.JSONEq(t, `{"address":"`+wlt.addr+`"}`, w.Body.String())
		})
	}
}

func TestRequired_BearerSchemeIgnored(t *testing.T) {
	tok := newTestWallet(t).token(t)
	h := Required(newTestCoreService(), MiddlewareConfig{})(okHandler())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"error":"Unauthorized: Missing authentication token"}`, w.Body.String())
}

type countingInvalidator struct{ calls atomic.Int32 }

func (c *countingInvalidator) InvalidateSession(context.Context, string, string) { c.calls.Add(1) }

func TestRequired_DualSessionMismatch(t *testing.T) {
	tokenWallet := newTestWallet(t)
	sessionWallet := newTestWallet(t)
	inv := &countingInvalidator{}
	cfg := MiddlewareConfig{
		Sessions: SessionResolverFunc(func(*http.Request) (string, bool, error) {
			return sessionWallet.addr, true, nil
		}),
		Invalidator: inv,
	}
	reached := false
	h := Required(newTestCoreService(), cfg)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { reached = true }))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: tokenWallet.token(t)})
	h.ServeHTTP(w, r)

	require.False(t, reached)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"error":"Unauthorized: Session wallet mismatch"}`, w.Body.String())

	res := w.Result()
	cleared := cookiesNamed(res, TokenCookieName)
	require.Len(t, cleared, 1)
	require.Less(t, cleared[0].MaxAge, 0)

	flags := cookiesNamed(res, InvalidatedCookieName)
	require.Len(t, flags, 1)
	require.Equal(t, "1", flags[0].Value)
	require.False(t, flags[0].HttpOnly)

	require.Equal(t, int32(1), inv.calls.Load())
}

func TestRequired_DualSessionAgreesOrAbsent(t *testing.T) {
	wlt := newTestWallet(t)
	tok := wlt.token(t)

	for name, resolver := range map[string]SessionResolverFunc{
		"same wallet": func(*http.Request) (string, bool, error) { return wlt.addr, true, nil },
		"no session":  func(*http.Request) (string, bool, error) { return "", false, nil },
		"store error": func(*http.Request) (string, bool, error) { return "", false, errors.New("boom") },
	} {
		t.Run(name, func(t *testing.T) {
			h := Required(newTestCoreService(), MiddlewareConfig{Sessions: resolver})(okHandler())
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Authorization", "Solana "+tok)
			h.ServeHTTP(w, r)
			require.Equal(t, http.StatusOK, w.Code)
			require.Empty(t, cookiesNamed(w.Result(), TokenCookieName))
		})
	}
}

func TestOptional_PassesThrough(t *testing.T) {
	h := Optional(newTestCoreService(), MiddlewareConfig{})(okHandler())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"address":""}`, w.Body.String())

	wlt := newTestWallet(t)
	w = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Solana "+wlt.token(t))
	h.ServeHTTP(w, r)
	require.JSONEq(t, `{"address":"`+wlt.addr+`"}`, w.Body.String())
}
