package authhttp

import (
	"net/http"
	"time"
)

// Cookie names shared with the browser client.
const (
	TokenCookieName       = "solana_auth_token"
	InvalidatedCookieName = "solana_auth_invalidated"
	SessionCookieName     = "cpop_sid"
)

// CookieConfig controls attributes of the cookies this package writes.
type CookieConfig struct {
	Secure bool
	Domain string
	// Path defaults to "/".
	Path string
	// TokenHTTPOnly hides the token cookie from scripts. Off by default so the browser
	// client can keep its local copy in sync.
	TokenHTTPOnly bool
}

func (c CookieConfig) path() string {
	if c.Path == "" {
		return "/"
	}
	return c.Path
}

func (c CookieConfig) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.path(),
		Domain:   c.Domain,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c CookieConfig) setToken(w http.ResponseWriter, token string, expires time.Time) {
	ck := c.cookie(TokenCookieName, token)
	ck.Expires = expires.UTC()
	ck.HttpOnly = c.TokenHTTPOnly
	http.SetCookie(w, ck)
}

func (c CookieConfig) clear(w http.ResponseWriter, name string) {
	ck := c.cookie(name, "")
	ck.MaxAge = -1
	ck.Expires = time.Unix(0, 0)
	http.SetCookie(w, ck)
}

func (c CookieConfig) clearToken(w http.ResponseWriter) { c.clear(w, TokenCookieName) }

// setInvalidated flags a forced sign-out so the client can explain it. Readable by scripts.
func (c CookieConfig) setInvalidated(w http.ResponseWriter) {
	ck := c.cookie(InvalidatedCookieName, "1")
	ck.MaxAge = int((5 * time.Minute).Seconds())
	http.SetCookie(w, ck)
}

func (c CookieConfig) setSession(w http.ResponseWriter, sid string, expires time.Time) {
	ck := c.cookie(SessionCookieName, sid)
	ck.Expires = expires.UTC()
	ck.HttpOnly = true
	http.SetCookie(w, ck)
}
