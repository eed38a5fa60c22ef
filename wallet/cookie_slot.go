package wallet

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// TokenCookieName matches the cookie the HTTP adapters read.
const TokenCookieName = "solana_auth_token"

// CookieSlot stores the token as a cookie for the app origin in a CookieJar.
type CookieSlot struct {
	jar    http.CookieJar
	origin *url.URL
	secure bool
}

// NewCookieSlot binds a slot to jar for the app at origin (e.g. "https://pop.example.com").
func NewCookieSlot(jar http.CookieJar, origin string) (*CookieSlot, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid origin %q", origin)
	}
	return &CookieSlot{jar: jar, origin: &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}, secure: u.Scheme == "https"}, nil
}

func (c *CookieSlot) Get(context.Context) (string, bool, error) {
	for _, ck := range c.jar.Cookies(c.origin) {
		if ck.Name == TokenCookieName && ck.Value != "" {
			return ck.Value, true, nil
		}
	}
	return "", false, nil
}

func (c *CookieSlot) Set(_ context.Context, token string, expiry time.Time) error {
	c.jar.SetCookies(c.origin, []*http.Cookie{{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiry.UTC(),
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}})
	return nil
}

func (c *CookieSlot) Clear(context.Context) error {
	c.jar.SetCookies(c.origin, []*http.Cookie{{
		Name:   TokenCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	}})
	return nil
}
