package ginutil

import (
	"net/http"
	"time"

	authhttp "github.com/chainsona/cpop-sub001/adapters/http"
	"github.com/gin-gonic/gin"
)

// invalidatedFlagTTL is how long the forced sign-out flag stays readable by the client.
const invalidatedFlagTTL = 5 * time.Minute

func cookiePath(cfg authhttp.CookieConfig) string {
	if cfg.Path == "" {
		return "/"
	}
	return cfg.Path
}

func secondsUntil(t time.Time) int {
	secs := int(time.Until(t).Seconds())
	if secs < 1 {
		return -1
	}
	return secs
}

// SetTokenCookie stores the wallet token until it expires.
func SetTokenCookie(c *gin.Context, cfg authhttp.CookieConfig, token string, expires time.Time) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(authhttp.TokenCookieName, token, secondsUntil(expires), cookiePath(cfg), cfg.Domain, cfg.Secure, cfg.TokenHTTPOnly)
}

// SetSessionCookie stores the server session id. Always HttpOnly.
func SetSessionCookie(c *gin.Context, cfg authhttp.CookieConfig, sid string, expires time.Time) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(authhttp.SessionCookieName, sid, secondsUntil(expires), cookiePath(cfg), cfg.Domain, cfg.Secure, true)
}

// SetInvalidatedCookie raises the script-readable forced sign-out flag.
func SetInvalidatedCookie(c *gin.Context, cfg authhttp.CookieConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(authhttp.InvalidatedCookieName, "1", int(invalidatedFlagTTL.Seconds()), cookiePath(cfg), cfg.Domain, cfg.Secure, false)
}

// ClearCookie expires name immediately.
func ClearCookie(c *gin.Context, cfg authhttp.CookieConfig, name string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, cookiePath(cfg), cfg.Domain, cfg.Secure, name == authhttp.SessionCookieName)
}
