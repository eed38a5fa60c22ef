package handlers

import (
	"net/http"

	"github.com/chainsona/cpop-sub001/adapters/ginutil"
	authhttp "github.com/chainsona/cpop-sub001/adapters/http"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// HandleLogoutDELETE handles DELETE /auth/logout. Mount it behind the optional auth middleware
// so the logged_out event carries the wallet when one is known. It always succeeds.
func HandleLogoutDELETE(cfg Config, svc WalletAuth, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLAuthLogout) {
			ginutil.TooMany(c)
			return
		}

		var address string
		if wallet, ok := ginutil.WalletFromGin(c); ok {
			address = wallet.Address
		}
		if sid, err := c.Cookie(authhttp.SessionCookieName); err == nil && sid != "" {
			if err := svc.UnbindSession(c.Request.Context(), sid); err != nil {
				log.WithContext(c.Request.Context()).WithError(err).Warn("unbind server session failed")
			}
		}

		ginutil.ClearCookie(c, cfg.Cookies, authhttp.TokenCookieName)
		ginutil.ClearCookie(c, cfg.Cookies, authhttp.InvalidatedCookieName)
		ginutil.ClearCookie(c, cfg.Cookies, authhttp.SessionCookieName)
		svc.Logout(c.Request.Context(), address)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
