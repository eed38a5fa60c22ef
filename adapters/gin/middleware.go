package authgin

import (
	"context"

	"github.com/chainsona/cpop-sub001/adapters/ginutil"
	authhttp "github.com/chainsona/cpop-sub001/adapters/http"
	core "github.com/chainsona/cpop-sub001/core"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// SessionStore looks up the wallet bound to a server session id. *core.Service implements it.
type SessionStore interface {
	SessionWallet(ctx context.Context, sid string) (string, bool, error)
}

// Config wires the optional collaborators of AuthRequired and AuthOptional.
type Config struct {
	// Sessions enables the dual-session check against the session id cookie. Nil disables it.
	Sessions    SessionStore
	Cookies     authhttp.CookieConfig
	Invalidator authhttp.SessionInvalidator
}

// AuthRequired verifies the Solana wallet token from the Authorization header or token cookie
// and stores the wallet on the gin context. Failures abort with the fixed 401 bodies.
func AuthRequired(auth authhttp.Authenticator, cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := ginutil.WalletFromGin(c); ok {
			c.Next()
			return
		}
		wallet, err := authenticate(c, auth, cfg)
		if err != nil {
			ginutil.Unauthorized(c, authhttp.FailureMessage(err))
			return
		}
		ginutil.SetWallet(c, wallet)
		c.Next()
	}
}

// AuthOptional attaches the wallet when a valid token is present; otherwise passes through.
func AuthOptional(auth authhttp.Authenticator, cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if wallet, err := authenticate(c, auth, cfg); err == nil {
			ginutil.SetWallet(c, wallet)
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, auth authhttp.Authenticator, cfg Config) (authhttp.Wallet, error) {
	raw := ginutil.RequestToken(c)
	if raw == "" {
		return authhttp.Wallet{}, core.ErrMissingToken
	}
	ctx := c.Request.Context()
	id, err := auth.Authenticate(ctx, raw)
	if err != nil {
		return authhttp.Wallet{}, err
	}

	if cfg.Sessions != nil {
		if sid, err := c.Cookie(authhttp.SessionCookieName); err == nil && sid != "" {
			sessionAddr, ok, err := cfg.Sessions.SessionWallet(ctx, sid)
			switch {
			case err != nil:
				log.WithContext(ctx).WithError(err).Warn("session wallet lookup failed")
			case ok:
				if err := core.CheckSessionConsistency(id.Address, sessionAddr); err != nil {
					ginutil.ClearCookie(c, cfg.Cookies, authhttp.TokenCookieName)
					ginutil.SetInvalidatedCookie(c, cfg.Cookies)
					if cfg.Invalidator != nil {
						cfg.Invalidator.InvalidateSession(ctx, id.Address, sessionAddr)
					}
					log.WithContext(ctx).WithFields(log.Fields{
						"token_address":   id.Address,
						"session_address": sessionAddr,
					}).Warn("wallet token does not match server session")
					return authhttp.Wallet{}, err
				}
			}
		}
	}
	return authhttp.WalletFromIdentity(id), nil
}

// WalletFromGin returns the wallet attached by AuthRequired or AuthOptional.
func WalletFromGin(c *gin.Context) (authhttp.Wallet, bool) { return ginutil.WalletFromGin(c) }
