package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/chainsona/cpop-sub001/adapters/ginutil"
	authhttp "github.com/chainsona/cpop-sub001/adapters/http"
	core "github.com/chainsona/cpop-sub001/core"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// HandleSolanaLoginPost handles POST /auth/solana/login
// Verifies a signed wallet token, sets the token and server session cookies,
// and returns the wallet identity.
func HandleSolanaLoginPost(cfg Config, svc WalletAuth, rl ginutil.RateLimiter) gin.HandlerFunc {
	type loginReq struct {
		Token string `json:"token"`
	}

	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLSolanaLogin) {
			ginutil.TooMany(c)
			return
		}

		var req loginReq
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		raw := strings.TrimSpace(req.Token)
		if raw == "" {
			ginutil.Unauthorized(c, authhttp.MsgMissingToken)
			return
		}

		id, err := svc.Login(c.Request.Context(), raw)
		if err != nil {
			switch {
			case errors.Is(err, core.ErrMissingToken), errors.Is(err, core.ErrMalformedToken),
				errors.Is(err, core.ErrExpiredChallenge), errors.Is(err, core.ErrSignatureMismatch),
				errors.Is(err, core.ErrChallengeRedeemed):
				ginutil.Unauthorized(c, authhttp.FailureMessage(err))
			default:
				ginutil.ServerErrWithLog(c, "login_failed", err, "wallet login failed")
			}
			return
		}

		ginutil.SetTokenCookie(c, cfg.Cookies, raw, id.ExpiresAt)
		ginutil.ClearCookie(c, cfg.Cookies, authhttp.InvalidatedCookieName)

		sid := uuid.NewString()
		if err := svc.BindSession(c.Request.Context(), sid, id.Address, id.IssuedAt); err != nil {
			log.WithContext(c.Request.Context()).WithError(err).Warn("bind server session failed")
		} else {
			ginutil.SetSessionCookie(c, cfg.Cookies, sid, id.ExpiresAt)
		}

		c.JSON(http.StatusOK, authhttp.WalletFromIdentity(id))
	}
}
