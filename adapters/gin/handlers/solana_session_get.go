package handlers

import (
	"net/http"

	"github.com/chainsona/cpop-sub001/adapters/ginutil"
	authhttp "github.com/chainsona/cpop-sub001/adapters/http"
	"github.com/gin-gonic/gin"
)

// HandleSolanaSessionGET handles GET /auth/solana/session behind the required auth middleware.
func HandleSolanaSessionGET(rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLSolanaSession) {
			ginutil.TooMany(c)
			return
		}
		wallet, ok := ginutil.WalletFromGin(c)
		if !ok {
			ginutil.Unauthorized(c, authhttp.MsgMissingToken)
			return
		}
		c.JSON(http.StatusOK, wallet)
	}
}
