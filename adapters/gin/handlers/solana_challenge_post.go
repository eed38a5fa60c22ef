package handlers

import (
	"net/http"
	"strings"

	"github.com/chainsona/cpop-sub001/adapters/ginutil"
	"github.com/chainsona/cpop-sub001/siws"
	"github.com/gin-gonic/gin"
)

// HandleSolanaChallengePost handles POST /auth/solana/challenge
// Issues a sign-in challenge for the given wallet address.
func HandleSolanaChallengePost(svc WalletAuth, rl ginutil.RateLimiter) gin.HandlerFunc {
	type challengeReq struct {
		Address string `json:"address"`
	}

	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLSolanaChallenge) {
			ginutil.TooMany(c)
			return
		}

		var req challengeReq
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}

		address := strings.TrimSpace(req.Address)
		if address == "" {
			ginutil.BadRequest(c, "address_required")
			return
		}
		if err := siws.ValidateAddress(address); err != nil {
			ginutil.BadRequest(c, "invalid_address")
			return
		}

		msg, err := svc.IssueChallenge(c.Request.Context(), address)
		if err != nil {
			ginutil.ServerErrWithLog(c, "challenge_failed", err, "failed to issue wallet challenge")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": msg, "text": siws.RenderText(msg)})
	}
}
