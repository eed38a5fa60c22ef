package ginutil

import (
	"net/http"
	"strings"

	authhttp "github.com/chainsona/cpop-sub001/adapters/http"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RateLimiter is a minimal interface used by adapters.
type RateLimiter = authhttp.RateLimiter

// Bucket names used by the wallet auth endpoints.
const (
	RLSolanaChallenge = authhttp.RLSolanaChallenge
	RLSolanaLogin     = authhttp.RLSolanaLogin
	RLSolanaSession   = authhttp.RLSolanaSession
	RLAuthLogout      = authhttp.RLAuthLogout
)

// AllowNamed applies a per-IP limit using the provided bucket name.
// It fails open on limiter error.
func AllowNamed(c *gin.Context, rl RateLimiter, bucket string) bool {
	if rl == nil {
		return true
	}
	ip := c.ClientIP()
	if ip == "" {
		return true
	}
	key := "auth:" + bucket + ":ip:" + ip
	ok, err := rl.AllowNamed(bucket, key)
	if err != nil {
		return true
	}
	return ok
}

// Error helpers
func SendErr(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code})
}
func BadRequest(c *gin.Context, code string)   { SendErr(c, http.StatusBadRequest, code) }
func Unauthorized(c *gin.Context, code string) { SendErr(c, http.StatusUnauthorized, code) }
func TooMany(c *gin.Context)                   { SendErr(c, http.StatusTooManyRequests, "rate_limited") }
func ServerErr(c *gin.Context, code string)    { SendErr(c, http.StatusInternalServerError, code) }

// ServerErrWithLog logs the underlying error/context before responding with a generic server error.
func ServerErrWithLog(c *gin.Context, code string, err error, message string) {
	entry := log.WithContext(c.Request.Context()).WithFields(log.Fields{
		"code":   code,
		"path":   c.FullPath(),
		"method": c.Request.Method,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	if strings.TrimSpace(message) == "" {
		message = "wallet auth server error"
	}
	entry.Error(message)
	ServerErr(c, code)
}

// SolanaToken extracts the token from an "Authorization: Solana <token>" header value.
// Other schemes, Bearer included, yield "".
func SolanaToken(authorization string) string {
	if authorization == "" {
		return ""
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], authhttp.AuthScheme) {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// RequestToken returns the wallet token from the Authorization header, else the token cookie.
func RequestToken(c *gin.Context) string {
	if tok := SolanaToken(c.GetHeader("Authorization")); tok != "" {
		return tok
	}
	if v, err := c.Cookie(authhttp.TokenCookieName); err == nil {
		return strings.TrimSpace(v)
	}
	return ""
}
