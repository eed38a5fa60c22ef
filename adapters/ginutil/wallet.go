package ginutil

import (
	authhttp "github.com/chainsona/cpop-sub001/adapters/http"
	"github.com/gin-gonic/gin"
)

// WalletKey is the gin context key holding the authenticated authhttp.Wallet.
const WalletKey = "cpop.wallet"

// SetWallet stores w on the gin context and on the request context.
func SetWallet(c *gin.Context, w authhttp.Wallet) {
	c.Set(WalletKey, w)
	c.Request = c.Request.WithContext(authhttp.ContextWithWallet(c.Request.Context(), w))
}

// WalletFromGin returns the wallet stored by SetWallet.
func WalletFromGin(c *gin.Context) (authhttp.Wallet, bool) {
	if v, ok := c.Get(WalletKey); ok {
		if w, ok := v.(authhttp.Wallet); ok {
			return w, true
		}
	}
	return authhttp.Wallet{}, false
}
