package authgin

import (
	authhttp "github.com/chainsona/cpop-sub001/adapters/http"
	"github.com/gin-gonic/gin"
)

// Auth bundles an authenticator with its middleware config so route groups can
// pick Required or Optional without repeating the wiring.
type Auth struct {
	auth authhttp.Authenticator
	cfg  Config
}

// MiddlewareFromSVC builds an Auth gate from a Service, including the dual-session check.
func MiddlewareFromSVC(s *Service) *Auth {
	return &Auth{
		auth: s.svc,
		cfg:  Config{Sessions: s.svc, Cookies: s.cookies, Invalidator: s.svc},
	}
}

// NewAuth builds an Auth gate from any authenticator.
func NewAuth(auth authhttp.Authenticator, cfg Config) *Auth { return &Auth{auth: auth, cfg: cfg} }

func (a *Auth) Required() gin.HandlerFunc { return AuthRequired(a.auth, a.cfg) }

func (a *Auth) Optional() gin.HandlerFunc { return AuthOptional(a.auth, a.cfg) }
