package authhttp

import (
	"context"
	"net/http"

	core "github.com/chainsona/cpop-sub001/core"
	log "github.com/sirupsen/logrus"
)

// Authenticator verifies a raw wallet token. *core.Service implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (core.Identity, error)
}

// SessionResolver reports the wallet a separate server-side session is signed in as.
// ok=false means there is no such session.
type SessionResolver interface {
	WalletAddress(r *http.Request) (address string, ok bool, err error)
}

// SessionResolverFunc adapts a function to SessionResolver.
type SessionResolverFunc func(r *http.Request) (string, bool, error)

func (f SessionResolverFunc) WalletAddress(r *http.Request) (string, bool, error) { return f(r) }

// SessionInvalidator is told about dual-session conflicts. *core.Service implements it.
type SessionInvalidator interface {
	InvalidateSession(ctx context.Context, tokenAddress, sessionAddress string)
}

// MiddlewareConfig wires the optional collaborators of Required and Optional.
type MiddlewareConfig struct {
	Sessions    SessionResolver
	Cookies     CookieConfig
	Invalidator SessionInvalidator
}

// CoreSessionResolver resolves the server session from the session id cookie via core bindings.
func CoreSessionResolver(svc *core.Service, cookies CookieConfig) SessionResolver {
	return SessionResolverFunc(func(r *http.Request) (string, bool, error) {
		c, err := r.Cookie(SessionCookieName)
		if err != nil || c.Value == "" {
			return "", false, nil
		}
		return svc.SessionWallet(r.Context(), c.Value)
	})
}

// Required authenticates the Solana token from the Authorization header or the token cookie,
// rejects with a fixed 401 body on failure, and stores the Wallet in the request context.
func Required(auth Authenticator, cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wallet, err := authenticateRequest(w, r, auth, cfg)
			if err != nil {
				unauthorized(w, FailureMessage(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithWallet(r.Context(), wallet)))
		})
	}
}

// Optional attaches the Wallet when the request carries a valid token and otherwise passes
// the request through untouched. A dual-session conflict still clears the token cookie.
func Optional(auth Authenticator, cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wallet, err := authenticateRequest(w, r, auth, cfg)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithWallet(r.Context(), wallet)))
		})
	}
}

func authenticateRequest(w http.ResponseWriter, r *http.Request, auth Authenticator, cfg MiddlewareConfig) (Wallet, error) {
	raw := tokenFromRequest(r, TokenCookieName)
	if raw == "" {
		return Wallet{}, core.ErrMissingToken
	}
	id, err := auth.Authenticate(r.Context(), raw)
	if err != nil {
		return Wallet{}, err
	}

	if cfg.Sessions != nil {
		sessionAddr, ok, err := cfg.Sessions.WalletAddress(r)
		if err != nil {
			// Fail open on store errors.
			log.WithContext(r.Context()).WithError(err).Warn("session wallet lookup failed")
		} else if ok {
			if err := core.CheckSessionConsistency(id.Address, sessionAddr); err != nil {
				cfg.Cookies.clearToken(w)
				cfg.Cookies.setInvalidated(w)
				if cfg.Invalidator != nil {
					cfg.Invalidator.InvalidateSession(r.Context(), id.Address, sessionAddr)
				}
				log.WithContext(r.Context()).WithFields(log.Fields{
					"token_address":   id.Address,
					"session_address": sessionAddr,
				}).Warn("wallet token does not match server session")
				return Wallet{}, err
			}
		}
	}
	return WalletFromIdentity(id), nil
}
