package authhttp

import (
	"net/http"

	core "github.com/chainsona/cpop-sub001/core"
)

// APIHandler returns a handler that serves the JSON API routes under /auth/*.
// It is intended to be mounted under the host's mux/router at any prefix.
func (s *Service) APIHandler() http.Handler {
	if s == nil || s.svc == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { serverErr(w, "auth_not_initialized") })
	}
	if !core.IsDevEnvironment() {
		if s.svc.EphemeralMode() != core.EphemeralRedis {
			panic("cpop: redis-compatible ephemeral store is required in production")
		}
	}

	mux := http.NewServeMux()

	mux.Handle("POST /auth/solana/challenge", http.HandlerFunc(s.handleSolanaChallengePOST))
	mux.Handle("POST /auth/solana/login", http.HandlerFunc(s.handleSolanaLoginPOST))
	mux.Handle("GET /auth/solana/session", s.Required()(http.HandlerFunc(s.handleSolanaSessionGET)))
	mux.Handle("DELETE /auth/logout", s.Optional()(http.HandlerFunc(s.handleLogoutDELETE)))

	return s.requestMeta(mux)
}

// requestMeta annotates the request context with caller details for session events.
func (s *Service) requestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.WithRequestMeta(r.Context(), s.ipFor(r), r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
