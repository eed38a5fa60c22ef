package authhttp

import (
	"net/http"

	log "github.com/sirupsen/logrus"
)

// handleLogoutDELETE clears every auth cookie and the server session binding. It succeeds
// whether or not the caller was signed in.
func (s *Service) handleLogoutDELETE(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLAuthLogout) {
		tooMany(w)
		return
	}

	var address string
	if wallet, ok := WalletFromContext(r.Context()); ok {
		address = wallet.Address
	}
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		if err := s.svc.UnbindSession(r.Context(), c.Value); err != nil {
			log.WithContext(r.Context()).WithError(err).Warn("unbind server session failed")
		}
	}

	s.cookies.clearToken(w)
	s.cookies.clear(w, InvalidatedCookieName)
	s.cookies.clear(w, SessionCookieName)
	s.svc.Logout(r.Context(), address)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
