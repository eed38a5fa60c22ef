package authhttp

import (
	"errors"
	"net/http"
	"strings"

	core "github.com/chainsona/cpop-sub001/core"
	"github.com/chainsona/cpop-sub001/siws"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type challengeResponse struct {
	Message siws.ChallengeMessage `json:"message"`
	// Text is the rendered form for wallets that sign plain text.
	Text string `json:"text"`
}

func (s *Service) handleSolanaChallengePOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLSolanaChallenge) {
		tooMany(w)
		return
	}

	var req struct {
		Address string `json:"address"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid_request")
		return
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		badRequest(w, "address_required")
		return
	}
	if err := siws.ValidateAddress(address); err != nil {
		badRequest(w, "invalid_address")
		return
	}

	msg, err := s.svc.IssueChallenge(r.Context(), address)
	if err != nil {
		log.WithContext(r.Context()).WithError(err).Error("issue challenge failed")
		serverErr(w, "challenge_failed")
		return
	}
	writeJSON(w, http.StatusOK, challengeResponse{Message: msg, Text: siws.RenderText(msg)})
}

func (s *Service) handleSolanaLoginPOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLSolanaLogin) {
		tooMany(w)
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid_request")
		return
	}
	raw := strings.TrimSpace(req.Token)
	if raw == "" {
		unauthorized(w, MsgMissingToken)
		return
	}

	id, err := s.svc.Login(r.Context(), raw)
	if err != nil {
		if errors.Is(err, core.ErrMissingToken) || errors.Is(err, core.ErrMalformedToken) ||
			errors.Is(err, core.ErrExpiredChallenge) || errors.Is(err, core.ErrSignatureMismatch) ||
			errors.Is(err, core.ErrChallengeRedeemed) {
			unauthorized(w, FailureMessage(err))
			return
		}
		log.WithContext(r.Context()).WithError(err).Error("wallet login failed")
		serverErr(w, "login_failed")
		return
	}

	s.cookies.setToken(w, raw, id.ExpiresAt)
	s.cookies.clear(w, InvalidatedCookieName)

	sid := uuid.NewString()
	if err := s.svc.BindSession(r.Context(), sid, id.Address, id.IssuedAt); err != nil {
		log.WithContext(r.Context()).WithError(err).Warn("bind server session failed")
	} else {
		s.cookies.setSession(w, sid, id.ExpiresAt)
	}

	writeJSON(w, http.StatusOK, WalletFromIdentity(id))
}

func (s *Service) handleSolanaSessionGET(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLSolanaSession) {
		tooMany(w)
		return
	}
	wallet, ok := WalletFromContext(r.Context())
	if !ok {
		unauthorized(w, MsgMissingToken)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}
