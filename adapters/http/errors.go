package authhttp

import (
	"encoding/json"
	"errors"
	"net/http"

	core "github.com/chainsona/cpop-sub001/core"
)

// Fixed 401 bodies. Verification details never reach clients.
const (
	MsgMissingToken     = "Unauthorized: Missing authentication token"
	MsgInvalidFormat    = "Unauthorized: Invalid token format"
	MsgInvalidSignature = "Unauthorized: Invalid signature"
	MsgSessionMismatch  = "Unauthorized: Session wallet mismatch"
)

type errResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sendErr(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errResp{Error: code})
}

func badRequest(w http.ResponseWriter, code string)   { sendErr(w, http.StatusBadRequest, code) }
func unauthorized(w http.ResponseWriter, code string) { sendErr(w, http.StatusUnauthorized, code) }
func tooMany(w http.ResponseWriter)                   { sendErr(w, http.StatusTooManyRequests, "rate_limited") }
func serverErr(w http.ResponseWriter, code string)    { sendErr(w, http.StatusInternalServerError, code) }

// FailureMessage maps a core authentication error to its fixed 401 body.
func FailureMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrMissingToken):
		return MsgMissingToken
	case errors.Is(err, core.ErrIdentityMismatch):
		return MsgSessionMismatch
	case errors.Is(err, core.ErrSignatureMismatch), errors.Is(err, core.ErrChallengeRedeemed):
		return MsgInvalidSignature
	default:
		return MsgInvalidFormat
	}
}
