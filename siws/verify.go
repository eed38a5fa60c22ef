package siws

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mr-tron/base58"
	log "github.com/sirupsen/logrus"
)

// Outcome is the discriminated result of a verification attempt.
type Outcome int

const (
	// OutcomeFailed means no strategy accepted the signature.
	OutcomeFailed Outcome = iota
	// OutcomeVerified means an Ed25519 check succeeded.
	OutcomeVerified
	// OutcomeRelaxed means only the length/curve compatibility check passed.
	OutcomeRelaxed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeVerified:
		return "verified"
	case OutcomeRelaxed:
		return "relaxed"
	default:
		return "failed"
	}
}

// Result describes how a signature was (or was not) accepted.
type Result struct {
	Outcome Outcome
	// Strategy names the decoder/digest pair that succeeded, e.g. "base58/sha256".
	Strategy string
	// CandidateLen is the decoded length of the best signature candidate (0 if none decoded).
	CandidateLen int
	Reason       string
}

// OK reports whether the signature was accepted on any path.
func (r Result) OK() bool { return r.Outcome != OutcomeFailed }

type sigDecoder struct {
	name string
	// clean strips an optional 0x prefix before decoding.
	clean  bool
	decode func(string) ([]byte, error)
}

type digest struct {
	name  string
	apply func([]byte) []byte
}

// Wallets sign either the raw message or its SHA-256 digest, and encode the result
// in different bases; no single convention can be assumed.
var defaultDecoders = []sigDecoder{
	{name: "base64", decode: decodeBase64},
	{name: "base58", clean: true, decode: base58.Decode},
	{name: "hex", clean: true, decode: func(s string) ([]byte, error) { return hexutil.Decode("0x" + s) }},
}

var defaultDigests = []digest{
	{name: "sha256", apply: func(b []byte) []byte { h := sha256.Sum256(b); return h[:] }},
	{name: "raw", apply: func(b []byte) []byte { return b }},
}

func decodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return b, nil
	}
	if b, err2 := base64.RawURLEncoding.DecodeString(s); err2 == nil {
		return b, nil
	}
	return nil, err
}

// Verifier checks that a signature proves ownership of the claimed address over a challenge.
//
// Unless Strict is set, a signature that fails every Ed25519 check is still accepted
// when the claimed address is a valid curve point and the decoded signature is exactly
// 64 bytes. This keeps wallets with unknown signing conventions working, at the cost
// that any 64-byte value passes for any on-curve address. Results on that path carry
// OutcomeRelaxed so callers can tell them apart.
type Verifier struct {
	Strict bool
	Logger *log.Entry

	decoders []sigDecoder
	digests  []digest
}

// NewVerifier returns a Verifier with the default decoder and digest order.
// A nil *Verifier behaves like the zero Verifier.
func NewVerifier() *Verifier {
	return &Verifier{decoders: defaultDecoders, digests: defaultDigests}
}

// Verify reports whether signature is acceptable for msg and claimedAddress. It never panics.
func (v *Verifier) Verify(msg Challenge, signature, claimedAddress string) bool {
	return v.Check(msg, signature, claimedAddress).OK()
}

// Check runs the ordered strategy list and returns the first success.
func (v *Verifier) Check(msg Challenge, signature, claimedAddress string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Outcome: OutcomeFailed, Reason: fmt.Sprintf("internal error: %v", r)}
			v.logger().WithField("panic", r).Error("siws: signature verification aborted")
		}
	}()

	if msg == nil {
		return v.fail(Result{Reason: "missing challenge"}, claimedAddress, "", signature)
	}
	pub, err := Base58ToPublicKey(claimedAddress)
	if err != nil {
		return v.fail(Result{Reason: "invalid address: " + err.Error()}, claimedAddress, msg.Nonce(), signature)
	}
	signed, err := msg.SignedBytes()
	if err != nil {
		return v.fail(Result{Reason: "canonicalize message: " + err.Error()}, claimedAddress, msg.Nonce(), signature)
	}

	sig := strings.TrimSpace(signature)
	cleaned := strings.TrimPrefix(strings.TrimPrefix(sig, "0x"), "0X")

	var best []byte
	for _, d := range v.decoderList() {
		in := sig
		if d.clean {
			in = cleaned
		}
		cand, err := d.decode(in)
		if err != nil || len(cand) == 0 {
			continue
		}
		if best == nil || (len(best) != ed25519.SignatureSize && len(cand) == ed25519.SignatureSize) {
			best = cand
		}
		for _, dg := range v.digestList() {
			if ed25519.Verify(pub, dg.apply(signed), cand) {
				return Result{Outcome: OutcomeVerified, Strategy: d.name + "/" + dg.name, CandidateLen: len(cand)}
			}
		}
	}

	res = Result{CandidateLen: len(best), Reason: "no strategy verified"}
	if best == nil {
		res.Reason = "signature not decodable"
	}
	if !v.strict() && len(best) == ed25519.SignatureSize && IsOnCurve(claimedAddress) {
		v.logger().WithFields(log.Fields{
			"address": claimedAddress,
			"nonce":   prefix(msg.Nonce(), 8),
		}).Warn("siws: accepting unverified 64-byte signature for on-curve address (relaxed mode)")
		return Result{Outcome: OutcomeRelaxed, Strategy: "relaxed", CandidateLen: len(best)}
	}
	return v.fail(res, claimedAddress, msg.Nonce(), signature)
}

func (v *Verifier) fail(res Result, address, nonce, signature string) Result {
	res.Outcome = OutcomeFailed
	v.logger().WithFields(log.Fields{
		"address":          address,
		"nonce_prefix":     prefix(nonce, 8),
		"signature_len":    len(signature),
		"signature_prefix": prefix(signature, 8),
		"candidate_len":    res.CandidateLen,
	}).Debug("siws: signature rejected: " + res.Reason)
	return res
}

func (v *Verifier) strict() bool { return v != nil && v.Strict }

func (v *Verifier) logger() *log.Entry {
	if v != nil && v.Logger != nil {
		return v.Logger
	}
	return log.NewEntry(log.StandardLogger())
}

func (v *Verifier) decoderList() []sigDecoder {
	if v == nil || len(v.decoders) == 0 {
		return defaultDecoders
	}
	return v.decoders
}

func (v *Verifier) digestList() []digest {
	if v == nil || len(v.digests) == 0 {
		return defaultDigests
	}
	return v.digests
}

// ErrVerification is returned by VerifyToken when a token does not verify.
var ErrVerification = errors.New("signature verification failed")

// VerifyToken verifies a decoded token against the address embedded in its challenge.
func (v *Verifier) VerifyToken(t Token) (Result, error) {
	if t.Challenge == nil {
		return Result{}, ErrMalformedToken
	}
	res := v.Check(t.Challenge, t.Signature, t.Challenge.Address())
	if !res.OK() {
		return res, ErrVerification
	}
	return res, nil
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
