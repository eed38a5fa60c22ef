package siws

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MinTokenLength rejects obviously truncated tokens before any decoding.
const MinTokenLength = 32

// MessageFormat discriminates the two accepted wire variants.
type MessageFormat string

const (
	// FormatJSON carries the challenge as a JSON object.
	FormatJSON MessageFormat = "json"
	// FormatText carries the challenge as its rendered multi-line text.
	FormatText MessageFormat = "text"
)

var (
	// ErrMalformedToken means the token could not be decoded into a known shape.
	ErrMalformedToken = errors.New("malformed token")
	// ErrChallengeExpired means the token decoded but its expirationTime has passed.
	ErrChallengeExpired = errors.New("challenge expired")
)

// Challenge is the signed part of a token. It is implemented by
// StructuredChallenge and TextChallenge only.
type Challenge interface {
	Format() MessageFormat
	Address() string
	Nonce() string
	IssuedAt() (time.Time, bool)
	Expiry() (time.Time, bool)
	// SignedBytes is the exact byte string the wallet signed.
	SignedBytes() ([]byte, error)
	missingFields() []string
}

// StructuredChallenge is the JSON-object wire variant.
type StructuredChallenge struct {
	Message ChallengeMessage
}

func (c StructuredChallenge) Format() MessageFormat        { return FormatJSON }
func (c StructuredChallenge) Address() string              { return c.Message.Address }
func (c StructuredChallenge) Nonce() string                { return c.Message.Nonce }
func (c StructuredChallenge) SignedBytes() ([]byte, error) { return c.Message.CanonicalJSON() }

func (c StructuredChallenge) IssuedAt() (time.Time, bool) {
	t, err := c.Message.IssuedTime()
	return t, err == nil
}

func (c StructuredChallenge) Expiry() (time.Time, bool) {
	t, err := c.Message.Expiry()
	return t, err == nil
}

func (c StructuredChallenge) missingFields() []string {
	var out []string
	m := c.Message
	for _, f := range []struct{ name, v string }{
		{"address", m.Address},
		{"statement", m.Statement},
		{"nonce", m.Nonce},
		{"issuedAt", m.IssuedAt},
		{"expirationTime", m.ExpirationTime},
	} {
		if strings.TrimSpace(f.v) == "" {
			out = append(out, f.name)
		}
	}
	return out
}

// TextChallenge is the rendered-text wire variant. Fields are recovered by ParseText.
type TextChallenge struct {
	Text   string
	Fields TextFields
}

// NewTextChallenge renders m and wraps it as a TextChallenge.
func NewTextChallenge(m ChallengeMessage) TextChallenge {
	text := RenderText(m)
	f, _ := ParseText(text)
	return TextChallenge{Text: text, Fields: f}
}

func (c TextChallenge) Format() MessageFormat        { return FormatText }
func (c TextChallenge) Address() string              { return c.Fields.Address }
func (c TextChallenge) Nonce() string                { return c.Fields.Nonce }
func (c TextChallenge) SignedBytes() ([]byte, error) { return []byte(c.Text), nil }

func (c TextChallenge) IssuedAt() (time.Time, bool) {
	t, err := ParseTime(c.Fields.IssuedAt)
	return t, err == nil
}

func (c TextChallenge) Expiry() (time.Time, bool) {
	t, err := ParseTime(c.Fields.Expires)
	return t, err == nil
}

// Only Wallet and Expires are required: wallets render the rest inconsistently.
func (c TextChallenge) missingFields() []string {
	var out []string
	if c.Fields.Address == "" {
		out = append(out, "Wallet")
	}
	if c.Fields.Expires == "" {
		out = append(out, "Expires")
	}
	return out
}

// Token is a decoded bearer credential.
type Token struct {
	Challenge Challenge
	Signature string
}

type wireToken struct {
	Message       json.RawMessage `json:"message"`
	Signature     json.RawMessage `json:"signature"`
	MessageFormat string          `json:"messageFormat,omitempty"`
}

// EncodeToken serializes t into the base64(JSON) bearer form.
func EncodeToken(t Token) (string, error) {
	if t.Challenge == nil {
		return "", fmt.Errorf("%w: missing challenge", ErrMalformedToken)
	}
	var payload any
	switch c := t.Challenge.(type) {
	case StructuredChallenge:
		payload = struct {
			Message   ChallengeMessage `json:"message"`
			Signature string           `json:"signature"`
		}{c.Message, t.Signature}
	case TextChallenge:
		payload = struct {
			Message       string        `json:"message"`
			Signature     string        `json:"signature"`
			MessageFormat MessageFormat `json:"messageFormat"`
		}{c.Text, t.Signature, FormatText}
	default:
		return "", fmt.Errorf("%w: unsupported challenge type %T", ErrMalformedToken, t.Challenge)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeToken parses a bearer token in either wire variant. It performs no cryptography
// and no expiry check.
func DecodeToken(raw string) (Token, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Token{}, fmt.Errorf("%w: empty", ErrMalformedToken)
	}
	payload, ok := tokenJSON(raw)
	if !ok {
		return Token{}, fmt.Errorf("%w: not base64 or JSON", ErrMalformedToken)
	}

	var w wireToken
	if err := json.Unmarshal(payload, &w); err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	var sig string
	if len(w.Signature) == 0 || json.Unmarshal(w.Signature, &sig) != nil {
		return Token{}, fmt.Errorf("%w: signature missing or not a string", ErrMalformedToken)
	}

	msg := bytes.TrimSpace(w.Message)
	switch {
	case len(msg) == 0 || bytes.Equal(msg, []byte("null")):
		return Token{}, fmt.Errorf("%w: message missing", ErrMalformedToken)
	case msg[0] == '"':
		var text string
		if err := json.Unmarshal(msg, &text); err != nil {
			return Token{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		fields, _ := ParseText(text)
		return Token{Challenge: TextChallenge{Text: text, Fields: fields}, Signature: sig}, nil
	case msg[0] == '{' && w.MessageFormat != string(FormatText):
		var m ChallengeMessage
		if err := json.Unmarshal(msg, &m); err != nil {
			return Token{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		return Token{Challenge: StructuredChallenge{Message: m}, Signature: sig}, nil
	default:
		return Token{}, fmt.Errorf("%w: message has unexpected shape", ErrMalformedToken)
	}
}

// tokenJSON returns the JSON payload of raw, trying base64 first and raw JSON second.
func tokenJSON(raw string) ([]byte, bool) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(raw); err == nil && json.Valid(b) {
			return b, true
		}
	}
	if json.Valid([]byte(raw)) {
		return []byte(raw), true
	}
	return nil, false
}

// CheckStructure validates shape and expiry of raw at instant now.
// The returned error wraps ErrMalformedToken or ErrChallengeExpired.
func CheckStructure(raw string, now time.Time) (Token, error) {
	if len(strings.TrimSpace(raw)) < MinTokenLength {
		return Token{}, fmt.Errorf("%w: too short", ErrMalformedToken)
	}
	tok, err := DecodeToken(raw)
	if err != nil {
		return Token{}, err
	}
	if missing := tok.Challenge.missingFields(); len(missing) > 0 {
		return Token{}, fmt.Errorf("%w: missing %s", ErrMalformedToken, strings.Join(missing, ", "))
	}
	exp, ok := tok.Challenge.Expiry()
	if !ok {
		return Token{}, fmt.Errorf("%w: unparseable expiration", ErrMalformedToken)
	}
	if !now.Before(exp) {
		return Token{}, ErrChallengeExpired
	}
	return tok, nil
}

// ValidateStructure reports whether raw is well formed and unexpired at now.
// It never verifies the signature.
func ValidateStructure(raw string, now time.Time) bool {
	_, err := CheckStructure(raw, now)
	return err == nil
}
