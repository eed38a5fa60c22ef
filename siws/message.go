package siws

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

type challengeConfig struct {
	now       func() time.Time
	random    io.Reader
	window    time.Duration
	statement string
	uri       *string
	chainID   *string
	requestID *string
	resources []string
}

// ChallengeOption customizes BuildChallenge.
type ChallengeOption func(*challengeConfig)

// WithClock overrides the clock used for IssuedAt/NotBefore/ExpirationTime.
func WithClock(now func() time.Time) ChallengeOption {
	return func(c *challengeConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRandom overrides the nonce entropy source.
func WithRandom(r io.Reader) ChallengeOption {
	return func(c *challengeConfig) {
		if r != nil {
			c.random = r
		}
	}
}

// WithWindow overrides DefaultChallengeWindow.
func WithWindow(d time.Duration) ChallengeOption {
	return func(c *challengeConfig) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithStatement overrides DefaultStatement.
func WithStatement(s string) ChallengeOption {
	return func(c *challengeConfig) {
		if strings.TrimSpace(s) != "" {
			c.statement = s
		}
	}
}

// WithURI sets the optional uri field.
func WithURI(uri string) ChallengeOption {
	return func(c *challengeConfig) { c.uri = optional(uri) }
}

// WithChainID sets the optional chainId field (e.g. "solana:mainnet").
func WithChainID(id string) ChallengeOption {
	return func(c *challengeConfig) { c.chainID = optional(id) }
}

// WithRequestID sets the optional requestId field.
func WithRequestID(id string) ChallengeOption {
	return func(c *challengeConfig) { c.requestID = optional(id) }
}

// WithResources sets the optional resources list.
func WithResources(resources ...string) ChallengeOption {
	return func(c *challengeConfig) { c.resources = append([]string(nil), resources...) }
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// BuildChallenge constructs a fresh sign-in challenge for address.
// The address is copied verbatim; validating its format is the caller's concern.
// Exactly one nonce is generated per call.
func BuildChallenge(address, domain string, opts ...ChallengeOption) (ChallengeMessage, error) {
	cfg := challengeConfig{
		now:       time.Now,
		random:    rand.Reader,
		window:    DefaultChallengeWindow,
		statement: DefaultStatement,
	}
	for _, o := range opts {
		o(&cfg)
	}

	nonce, err := NewNonce(cfg.random)
	if err != nil {
		return ChallengeMessage{}, err
	}

	// Millisecond precision keeps the rendered window exact.
	now := cfg.now().UTC().Truncate(time.Millisecond)
	return ChallengeMessage{
		Domain:         domain,
		Address:        address,
		Statement:      cfg.statement,
		URI:            cfg.uri,
		Version:        Version,
		ChainID:        cfg.chainID,
		Nonce:          nonce,
		IssuedAt:       FormatTime(now),
		NotBefore:      FormatTime(now),
		ExpirationTime: FormatTime(now.Add(cfg.window)),
		RequestID:      cfg.requestID,
		Resources:      cfg.resources,
	}, nil
}

// Expiry parses ExpirationTime.
func (m ChallengeMessage) Expiry() (time.Time, error) {
	return ParseTime(m.ExpirationTime)
}

// IssuedTime parses IssuedAt.
func (m ChallengeMessage) IssuedTime() (time.Time, error) {
	return ParseTime(m.IssuedAt)
}

// ValidAt reports whether t falls inside [NotBefore, ExpirationTime).
// A missing NotBefore falls back to IssuedAt.
func (m ChallengeMessage) ValidAt(t time.Time) bool {
	exp, err := m.Expiry()
	if err != nil || !t.Before(exp) {
		return false
	}
	start := m.NotBefore
	if start == "" {
		start = m.IssuedAt
	}
	nbf, err := ParseTime(start)
	if err != nil {
		return false
	}
	return !t.Before(nbf)
}

// CanonicalJSON is the byte string a wallet signs for the structured variant.
// Field order follows the struct declaration and HTML characters are not escaped,
// which matches JSON.stringify output for the same object.
func (m ChallengeMessage) CanonicalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// RenderText renders m in the multi-line text form used by the text wire variant.
func RenderText(m ChallengeMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s wants you to sign in with your Solana account:\n", m.Domain)
	b.WriteString(m.Address)
	b.WriteString("\n\n")
	if m.Statement != "" {
		b.WriteString(m.Statement)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Wallet: %s\n", m.Address)
	if m.URI != nil {
		fmt.Fprintf(&b, "URI: %s\n", *m.URI)
	}
	fmt.Fprintf(&b, "Version: %s\n", m.Version)
	if m.ChainID != nil {
		fmt.Fprintf(&b, "Chain ID: %s\n", *m.ChainID)
	}
	fmt.Fprintf(&b, "Nonce: %s\n", m.Nonce)
	fmt.Fprintf(&b, "Issued At: %s\n", m.IssuedAt)
	if m.NotBefore != "" {
		fmt.Fprintf(&b, "Not Before: %s\n", m.NotBefore)
	}
	fmt.Fprintf(&b, "Expires: %s", m.ExpirationTime)
	if m.RequestID != nil {
		fmt.Fprintf(&b, "\nRequest ID: %s", *m.RequestID)
	}
	if len(m.Resources) > 0 {
		b.WriteString("\nResources:")
		for _, r := range m.Resources {
			fmt.Fprintf(&b, "\n- %s", r)
		}
	}
	return b.String()
}

// TextFields holds the values recoverable from a rendered text challenge.
// Empty strings mean the corresponding line was absent.
type TextFields struct {
	Domain    string
	Address   string
	Statement string
	Nonce     string
	IssuedAt  string
	Expires   string
}

var (
	reHeader   = regexp.MustCompile(`^(\S+) wants you to sign in with your Solana account:`)
	reWallet   = regexp.MustCompile(`(?m)^Wallet:\s*(\S+)\s*$`)
	reNonce    = regexp.MustCompile(`(?m)^Nonce:\s*(\S+)\s*$`)
	reIssuedAt = regexp.MustCompile(`(?m)^Issued At:\s*(\S+)\s*$`)
	reExpires  = regexp.MustCompile(`(?m)^Expires:\s*(\S+)\s*$`)
	reField    = regexp.MustCompile(`^(Wallet|URI|Version|Chain ID|Nonce|Issued At|Not Before|Expires|Request ID|Resources):`)
)

// ErrNotChallengeText is returned by ParseText when no field line can be found.
var ErrNotChallengeText = errors.New("text is not a sign-in challenge")

// ParseText extracts challenge fields from a rendered text message by line matching.
// Unknown lines are ignored so wallets that add their own lines still parse.
func ParseText(s string) (TextFields, error) {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var f TextFields
	if m := reHeader.FindStringSubmatch(s); m != nil {
		f.Domain = m[1]
		f.Statement = statementBlock(strings.Split(s, "\n"))
	}
	f.Address = firstGroup(reWallet, s)
	f.Nonce = firstGroup(reNonce, s)
	f.IssuedAt = firstGroup(reIssuedAt, s)
	f.Expires = firstGroup(reExpires, s)
	if f.Address == "" && f.Expires == "" && f.Nonce == "" && f.IssuedAt == "" {
		return TextFields{}, ErrNotChallengeText
	}
	return f, nil
}

// statementBlock returns the paragraph between the address line and the field lines.
func statementBlock(lines []string) string {
	if len(lines) < 4 || lines[2] != "" || reField.MatchString(lines[3]) {
		return ""
	}
	var out []string
	for _, l := range lines[3:] {
		if l == "" || reField.MatchString(l) {
			break
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}
