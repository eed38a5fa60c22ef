// Package wallet reconciles the server-side wallet sign-in with the wallet currently
// connected on the client, and keeps the issued token persisted in both client slots.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chainsona/cpop-sub001/siws"
	"github.com/mr-tron/base58"
	log "github.com/sirupsen/logrus"
)

var (
	ErrSignInInProgress = errors.New("wallet: sign-in already in progress")
	ErrSignAborted      = errors.New("wallet: sign-in aborted")
	ErrNoWallet         = errors.New("wallet: no wallet connected")
	ErrNotMismatched    = errors.New("wallet: signed-in and connected wallets already agree")
)

// Signer is a connected wallet able to sign raw message bytes.
type Signer interface {
	Address() string
	Sign(ctx context.Context, message []byte) ([]byte, error)
}

// TokenVerifier checks a raw token and returns the wallet it authenticates. *core.Service implements it.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, raw string) (string, error)
}

// Navigator exposes the client's current route so logout can leave protected pages.
type Navigator interface {
	CurrentRoute() string
	Redirect(route string)
}

// Observer receives every recomputed snapshot.
type Observer func(IdentitySnapshot)

// Options configures a Session. Domain is required.
type Options struct {
	Domain    string
	URI       string
	ChainID   string
	Statement string
	// ProtectedRoutes are path prefixes that require a signed-in wallet.
	ProtectedRoutes []string
	// LoginRoute is where Logout sends the user from a protected route. Defaults to "/".
	LoginRoute string
	Navigator  Navigator
	Observer   Observer
	Clock      func() time.Time
	Logger     *log.Entry
}

// Session is the client session state machine. All methods are safe for concurrent use.
type Session struct {
	store    *TokenStore
	verifier TokenVerifier
	opts     Options
	log      *log.Entry

	mu         sync.Mutex
	authAddr   string
	activeAddr string
	signer     Signer
	signing    bool
	// gen increments on every state change so in-flight sign-ins can detect they are stale.
	gen uint64
}

func NewSession(store *TokenStore, verifier TokenVerifier, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.LoginRoute == "" {
		opts.LoginRoute = "/"
	}
	l := opts.Logger
	if l == nil {
		l = log.WithField("component", "wallet.session")
	}
	return &Session{store: store, verifier: verifier, opts: opts, log: l}
}

// Snapshot returns the current derived identity view.
func (s *Session) Snapshot() IdentitySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return newSnapshot(s.authAddr, s.activeAddr)
}

// State is shorthand for Snapshot().State.
func (s *Session) State() State { return s.Snapshot().State }

// Load restores the signed-in wallet from the persisted token. An invalid or expired token
// is cleared from both slots.
func (s *Session) Load(ctx context.Context) (IdentitySnapshot, error) {
	var addr string
	raw, ok := s.store.Read(ctx)
	if ok {
		a, err := s.verifier.VerifyToken(ctx, raw)
		if err != nil {
			s.log.WithContext(ctx).WithError(err).Debug("stored token rejected")
		} else {
			addr = a
		}
	}
	if addr == "" {
		if err := s.store.Clear(ctx); err != nil {
			return s.Snapshot(), err
		}
	}

	s.mu.Lock()
	s.authAddr = addr
	s.gen++
	snap := newSnapshot(s.authAddr, s.activeAddr)
	s.mu.Unlock()
	s.notify(snap)
	return snap, nil
}

// Connect records signer as the active wallet. Without a signed-in wallet it runs a fresh
// sign-in first; a failed sign-in leaves the session untouched. A different signed-in wallet
// yields the mismatched state and no automatic re-authentication.
func (s *Session) Connect(ctx context.Context, signer Signer) (IdentitySnapshot, error) {
	if signer == nil || signer.Address() == "" {
		return s.Snapshot(), ErrNoWallet
	}

	s.mu.Lock()
	if s.authAddr != "" {
		s.activeAddr = signer.Address()
		s.signer = signer
		s.gen++
		snap := newSnapshot(s.authAddr, s.activeAddr)
		s.mu.Unlock()
		s.notify(snap)
		return snap, nil
	}
	s.mu.Unlock()

	return s.signIn(ctx, signer, false)
}

// Reauthenticate signs in again with the connected wallet. Only valid while mismatched.
func (s *Session) Reauthenticate(ctx context.Context) (IdentitySnapshot, error) {
	s.mu.Lock()
	signer := s.signer
	mismatched := Mismatch(s.authAddr, s.activeAddr)
	s.mu.Unlock()
	if !mismatched {
		return s.Snapshot(), ErrNotMismatched
	}
	if signer == nil {
		return s.Snapshot(), ErrNoWallet
	}
	return s.signIn(ctx, signer, true)
}

// Disconnect forgets the active wallet. A signed-in wallet stays signed in.
func (s *Session) Disconnect() IdentitySnapshot {
	s.mu.Lock()
	s.activeAddr = ""
	s.signer = nil
	s.gen++
	snap := newSnapshot(s.authAddr, s.activeAddr)
	s.mu.Unlock()
	s.notify(snap)
	return snap
}

// Logout clears both token slots, signs the wallet out and leaves any protected route.
func (s *Session) Logout(ctx context.Context) (IdentitySnapshot, error) {
	err := s.store.Clear(ctx)

	s.mu.Lock()
	s.authAddr = ""
	s.gen++
	snap := newSnapshot(s.authAddr, s.activeAddr)
	s.mu.Unlock()
	s.notify(snap)

	if nav := s.opts.Navigator; nav != nil && s.isProtected(nav.CurrentRoute()) {
		nav.Redirect(s.opts.LoginRoute)
	}
	return snap, err
}

// signIn builds a fresh challenge, has signer sign it, and only then persists the token and
// updates state. replace clears the existing token first.
func (s *Session) signIn(ctx context.Context, signer Signer, replace bool) (IdentitySnapshot, error) {
	s.mu.Lock()
	if s.signing {
		s.mu.Unlock()
		return s.Snapshot(), ErrSignInInProgress
	}
	s.signing = true
	gen := s.gen
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.signing = false
		s.mu.Unlock()
	}()

	raw, exp, err := s.buildToken(ctx, signer)
	if err != nil {
		return s.Snapshot(), fmt.Errorf("%w: %w", ErrSignAborted, err)
	}

	s.mu.Lock()
	stale := s.gen != gen
	s.mu.Unlock()
	if stale {
		return s.Snapshot(), fmt.Errorf("%w: session changed while signing", ErrSignAborted)
	}

	if replace {
		if err := s.store.Clear(ctx); err != nil {
			return s.Snapshot(), err
		}
	}
	if err := s.store.Persist(ctx, raw, exp); err != nil {
		return s.Snapshot(), err
	}
	authAddr, err := s.storedAddress(ctx, signer, raw, exp)
	if err != nil {
		return s.Snapshot(), err
	}

	s.mu.Lock()
	s.authAddr = authAddr
	s.activeAddr = signer.Address()
	s.signer = signer
	s.gen++
	snap := newSnapshot(s.authAddr, s.activeAddr)
	s.mu.Unlock()
	s.notify(snap)

	s.log.WithContext(ctx).WithFields(log.Fields{
		"address":  signer.Address(),
		"mismatch": snap.Mismatch,
	}).Info("wallet signed in")
	return snap, nil
}

// storedAddress reads the token back after a Persist, which never overwrites a slot that
// already holds a value, and returns the wallet that token authenticates. A stored token
// that no longer verifies is replaced by raw.
func (s *Session) storedAddress(ctx context.Context, signer Signer, raw string, exp time.Time) (string, error) {
	stored, ok := s.store.Read(ctx)
	if !ok {
		return "", errors.New("wallet: token not persisted")
	}
	if stored == raw {
		return signer.Address(), nil
	}
	addr, err := s.verifier.VerifyToken(ctx, stored)
	if err == nil {
		s.log.WithContext(ctx).WithField("stored_address", addr).Warn("token store holds another sign-in")
		return addr, nil
	}
	if err := s.store.Clear(ctx); err != nil {
		return "", err
	}
	if err := s.store.Persist(ctx, raw, exp); err != nil {
		return "", err
	}
	return signer.Address(), nil
}

func (s *Session) buildToken(ctx context.Context, signer Signer) (string, time.Time, error) {
	opts := []siws.ChallengeOption{siws.WithClock(s.opts.Clock)}
	if s.opts.URI != "" {
		opts = append(opts, siws.WithURI(s.opts.URI))
	}
	if s.opts.ChainID != "" {
		opts = append(opts, siws.WithChainID(s.opts.ChainID))
	}
	if s.opts.Statement != "" {
		opts = append(opts, siws.WithStatement(s.opts.Statement))
	}
	msg, err := siws.BuildChallenge(signer.Address(), s.opts.Domain, opts...)
	if err != nil {
		return "", time.Time{}, err
	}
	challenge := siws.StructuredChallenge{Message: msg}
	payload, err := challenge.SignedBytes()
	if err != nil {
		return "", time.Time{}, err
	}

	if err := ctx.Err(); err != nil {
		return "", time.Time{}, err
	}
	sig, err := signer.Sign(ctx, payload)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := ctx.Err(); err != nil {
		return "", time.Time{}, err
	}

	raw, err := siws.EncodeToken(siws.Token{Challenge: challenge, Signature: base58.Encode(sig)})
	if err != nil {
		return "", time.Time{}, err
	}
	exp, err := msg.Expiry()
	if err != nil {
		return "", time.Time{}, err
	}
	return raw, exp, nil
}

func (s *Session) isProtected(route string) bool {
	for _, p := range s.opts.ProtectedRoutes {
		if route == p || strings.HasPrefix(route, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

func (s *Session) notify(snap IdentitySnapshot) {
	if s.opts.Observer != nil {
		s.opts.Observer(snap)
	}
}
