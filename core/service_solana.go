package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chainsona/cpop-sub001/siws"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// serverChallengeTTL bounds how long a server-issued nonce can be redeemed at login.
const serverChallengeTTL = 15 * time.Minute

// Identity is the authenticated wallet behind a verified token.
type Identity struct {
	Address   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Format    siws.MessageFormat
	// Relaxed is true when the signature was accepted without Ed25519 proof.
	Relaxed  bool
	Strategy string
}

// IssueChallenge builds a challenge for address and, when a challenge cache is configured,
// stores it so Login can consume its nonce exactly once.
func (s *Service) IssueChallenge(ctx context.Context, address string) (siws.ChallengeMessage, error) {
	if err := siws.ValidateAddress(address); err != nil {
		return siws.ChallengeMessage{}, fmt.Errorf("invalid solana address: %w", err)
	}

	opts := []siws.ChallengeOption{
		siws.WithClock(s.now),
		siws.WithWindow(s.opts.ChallengeWindow),
		siws.WithRequestID(uuid.NewString()),
	}
	if s.opts.BaseURL != "" {
		opts = append(opts, siws.WithURI(s.opts.BaseURL))
	}
	if s.opts.ChainID != "" {
		opts = append(opts, siws.WithChainID(s.opts.ChainID))
	}
	msg, err := siws.BuildChallenge(address, s.opts.Domain, opts...)
	if err != nil {
		return siws.ChallengeMessage{}, fmt.Errorf("failed to build challenge: %w", err)
	}

	if s.challenges != nil {
		now := s.now().UTC()
		data := siws.ChallengeData{
			Address:   address,
			IssuedAt:  now,
			ExpiresAt: now.Add(serverChallengeTTL),
			Message:   msg,
		}
		if err := s.challenges.Put(ctx, msg.Nonce, data); err != nil {
			return siws.ChallengeMessage{}, fmt.Errorf("failed to store challenge: %w", err)
		}
	}
	return msg, nil
}

// Authenticate runs the structural check (cached when configured) and then full signature
// verification. Verification is never cached. Returned errors wrap one of
// ErrMissingToken, ErrMalformedToken, ErrExpiredChallenge or ErrSignatureMismatch.
func (s *Service) Authenticate(ctx context.Context, raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, ErrMissingToken
	}
	now := s.now()

	valid := false
	if s.structure != nil {
		valid = s.structure.IsStructurallyValid(raw)
	} else {
		valid = siws.ValidateStructure(raw, now)
	}
	if !valid {
		_, err := siws.CheckStructure(raw, now)
		if err == nil {
			err = ErrMalformedToken
		}
		return Identity{}, err
	}

	tok, err := siws.DecodeToken(raw)
	if err != nil {
		return Identity{}, err
	}
	// A cached verdict can outlive the token by up to the cache TTL.
	exp, ok := tok.Challenge.Expiry()
	if !ok {
		return Identity{}, ErrMalformedToken
	}
	if !now.Before(exp) {
		return Identity{}, ErrExpiredChallenge
	}

	res := s.verifier.Check(tok.Challenge, tok.Signature, tok.Challenge.Address())
	if !res.OK() {
		aerr := newAuthError(ErrSignatureMismatch, tok)
		s.log.WithContext(ctx).WithFields(log.Fields{
			"address":       aerr.Address,
			"nonce_prefix":  aerr.NoncePrefix,
			"signature_len": aerr.SignatureLen,
			"format":        tok.Challenge.Format(),
			"reason":        res.Reason,
		}).Info("wallet signature rejected")
		return Identity{}, aerr
	}

	iat, _ := tok.Challenge.IssuedAt()
	return Identity{
		Address:   tok.Challenge.Address(),
		IssuedAt:  iat,
		ExpiresAt: exp,
		Format:    tok.Challenge.Format(),
		Relaxed:   res.Outcome == siws.OutcomeRelaxed,
		Strategy:  res.Strategy,
	}, nil
}

// VerifyToken returns the wallet address a token authenticates.
func (s *Service) VerifyToken(ctx context.Context, raw string) (string, error) {
	id, err := s.Authenticate(ctx, raw)
	if err != nil {
		return "", err
	}
	return id.Address, nil
}

// CheckSessionConsistency fails with ErrIdentityMismatch when both addresses are known and differ.
func CheckSessionConsistency(tokenAddress, sessionAddress string) error {
	if tokenAddress != "" && sessionAddress != "" && tokenAddress != sessionAddress {
		return ErrIdentityMismatch
	}
	return nil
}

// Login authenticates raw, redeems its nonce if the server issued it, records the sign-in
// and publishes a signed_in event. A server-issued nonce is redeemable once; replays fail
// with ErrChallengeRedeemed.
func (s *Service) Login(ctx context.Context, raw string) (Identity, error) {
	id, err := s.Authenticate(ctx, raw)
	if err != nil {
		s.publishFailure(ctx, err)
		return Identity{}, err
	}

	if s.challenges != nil {
		tok, _ := siws.DecodeToken(raw)
		if nonce := tok.Challenge.Nonce(); nonce != "" {
			data, found, err := s.challenges.Take(ctx, nonce)
			switch {
			case errors.Is(err, siws.ErrChallengeRedeemed):
				aerr := newAuthError(ErrChallengeRedeemed, tok)
				s.publishFailure(ctx, aerr)
				return Identity{}, aerr
			case err != nil:
				return Identity{}, fmt.Errorf("failed to redeem challenge: %w", err)
			case found && data.Address != id.Address:
				aerr := newAuthError(ErrSignatureMismatch, tok)
				s.publishFailure(ctx, aerr)
				return Identity{}, aerr
			}
		}
	}

	if err := s.RecordSignIn(ctx, SignInRecord{
		Address:  id.Address,
		Format:   string(id.Format),
		Strategy: id.Strategy,
		Relaxed:  id.Relaxed,
	}); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("record sign-in failed")
	}
	s.publish(ctx, SessionEvent{Event: SessionEventSignedIn, Address: id.Address, Relaxed: id.Relaxed})
	return id, nil
}

// Logout publishes a logged_out event for address. Tokens are stateless so nothing is revoked.
func (s *Service) Logout(ctx context.Context, address string) {
	s.publish(ctx, SessionEvent{Event: SessionEventLoggedOut, Address: address})
}

// InvalidateSession publishes a session_invalidated event for a dual-session conflict.
func (s *Service) InvalidateSession(ctx context.Context, tokenAddress, sessionAddress string) {
	reason := ErrIdentityMismatch.Error()
	s.publish(ctx, SessionEvent{
		Event:          SessionEventInvalidated,
		Address:        tokenAddress,
		SessionAddress: sessionAddress,
		Reason:         &reason,
	})
}

func (s *Service) publishFailure(ctx context.Context, err error) {
	var aerr *AuthError
	e := SessionEvent{Event: SessionEventSignInFailed}
	if errors.As(err, &aerr) {
		e.Address = aerr.Address
		reason := aerr.Kind.Error()
		e.Reason = &reason
	} else {
		reason := err.Error()
		e.Reason = &reason
	}
	s.publish(ctx, e)
}
