package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// SessionEventType identifies a session lifecycle event.
type SessionEventType string

const (
	SessionEventSignedIn     SessionEventType = "signed_in"
	SessionEventLoggedOut    SessionEventType = "logged_out"
	SessionEventInvalidated  SessionEventType = "session_invalidated"
	SessionEventSignInFailed SessionEventType = "sign_in_failed"
)

// SessionEvent is a best-effort, append-only session lifecycle record intended for external sinks.
type SessionEvent struct {
	ID         string           `json:"id"`
	OccurredAt time.Time        `json:"occurred_at"`
	Event      SessionEventType `json:"event"`
	Address    string           `json:"address,omitempty"`
	// SessionAddress is the wallet the server session was bound to (session_invalidated only).
	SessionAddress string  `json:"session_address,omitempty"`
	Reason         *string `json:"reason,omitempty"`
	IPAddr         *string `json:"ip_addr,omitempty"`
	UserAgent      *string `json:"user_agent,omitempty"`
	// Relaxed marks sign-ins accepted without a verified Ed25519 signature.
	Relaxed bool `json:"relaxed,omitempty"`
}

// EventPublisher records session events. Implementations should be non-blocking and best-effort.
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, e SessionEvent) error
}

// LogEventPublisher writes events to logrus. It is the fallback when no broker is configured.
type LogEventPublisher struct {
	Logger *log.Entry
}

func (p LogEventPublisher) PublishSessionEvent(ctx context.Context, e SessionEvent) error {
	l := p.Logger
	if l == nil {
		l = log.NewEntry(log.StandardLogger())
	}
	fields := log.Fields{
		"event_id": e.ID,
		"event":    e.Event,
		"address":  e.Address,
	}
	if e.SessionAddress != "" {
		fields["session_address"] = e.SessionAddress
	}
	if e.Reason != nil {
		fields["reason"] = *e.Reason
	}
	if e.IPAddr != nil {
		fields["ip"] = *e.IPAddr
	}
	if e.Relaxed {
		fields["relaxed"] = true
	}
	l.WithContext(ctx).WithFields(fields).Info("session event")
	return nil
}

func (s *Service) publish(ctx context.Context, e SessionEvent) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now().UTC()
	}
	meta := requestMetaFromContext(ctx)
	if e.IPAddr == nil {
		e.IPAddr = meta.ip
	}
	if e.UserAgent == nil {
		e.UserAgent = meta.userAgent
	}
	pub := s.events
	if pub == nil {
		pub = LogEventPublisher{Logger: s.log}
	}
	if err := pub.PublishSessionEvent(ctx, e); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("event", e.Event).Warn("publish session event failed")
	}
}
