package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SignInRecord is one row of the sign-in audit log.
type SignInRecord struct {
	ID         string
	Address    string
	Format     string
	Strategy   string
	Relaxed    bool
	IPAddr     *string
	UserAgent  *string
	OccurredAt time.Time
}

const signInSchema = `
CREATE SCHEMA IF NOT EXISTS cpop;
CREATE TABLE IF NOT EXISTS cpop.wallet_signins (
	id          uuid PRIMARY KEY,
	address     text NOT NULL,
	format      text NOT NULL,
	strategy    text NOT NULL,
	relaxed     boolean NOT NULL DEFAULT false,
	ip_addr     text,
	user_agent  text,
	occurred_at timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS wallet_signins_occurred_at_idx ON cpop.wallet_signins (occurred_at);
CREATE INDEX IF NOT EXISTS wallet_signins_address_idx ON cpop.wallet_signins (address, occurred_at DESC);
`

// EnsureSignInSchema creates the sign-in log table if it does not exist.
func (s *Service) EnsureSignInSchema(ctx context.Context) error {
	if s.pg == nil {
		return nil
	}
	_, err := s.pg.Exec(ctx, signInSchema)
	return err
}

// RecordSignIn appends rec to the sign-in log. It is a no-op without Postgres.
func (s *Service) RecordSignIn(ctx context.Context, rec SignInRecord) error {
	if s.pg == nil {
		return nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = s.now().UTC()
	}
	meta := requestMetaFromContext(ctx)
	if rec.IPAddr == nil {
		rec.IPAddr = meta.ip
	}
	if rec.UserAgent == nil {
		rec.UserAgent = meta.userAgent
	}
	_, err := s.pg.Exec(ctx, `
		INSERT INTO cpop.wallet_signins (id, address, format, strategy, relaxed, ip_addr, user_agent, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.Address, rec.Format, rec.Strategy, rec.Relaxed, rec.IPAddr, rec.UserAgent, rec.OccurredAt)
	return err
}

// ListSignIns returns the most recent sign-ins for address, newest first.
func (s *Service) ListSignIns(ctx context.Context, address string, limit int) ([]SignInRecord, error) {
	if s.pg == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pg.Query(ctx, `
		SELECT id::text, address, format, strategy, relaxed, ip_addr, user_agent, occurred_at
		FROM cpop.wallet_signins
		WHERE address = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, address, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SignInRecord
	for rows.Next() {
		var r SignInRecord
		if err := rows.Scan(&r.ID, &r.Address, &r.Format, &r.Strategy, &r.Relaxed, &r.IPAddr, &r.UserAgent, &r.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PurgeSignInsBefore deletes up to limit sign-ins older than cutoff and returns how many went.
func (s *Service) PurgeSignInsBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if s.pg == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = 500
	}
	tag, err := s.pg.Exec(ctx, `
		DELETE FROM cpop.wallet_signins
		WHERE id IN (
			SELECT id FROM cpop.wallet_signins
			WHERE occurred_at < $1
			ORDER BY occurred_at ASC
			LIMIT $2
		)
	`, cutoff, limit)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
