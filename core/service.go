package core

import (
	"os"
	"strings"
	"time"

	"github.com/chainsona/cpop-sub001/siws"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Options configures challenge issuance and token verification.
type Options struct {
	// Domain is written into every server-built challenge.
	Domain string
	// BaseURL is the app origin, used as the challenge uri.
	BaseURL string
	// ChainID, e.g. "solana:mainnet". Empty omits the field.
	ChainID            string
	ChallengeWindow    time.Duration
	ValidationCacheTTL time.Duration
	// StrictSignatures disables the relaxed 64-byte acceptance path.
	StrictSignatures bool
	// SessionBindingTTL bounds how long a server session remembers its wallet.
	SessionBindingTTL time.Duration
}

// StructureCache memoizes siws.ValidateStructure verdicts.
type StructureCache interface {
	IsStructurallyValid(token string) bool
}

// Service is the wallet authentication service used by HTTP adapters.
type Service struct {
	opts           Options
	verifier       *siws.Verifier
	structure      StructureCache
	challenges     siws.ChallengeCache
	pg             *pgxpool.Pool
	events         EventPublisher
	ephemeralStore EphemeralStore
	ephemeralMode  EphemeralMode
	log            *log.Entry
	now            func() time.Time
}

func NewService(opts Options) *Service {
	if opts.ChallengeWindow <= 0 {
		opts.ChallengeWindow = siws.DefaultChallengeWindow
	}
	if opts.SessionBindingTTL <= 0 {
		opts.SessionBindingTTL = opts.ChallengeWindow
	}
	entry := log.WithField("component", "cpop-auth")
	v := siws.NewVerifier()
	v.Strict = opts.StrictSignatures
	v.Logger = entry
	return &Service{
		opts:          opts,
		verifier:      v,
		ephemeralMode: EphemeralMemory,
		log:           entry,
		now:           time.Now,
	}
}

// NewFromConfig creates a Service from environment configuration.
func NewFromConfig(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewService(cfg.Options()), nil
}

// Options exposes immutable configuration.
func (s *Service) Options() Options { return s.opts }

// Verifier returns the signature verifier in use.
func (s *Service) Verifier() *siws.Verifier { return s.verifier }

// WithPostgres attaches a pgx pool used for the sign-in log.
func (s *Service) WithPostgres(pool *pgxpool.Pool) *Service { s.pg = pool; return s }

// Postgres returns the attached pgx pool (may be nil).
func (s *Service) Postgres() *pgxpool.Pool { return s.pg }

// WithStructureCache memoizes structural validation. Without one every request decodes.
func (s *Service) WithStructureCache(c StructureCache) *Service { s.structure = c; return s }

// WithChallengeCache enables server-issued, single-use challenges.
func (s *Service) WithChallengeCache(c siws.ChallengeCache) *Service { s.challenges = c; return s }

// WithEventPublisher sets the session lifecycle sink.
func (s *Service) WithEventPublisher(p EventPublisher) *Service { s.events = p; return s }

// WithLogger replaces the service logger; the verifier logs through it too.
func (s *Service) WithLogger(l *log.Entry) *Service {
	if l != nil {
		s.log = l
		s.verifier.Logger = l
	}
	return s
}

// WithClock overrides time.Now.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// ValidateStructure is the uncached structural check at the service clock.
func (s *Service) ValidateStructure(raw string) bool {
	return siws.ValidateStructure(raw, s.now())
}

// IsDevEnvironment reports whether the current ENV/APP_ENV/ENVIRONMENT is non-production.
func IsDevEnvironment() bool {
	return isDevEnvironment(getEnvironment())
}

func getEnvironment() string {
	env := os.Getenv("ENV")
	if env == "" {
		env = os.Getenv("APP_ENV")
	}
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	return env
}

// isDevEnvironment returns true unless the environment is explicitly set to prod/production
func isDevEnvironment(env string) bool {
	e := strings.ToLower(strings.TrimSpace(env))
	return e != "prod" && e != "production"
}
