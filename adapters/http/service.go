package authhttp

import (
	"context"
	"net/http"
	"strings"
	"time"

	core "github.com/chainsona/cpop-sub001/core"
	memorystore "github.com/chainsona/cpop-sub001/storage/memory"
	redisstore "github.com/chainsona/cpop-sub001/storage/redis"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Service wraps core.Service with net/http mounting helpers.
type Service struct {
	svc        *core.Service
	rd         redis.UniversalClient
	rl         RateLimiter
	clientIP   ClientIPFunc
	cookies    CookieConfig
	sessions   SessionResolver
	validation *memorystore.ValidationCache
	challenges *memorystore.ChallengeCache
}

func (s *Service) allow(r *http.Request, bucket string) bool {
	if s == nil || s.rl == nil {
		return true
	}
	ip := s.ipFor(r)
	if strings.TrimSpace(ip) == "" {
		return true
	}
	key := "auth:" + bucket + ":ip:" + ip
	ok, err := s.rl.AllowNamed(bucket, key)
	if err != nil {
		return true
	}
	return ok
}

func (s *Service) ipFor(r *http.Request) string {
	ipFn := s.clientIP
	if ipFn == nil {
		ipFn = DefaultClientIP()
	}
	return ipFn(r)
}

// NewService constructs a core.Service and wraps it for net/http mounting.
// Stores default to in-memory implementations; call WithRedis for multi-instance deployments.
func NewService(cfg core.Config) (*Service, error) {
	coreSvc, err := core.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(coreSvc, CookieConfig{Secure: cfg.CookieSecure}), nil
}

// Wrap mounts an existing core.Service with in-memory defaults.
func Wrap(coreSvc *core.Service, cookies CookieConfig) *Service {
	s := &Service{
		svc:      coreSvc,
		rl:       memorystore.NewRateLimiter(ToMemoryLimits(DefaultRateLimits())),
		clientIP: DefaultClientIP(),
		cookies:  cookies,
	}
	s.validation = memorystore.NewValidationCache(coreSvc.Options().ValidationCacheTTL, coreSvc.ValidateStructure)
	s.challenges = memorystore.NewChallengeCache(15 * time.Minute)
	coreSvc.WithEphemeralStore(memorystore.NewKV(), core.EphemeralMemory).
		WithStructureCache(s.validation).
		WithChallengeCache(s.challenges)
	s.sessions = CoreSessionResolver(coreSvc, s.cookies)
	return s
}

// Start runs background sweeps for the in-memory caches until ctx is done.
func (s *Service) Start(ctx context.Context) {
	s.validation.Start(ctx)
	if s.challenges != nil {
		s.challenges.Start(ctx, time.Minute)
	}
}

// Close stops the validation cache sweeper.
func (s *Service) Close() { s.validation.Close() }

func (s *Service) WithPostgres(pg *pgxpool.Pool) *Service { s.svc = s.svc.WithPostgres(pg); return s }

// WithRedis moves session bindings, pending challenges and rate limits to Redis.
func (s *Service) WithRedis(rd redis.UniversalClient) *Service {
	s.rd = rd
	if rd != nil {
		s.challenges = nil
		s.svc = s.svc.WithEphemeralStore(redisstore.NewKV(rd, ""), core.EphemeralRedis).
			WithChallengeCache(redisstore.NewChallengeCache(rd, 15*time.Minute))
		s.rl = redisstore.NewRateLimiter(rd, ToRedisLimits(DefaultRateLimits()))
	}
	return s
}
func (s *Service) WithRateLimiter(rl RateLimiter) *Service { s.rl = rl; return s }
func (s *Service) DisableRateLimiter() *Service            { s.rl = nil; return s }
func (s *Service) WithClientIPFunc(fn ClientIPFunc) *Service {
	if fn == nil {
		s.clientIP = DefaultClientIP()
		return s
	}
	s.clientIP = fn
	return s
}
func (s *Service) WithEventPublisher(p core.EventPublisher) *Service {
	s.svc = s.svc.WithEventPublisher(p)
	return s
}
func (s *Service) WithEphemeralStore(store core.EphemeralStore, mode core.EphemeralMode) *Service {
	s.svc = s.svc.WithEphemeralStore(store, mode)
	return s
}

// WithSessionResolver replaces the default cookie-bound server session lookup.
// Passing nil disables the dual-session check.
func (s *Service) WithSessionResolver(r SessionResolver) *Service { s.sessions = r; return s }

func (s *Service) Core() *core.Service { return s.svc }

// Cookies returns the cookie settings in use.
func (s *Service) Cookies() CookieConfig { return s.cookies }

func (s *Service) middlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		Sessions:    s.sessions,
		Cookies:     s.cookies,
		Invalidator: s.svc,
	}
}

// Required is the auth middleware configured with this service's session resolver.
func (s *Service) Required() func(http.Handler) http.Handler {
	return Required(s.svc, s.middlewareConfig())
}

// Optional is Required without the 401 on missing or invalid tokens.
func (s *Service) Optional() func(http.Handler) http.Handler {
	return Optional(s.svc, s.middlewareConfig())
}
