package authgin

import (
	"context"
	"time"

	"github.com/chainsona/cpop-sub001/adapters/gin/handlers"
	"github.com/chainsona/cpop-sub001/adapters/ginutil"
	authhttp "github.com/chainsona/cpop-sub001/adapters/http"
	core "github.com/chainsona/cpop-sub001/core"
	memorystore "github.com/chainsona/cpop-sub001/storage/memory"
	redisstore "github.com/chainsona/cpop-sub001/storage/redis"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Service wraps core.Service with gin mounting helpers.
type Service struct {
	svc        *core.Service
	rd         redis.UniversalClient
	rl         ginutil.RateLimiter
	cookies    authhttp.CookieConfig
	validation *memorystore.ValidationCache
}

// NewService constructs a core.Service and wraps it for gin mounting.
func NewService(cfg core.Config) (*Service, error) {
	coreSvc, err := core.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(coreSvc, authhttp.CookieConfig{Secure: cfg.CookieSecure}), nil
}

// Wrap mounts an existing core.Service with in-memory stores.
func Wrap(coreSvc *core.Service, cookies authhttp.CookieConfig) *Service {
	s := &Service{svc: coreSvc, cookies: cookies}
	s.validation = memorystore.NewValidationCache(coreSvc.Options().ValidationCacheTTL, coreSvc.ValidateStructure)
	coreSvc.WithEphemeralStore(memorystore.NewKV(), core.EphemeralMemory).
		WithStructureCache(s.validation).
		WithChallengeCache(memorystore.NewChallengeCache(15 * time.Minute))
	return s
}

func (s *Service) WithPostgres(pg *pgxpool.Pool) *Service { s.svc = s.svc.WithPostgres(pg); return s }

// WithRedis moves session bindings and pending challenges to Redis.
func (s *Service) WithRedis(rd redis.UniversalClient) *Service {
	s.rd = rd
	if rd != nil {
		s.svc = s.svc.WithEphemeralStore(redisstore.NewKV(rd, ""), core.EphemeralRedis).
			WithChallengeCache(redisstore.NewChallengeCache(rd, 15*time.Minute))
	}
	return s
}
func (s *Service) WithRateLimiter(rl ginutil.RateLimiter) *Service { s.rl = rl; return s }
func (s *Service) WithEventPublisher(p core.EventPublisher) *Service {
	s.svc = s.svc.WithEventPublisher(p)
	return s
}

// Start runs the validation cache sweeper until ctx is done.
func (s *Service) Start(ctx context.Context) { s.validation.Start(ctx) }

func (s *Service) Close() { s.validation.Close() }

func (s *Service) Core() *core.Service { return s.svc }

// GinRegisterAPI mounts the wallet auth JSON endpoints under the given router/group (e.g., /api/v1).
func (s *Service) GinRegisterAPI(api gin.IRouter) *Service {
	rl := s.ensureLimiter()
	auth := MiddlewareFromSVC(s)
	cfg := handlers.Config{Cookies: s.cookies}

	api.POST("/auth/solana/challenge", handlers.HandleSolanaChallengePost(s.svc, rl))
	api.POST("/auth/solana/login", handlers.HandleSolanaLoginPost(cfg, s.svc, rl))
	api.GET("/auth/solana/session", auth.Required(), handlers.HandleSolanaSessionGET(rl))
	api.DELETE("/auth/logout", auth.Optional(), handlers.HandleLogoutDELETE(cfg, s.svc, rl))
	return s
}

// RequestMeta annotates the request context with caller details for session events.
func RequestMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := core.WithRequestMeta(c.Request.Context(), c.ClientIP(), c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Service) ensureLimiter() ginutil.RateLimiter {
	if s.rl != nil {
		return s.rl
	}
	if s.rd != nil {
		return redisstore.NewRateLimiter(s.rd, authhttp.ToRedisLimits(authhttp.DefaultRateLimits()))
	}
	log.Info("cpop: Redis client not configured; using in-memory rate limiter (single-node only)")
	return memorystore.NewRateLimiter(authhttp.ToMemoryLimits(authhttp.DefaultRateLimits()))
}
