package core

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment (and a .env file if present).
type Config struct {
	ListenAddr string `env:"CPOP_LISTEN_ADDR" envDefault:":8080"`
	// BaseURL is the public app origin; its host becomes the challenge domain.
	BaseURL string `env:"CPOP_BASE_URL,required"`
	// DomainOverride replaces the host derived from BaseURL.
	DomainOverride string `env:"CPOP_SIWS_DOMAIN"`
	SolanaRPCURL   string `env:"SOLANA_RPC_URL" envDefault:"https://api.mainnet-beta.solana.com"`

	ChallengeWindow    time.Duration `env:"CPOP_CHALLENGE_WINDOW" envDefault:"168h"`
	ValidationCacheTTL time.Duration `env:"CPOP_VALIDATION_CACHE_TTL" envDefault:"60s"`
	StrictSignatures   bool          `env:"CPOP_STRICT_SIGNATURES" envDefault:"false"`
	CookieSecure       bool          `env:"CPOP_COOKIE_SECURE" envDefault:"true"`

	RedisURL    string `env:"REDIS_URL"`
	DBURL       string `env:"DB_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	SignInRetentionDays int    `env:"CPOP_SIGNIN_RETENTION_DAYS" envDefault:"30"`
	SignInPurgeCron     string `env:"CPOP_SIGNIN_PURGE_CRON" envDefault:"0 4 * * *"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig loads .env (missing file is fine) and parses the environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c Config) Validate() error {
	if c.Domain() == "" {
		return errors.New("config: CPOP_BASE_URL must be an absolute URL or CPOP_SIWS_DOMAIN must be set")
	}
	if c.ChallengeWindow <= 0 {
		return errors.New("config: CPOP_CHALLENGE_WINDOW must be positive")
	}
	if c.ValidationCacheTTL <= 0 {
		return errors.New("config: CPOP_VALIDATION_CACHE_TTL must be positive")
	}
	return nil
}

// Domain is the value written into the domain field of challenges.
func (c Config) Domain() string {
	if d := strings.TrimSpace(c.DomainOverride); d != "" {
		return d
	}
	u, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil {
		return ""
	}
	return u.Host
}

// ChainID derives the CAIP-2 style chain tag from the RPC endpoint.
func (c Config) ChainID() string {
	rpc := strings.ToLower(c.SolanaRPCURL)
	switch {
	case strings.Contains(rpc, "devnet"):
		return "solana:devnet"
	case strings.Contains(rpc, "testnet"):
		return "solana:testnet"
	default:
		return "solana:mainnet"
	}
}

// PostgresURL prefers DB_URL over DATABASE_URL.
func (c Config) PostgresURL() string {
	if c.DBURL != "" {
		return c.DBURL
	}
	return c.DatabaseURL
}

// Options converts the config into service options.
func (c Config) Options() Options {
	return Options{
		Domain:             c.Domain(),
		BaseURL:            strings.TrimRight(c.BaseURL, "/"),
		ChainID:            c.ChainID(),
		ChallengeWindow:    c.ChallengeWindow,
		ValidationCacheTTL: c.ValidationCacheTTL,
		StrictSignatures:   c.StrictSignatures,
	}
}
