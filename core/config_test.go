package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CPOP_BASE_URL", "https://pop.example.com/app")
	t.Setenv("SOLANA_RPC_URL", "https://api.devnet.solana.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, "pop.example.com", cfg.Domain())
	require.Equal(t, "solana:devnet", cfg.ChainID())
	require.Equal(t, 7*24*time.Hour, cfg.ChallengeWindow)
	require.Equal(t, time.Minute, cfg.ValidationCacheTTL)
	require.False(t, cfg.StrictSignatures)
	require.True(t, cfg.CookieSecure)
	require.Equal(t, 30, cfg.SignInRetentionDays)
	require.Equal(t, "0 4 * * *", cfg.SignInPurgeCron)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("CPOP_BASE_URL", "https://pop.example.com")
	t.Setenv("CPOP_SIWS_DOMAIN", "login.example.com")
	t.Setenv("CPOP_CHALLENGE_WINDOW", "30m")
	t.Setenv("CPOP_STRICT_SIGNATURES", "true")
	t.Setenv("DATABASE_URL", "postgres://b")
	t.Setenv("DB_URL", "postgres://a")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "login.example.com", cfg.Domain())
	require.Equal(t, "solana:mainnet", cfg.ChainID())
	require.Equal(t, "postgres://a", cfg.PostgresURL())

	opts := cfg.Options()
	require.Equal(t, 30*time.Minute, opts.ChallengeWindow)
	require.True(t, opts.StrictSignatures)
}

func TestLoadConfig_RequiresBaseURL(t *testing.T) {
	t.Setenv("CPOP_BASE_URL", "")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{BaseURL: "not a url", ChallengeWindow: time.Hour, ValidationCacheTTL: time.Second}
	require.Error(t, cfg.Validate())

	cfg.DomainOverride = "d"
	require.NoError(t, cfg.Validate())

	cfg.ChallengeWindow = 0
	require.Error(t, cfg.Validate())
}
