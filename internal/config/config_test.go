package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// setBotEnv sets the minimum environment for a bot-enabled configuration.
func setBotEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("WHITELISTED_USER_IDS", "123")
}

// unsetEnv removes key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoad(t *testing.T) {
	t.Run("loads bot config from env", func(t *testing.T) {
		setBotEnv(t)
		t.Setenv("DATABASE_URL", "postgres://localhost/test")

		cfg, err := Load()
		require.NoError(t, err)
		require.True(t, cfg.BotEnabled())
		require.Equal(t, "token", cfg.TelegramBotToken)
		require.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	})

	t.Run("applies defaults", func(t *testing.T) {
		setBotEnv(t)
		for _, key := range []string{
			"HTTP_ADDR", "TRANSFER_EVENT_QUEUE", "LEDGER_TIMEZONE", "LEDGER_WEEK_START",
			"LEDGER_ROLLOVER_SCHEDULE", "PENDING_THRESHOLD_EUR", "IDEMPOTENCY_TTL",
			"OTEL_EXPORTER", "CORS_ALLOWED_ORIGINS", "LOG_LEVEL",
		} {
			unsetEnv(t, key)
		}

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, ":8080", cfg.HTTPAddr)
		require.Equal(t, "transfers.results", cfg.TransferEventQueue)
		require.Equal(t, "Africa/Niamey", cfg.LedgerLocation.String())
		require.Equal(t, time.Monday, cfg.LedgerWeekStart)
		require.Equal(t, "0 0 * * *", cfg.LedgerRolloverSchedule)
		require.Equal(t, "800", cfg.PendingThresholdEUR.String())
		require.Equal(t, 72*time.Hour, cfg.IdempotencyTTL)
		require.Equal(t, "none", cfg.OTelExporter)
		require.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
		require.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("parses ledger settings", func(t *testing.T) {
		setBotEnv(t)
		t.Setenv("LEDGER_TIMEZONE", "Europe/Paris")
		t.Setenv("LEDGER_WEEK_START", "Sun")
		t.Setenv("PENDING_THRESHOLD_EUR", "1200.50")
		t.Setenv("IDEMPOTENCY_TTL", "24h")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, "Europe/Paris", cfg.LedgerLocation.String())
		require.Equal(t, time.Sunday, cfg.LedgerWeekStart)
		require.Equal(t, "1200.5", cfg.PendingThresholdEUR.String())
		require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	})

	t.Run("parses CORS origins", func(t *testing.T) {
		setBotEnv(t)
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://admin.example.com, https://ops.example.com,")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, []string{"https://admin.example.com", "https://ops.example.com"}, cfg.CORSAllowedOrigins)
	})

	t.Run("API only when no bot token", func(t *testing.T) {
		t.Setenv("TELEGRAM_BOT_TOKEN", "")
		t.Setenv("WHITELISTED_USER_IDS", "")
		t.Setenv("WHITELISTED_USERNAMES", "")
		t.Setenv("HTTP_ADDR", ":9090")

		cfg, err := Load()
		require.NoError(t, err)
		require.False(t, cfg.BotEnabled())
		require.Equal(t, ":9090", cfg.HTTPAddr)
	})

	t.Run("parses whitelisted user IDs", func(t *testing.T) {
		setBotEnv(t)
		t.Setenv("WHITELISTED_USER_IDS", " 123 ,invalid,, 456,")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, []int64{123, 456}, cfg.WhitelistedUserIDs)
	})

	t.Run("strips @ prefix from usernames", func(t *testing.T) {
		setBotEnv(t)
		t.Setenv("WHITELISTED_USERNAMES", "@alice, bob ,")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, []string{"alice", "bob"}, cfg.WhitelistedUsernames)
	})
}

func TestLoad_Validation(t *testing.T) {
	t.Run("fails when bot has no whitelist", func(t *testing.T) {
		t.Setenv("TELEGRAM_BOT_TOKEN", "token")
		t.Setenv("WHITELISTED_USER_IDS", "")
		t.Setenv("WHITELISTED_USERNAMES", "")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "at least one whitelisted user")
	})

	t.Run("fails when nothing would run", func(t *testing.T) {
		t.Setenv("TELEGRAM_BOT_TOKEN", "")
		t.Setenv("HTTP_ADDR", "")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "nothing to run")
	})

	t.Run("collects every problem", func(t *testing.T) {
		setBotEnv(t)
		t.Setenv("LEDGER_TIMEZONE", "Invalid/Zone")
		t.Setenv("LEDGER_WEEK_START", "someday")
		t.Setenv("PENDING_THRESHOLD_EUR", "-1")
		t.Setenv("IDEMPOTENCY_TTL", "forever")
		t.Setenv("OTEL_EXPORTER", "jaeger")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "LEDGER_TIMEZONE")
		require.Contains(t, err.Error(), "LEDGER_WEEK_START")
		require.Contains(t, err.Error(), "PENDING_THRESHOLD_EUR")
		require.Contains(t, err.Error(), "IDEMPOTENCY_TTL")
		require.Contains(t, err.Error(), "OTEL_EXPORTER")
	})
}

func TestConfig_IsUserWhitelisted(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		WhitelistedUserIDs:   []int64{100, 200},
		WhitelistedUsernames: []string{"alice", "bob"},
	}

	tests := []struct {
		name     string
		userID   int64
		username string
		want     bool
	}{
		{"whitelisted id", 100, "", true},
		{"whitelisted username", 999, "alice", true},
		{"username with @ prefix", 999, "@bob", true},
		{"case insensitive username", 999, "ALICE", true},
		{"unknown user", 999, "mallory", false},
		{"unknown id without username", 999, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, cfg.IsUserWhitelisted(tt.userID, tt.username))
		})
	}
}
