// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	// Embedded zone database so LEDGER_TIMEZONE resolves on minimal images.
	_ "time/tzdata"
)

// Config holds all configuration for the application.
type Config struct {
	TelegramBotToken     string
	WhitelistedUserIDs   []int64
	WhitelistedUsernames []string

	DatabaseURL        string
	RedisURL           string
	RabbitMQURL        string
	TransferEventQueue string

	HTTPAddr           string
	InternalAPIKey     string
	CORSAllowedOrigins []string

	LogLevel    string
	LogJSON     bool
	LogHashSalt string

	LedgerTimezone         string
	LedgerLocation         *time.Location
	LedgerWeekStart        time.Weekday
	LedgerRolloverSchedule string

	PendingThresholdEUR decimal.Decimal
	IdempotencyTTL      time.Duration

	OTelExporter string
	OTelEndpoint string
	OTelInsecure bool
}

// BotEnabled reports whether the Telegram front-end should run.
func (c *Config) BotEnabled() bool {
	return c.TelegramBotToken != ""
}

// Load reads configuration from environment variables. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TelegramBotToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisURL:               os.Getenv("REDIS_URL"),
		RabbitMQURL:            os.Getenv("RABBITMQ_URL"),
		TransferEventQueue:     getEnv("TRANSFER_EVENT_QUEUE", "transfers.results"),
		HTTPAddr:               getEnvAllowEmpty("HTTP_ADDR", ":8080"),
		InternalAPIKey:         os.Getenv("INTERNAL_API_KEY"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogJSON:                os.Getenv("LOG_JSON") == "true",
		LogHashSalt:            os.Getenv("LOG_HASH_SALT"),
		LedgerTimezone:         getEnv("LEDGER_TIMEZONE", "Africa/Niamey"),
		LedgerRolloverSchedule: getEnv("LEDGER_ROLLOVER_SCHEDULE", "0 0 * * *"),
		OTelExporter:           getEnv("OTEL_EXPORTER", "none"),
		OTelEndpoint:           getEnv("OTEL_ENDPOINT", "localhost:4318"),
		OTelInsecure:           os.Getenv("OTEL_INSECURE") != "false",
	}

	var errs []string

	cfg.WhitelistedUserIDs = parseUserIDs(os.Getenv("WHITELISTED_USER_IDS"))
	cfg.WhitelistedUsernames = parseUsernames(os.Getenv("WHITELISTED_USERNAMES"))
	cfg.CORSAllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", "*"))

	loc, err := time.LoadLocation(cfg.LedgerTimezone)
	if err != nil {
		errs = append(errs, fmt.Sprintf("LEDGER_TIMEZONE %q is not a valid IANA zone", cfg.LedgerTimezone))
	}
	cfg.LedgerLocation = loc

	weekStart, err := parseWeekday(getEnv("LEDGER_WEEK_START", "monday"))
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.LedgerWeekStart = weekStart

	threshold, err := decimal.NewFromString(getEnv("PENDING_THRESHOLD_EUR", "800"))
	if err != nil || !threshold.IsPositive() {
		errs = append(errs, "PENDING_THRESHOLD_EUR must be a positive amount")
	}
	cfg.PendingThresholdEUR = threshold

	ttl, err := time.ParseDuration(getEnv("IDEMPOTENCY_TTL", "72h"))
	if err != nil || ttl <= 0 {
		errs = append(errs, "IDEMPOTENCY_TTL must be a positive duration")
	}
	cfg.IdempotencyTTL = ttl

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return cfg, nil
}

// validate checks cross-field requirements.
func (c *Config) validate() []string {
	var errs []string

	if c.BotEnabled() && len(c.WhitelistedUserIDs) == 0 && len(c.WhitelistedUsernames) == 0 {
		errs = append(errs, "at least one whitelisted user (WHITELISTED_USER_IDS or WHITELISTED_USERNAMES) is required when TELEGRAM_BOT_TOKEN is set")
	}

	if !c.BotEnabled() && c.HTTPAddr == "" {
		errs = append(errs, "nothing to run: set TELEGRAM_BOT_TOKEN or HTTP_ADDR")
	}

	switch c.OTelExporter {
	case "none", "stdout", "otlp-http", "otlp-grpc":
	default:
		errs = append(errs, fmt.Sprintf("OTEL_EXPORTER %q must be one of none, stdout, otlp-http, otlp-grpc", c.OTelExporter))
	}

	return errs
}

// IsUserWhitelisted checks if a Telegram user ID or username is in the whitelist.
// Returns true if either the user ID or username is whitelisted.
func (c *Config) IsUserWhitelisted(userID int64, username string) bool {
	if slices.Contains(c.WhitelistedUserIDs, userID) {
		return true
	}

	// Usernames compare case-insensitively.
	if username != "" {
		username = strings.TrimPrefix(username, "@")
		for _, whitelisted := range c.WhitelistedUsernames {
			if strings.EqualFold(whitelisted, username) {
				return true
			}
		}
	}

	return false
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// getEnvAllowEmpty distinguishes an unset variable from one explicitly set to "".
func getEnvAllowEmpty(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}

func parseUserIDs(raw string) []int64 {
	var ids []int64
	for idStr := range strings.SplitSeq(raw, ",") {
		idStr = strings.TrimSpace(idStr)
		if idStr == "" {
			continue
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func parseUsernames(raw string) []string {
	var names []string
	for username := range strings.SplitSeq(raw, ",") {
		username = strings.TrimPrefix(strings.TrimSpace(username), "@")
		if username == "" {
			continue
		}
		names = append(names, username)
	}
	return names
}

func splitList(raw string) []string {
	var out []string
	for item := range strings.SplitSeq(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), name) || strings.EqualFold(d.String()[:3], name) {
			return d, nil
		}
	}
	return time.Monday, fmt.Errorf("LEDGER_WEEK_START %q is not a weekday", name)
}
