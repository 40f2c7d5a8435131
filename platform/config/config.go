// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"dialer_backend/platform/phone"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
	GetMigrationsDir() string
}

// TwilioConfig provides settings for the Twilio telephony gateway.
type TwilioConfig interface {
	GetTwilioAccountSID() string
	GetTwilioAuthToken() string
	GetTwimlURL() string
	GetStatusCallbackURL() string
	GetGatewayTimeout() time.Duration
	GetCallsPerMinute() int
}

// DialerConfig provides settings for the outbound call scheduler loop.
type DialerConfig interface {
	GetTickInterval() time.Duration
	GetCallWindowStartHour() int
	GetCallWindowEndHour() int
	GetNumberPool() []string
}

// RedisConfig provides settings for the scheduler leader lock.
type RedisConfig interface {
	GetRedisURL() string
	GetLeaderLockTTL() time.Duration
}

// Config holds all application configuration loaded from the environment.
type Config struct {
	Env string

	DatabaseURL   string
	MigrationsDir string

	RedisURL      string
	LeaderLockTTL time.Duration

	TwilioAccountSID  string
	TwilioAuthToken   string
	TwimlURL          string
	StatusCallbackURL string
	GatewayTimeout    time.Duration
	CallsPerMinute    int

	TickInterval        time.Duration
	CallWindowStartHour int
	CallWindowEndHour   int
	NumberPool          []string
}

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string   { return c.DatabaseURL }
func (c *Config) GetMigrationsDir() string { return c.MigrationsDir }

// TwilioConfig implementation
func (c *Config) GetTwilioAccountSID() string      { return c.TwilioAccountSID }
func (c *Config) GetTwilioAuthToken() string       { return c.TwilioAuthToken }
func (c *Config) GetTwimlURL() string              { return c.TwimlURL }
func (c *Config) GetStatusCallbackURL() string     { return c.StatusCallbackURL }
func (c *Config) GetGatewayTimeout() time.Duration { return c.GatewayTimeout }
func (c *Config) GetCallsPerMinute() int           { return c.CallsPerMinute }

// DialerConfig implementation
func (c *Config) GetTickInterval() time.Duration { return c.TickInterval }
func (c *Config) GetCallWindowStartHour() int    { return c.CallWindowStartHour }
func (c *Config) GetCallWindowEndHour() int      { return c.CallWindowEndHour }
func (c *Config) GetNumberPool() []string        { return c.NumberPool }

// RedisConfig implementation
func (c *Config) GetRedisURL() string             { return c.RedisURL }
func (c *Config) GetLeaderLockTTL() time.Duration { return c.LeaderLockTTL }

// Load reads configuration from the environment, applying defaults.
// A .env file is honored when present (development convenience).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		MigrationsDir:       getEnv("MIGRATIONS_DIR", "migrations"),
		RedisURL:            getEnv("REDIS_URL", ""),
		LeaderLockTTL:       getDurationEnv("LEADER_LOCK_TTL", 90*time.Second),
		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwimlURL:            getEnv("TWIML_URL", ""),
		StatusCallbackURL:   getEnv("TWILIO_STATUS_CALLBACK_URL", ""),
		GatewayTimeout:      getDurationEnv("GATEWAY_TIMEOUT", 15*time.Second),
		CallsPerMinute:      getIntEnv("CALLS_PER_MINUTE", 10),
		TickInterval:        getDurationEnv("DIALER_TICK_INTERVAL", 30*time.Second),
		CallWindowStartHour: getIntEnv("CALL_WINDOW_START_HOUR", 8),
		CallWindowEndHour:   getIntEnv("CALL_WINDOW_END_HOUR", 20),
		NumberPool:          getListEnv("TWILIO_NUMBERS"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CallWindowStartHour < 0 || cfg.CallWindowStartHour > 23 ||
		cfg.CallWindowEndHour < 1 || cfg.CallWindowEndHour > 24 ||
		cfg.CallWindowStartHour >= cfg.CallWindowEndHour {
		return nil, fmt.Errorf("invalid call window %d-%d", cfg.CallWindowStartHour, cfg.CallWindowEndHour)
	}

	// Outbound caller IDs must be dialable as-is.
	for i, number := range cfg.NumberPool {
		cfg.NumberPool[i] = phone.NormalizeE164(number)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// getListEnv reads a comma-separated list, dropping empty entries.
func getListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
