package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/taskflow-ai/taskflow-api/internal/validation"
)

// Config holds application configuration
type Config struct {
	DatabaseURL         string
	ServerPort          string
	BaseURL             string
	FrontendURL         string
	OpenAIKey           string
	AIProvider          string
	AIModel             string
	AIBaseURL           string
	CategorizeTimeout   time.Duration
	DefaultCategory     string
	StatsTimezone       string
	EnableHSTS          bool
	OIDCProvider        string
	SessionSecret       string
	SessionCookieSecure bool
	RedisURL            string
	RateLimitDefault    string
	RabbitMQURL         string
	ServerDebugMode     bool
	LogFormat           string
	OTELEnabled         bool
	OTELEndpoint        string
}

// LoadDotEnv loads variables from the given .env files (default ".env") into the
// process environment. Missing files are ignored; existing variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		BaseURL:             getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:3000"),
		OpenAIKey:           getEnv("OPENAI_API_KEY", ""),
		AIProvider:          getEnv("AI_PROVIDER", "openai"),
		AIModel:             getEnv("AI_MODEL", getEnv("OPENAI_MODEL", "")),
		AIBaseURL:           getEnv("AI_BASE_URL", ""),
		CategorizeTimeout:   getEnvDuration("CATEGORIZE_TIMEOUT", 10*time.Second),
		DefaultCategory:     strings.ToLower(strings.TrimSpace(getEnv("DEFAULT_CATEGORY", "general"))),
		StatsTimezone:       getEnv("STATS_TIMEZONE", ""),
		EnableHSTS:          getEnvBool("ENABLE_HSTS", false),
		OIDCProvider:        getEnv("OIDC_PROVIDER", "google"),
		SessionSecret:       getEnv("SESSION_SECRET", ""),
		SessionCookieSecure: getEnvBool("SESSION_COOKIE_SECURE", false),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RateLimitDefault:    getEnv("RATE_LIMIT_DEFAULT", "5-S"),
		RabbitMQURL:         getEnv("RABBITMQ_URL", ""),
		ServerDebugMode:     getEnvBool("SERVER_DEBUG_MODE", false),
		LogFormat:           getEnv("LOG_FORMAT", "json"),
		OTELEnabled:         getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:        getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.CategorizeTimeout <= 0 {
		return nil, fmt.Errorf("CATEGORIZE_TIMEOUT must be positive, got %s", cfg.CategorizeTimeout)
	}

	if !validation.IsSingleWord(cfg.DefaultCategory) || utf8.RuneCountInString(cfg.DefaultCategory) > validation.MaxCategoryLength {
		return nil, fmt.Errorf("DEFAULT_CATEGORY must be a single word, got %q", cfg.DefaultCategory)
	}

	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return nil, fmt.Errorf("LOG_FORMAT must be json or console, got %q", cfg.LogFormat)
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Location returns the time zone used for calendar-day statistics.
// An empty STATS_TIMEZONE means the process local time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.StatsTimezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.StatsTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_TIMEZONE %q: %w", c.StatsTimezone, err)
	}
	return loc, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("10s") or a plain number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs := getEnvInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
