package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the daemon.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string // Postgres; empty selects the local SQLite store
	SQLitePath  string
	RedisURL    string // empty selects the in-process realtime feed

	// UserID is the signed-in user this daemon synchronizes for.
	UserID uuid.UUID

	// SeedMatchWith creates a match between UserID and this user on start (development only).
	SeedMatchWith uuid.UUID

	// APITokenHash is a bcrypt hash of the bearer token; empty disables auth.
	APITokenHash string

	// Rate limiting
	SendRateLimit      int      // messages per minute
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SQLitePath:    getEnv("SQLITE_PATH", "./data/chat.db"),
		RedisURL:      os.Getenv("REDIS_URL"),
		APITokenHash:  os.Getenv("API_TOKEN_HASH"),
		SendRateLimit: getEnvInt("SEND_RATE_LIMIT", 30),
	}

	cfg.UserID = getEnvUUID("USER_ID")
	if cfg.IsDevelopment() {
		cfg.SeedMatchWith = getEnvUUID("SEED_MATCH_WITH")
	}

	// Parse whitelist (comma-separated IPs or CIDRs)
	if whitelist := os.Getenv("RATE_LIMIT_WHITELIST"); whitelist != "" {
		for _, entry := range strings.Split(whitelist, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				cfg.RateLimitWhitelist = append(cfg.RateLimitWhitelist, entry)
			}
		}
	}

	// In production, require database, redis and the user identity
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
		if cfg.UserID == uuid.Nil {
			panic("USER_ID is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func getEnvUUID(key string) uuid.UUID {
	raw := os.Getenv(key)
	if raw == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		panic(key + " must be a UUID: " + err.Error())
	}
	return id
}
