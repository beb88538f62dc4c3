// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable the portal binary reads.
type Config struct {
	// HTTPAddr is the listen address of the operational HTTP surface.
	HTTPAddr string

	// PGDSN connects the Postgres gateway. Empty selects the in-memory
	// gateway, which is also what demo deployments run on.
	PGDSN string

	// AuthSecret signs session tokens. Required when PGDSN is set.
	AuthSecret string

	// RequireEmailConfirm withholds sessions from signup until the
	// address is confirmed.
	RequireEmailConfirm bool

	// SessionTTL bounds issued session tokens.
	SessionTTL time.Duration

	// AIAPIKey enables the advisor client; empty disables it.
	AIAPIKey string
	AIModel  string

	// RateLimitRPS throttles the HTTP surface per client IP.
	RateLimitRPS float64
}

// Load reads the environment, after merging an optional .env file.
// Unset variables fall back to defaults suitable for local runs.
func Load() Config {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	return Config{
		HTTPAddr:            envString("SAED_HTTP_ADDR", ":8080"),
		PGDSN:               os.Getenv("SAED_PG_DSN"),
		AuthSecret:          os.Getenv("SAED_AUTH_SECRET"),
		RequireEmailConfirm: envBool("SAED_REQUIRE_EMAIL_CONFIRM", false),
		SessionTTL:          envDuration("SAED_SESSION_TTL", 24*time.Hour),
		AIAPIKey:            os.Getenv("SAED_AI_API_KEY"),
		AIModel:             os.Getenv("SAED_AI_MODEL"),
		RateLimitRPS:        envFloat("SAED_RATE_LIMIT_RPS", 20),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}
