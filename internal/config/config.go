// Package config loads process configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration of kasirpos-api.
type Config struct {
	Addr string

	// PGDSN selects the PostgreSQL store. Empty means the in-memory store,
	// which only suits local development.
	PGDSN string

	TokenSecret string
	TokenIssuer string
	TokenTTL    time.Duration

	BcryptCost       int
	FailureThreshold int
	LockDuration     time.Duration

	RateBurst  int
	RatePerSec int

	LogLevel string
	LogDev   bool
}

// Load reads configuration. A .env file in the working directory is applied
// first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:             envOr("KASIRPOS_ADDR", ":8080"),
		PGDSN:            os.Getenv("KASIRPOS_PG_DSN"),
		TokenSecret:      strings.TrimSpace(os.Getenv("KASIRPOS_JWT_SECRET")),
		TokenIssuer:      envOr("KASIRPOS_TOKEN_ISSUER", "kasirpos"),
		TokenTTL:         24 * time.Hour,
		FailureThreshold: 5,
		LockDuration:     30 * time.Minute,
		RateBurst:        20,
		RatePerSec:       10,
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogDev:           os.Getenv("LOG_DEV") == "1",
	}

	if cfg.TokenSecret == "" {
		return Config{}, errors.New("KASIRPOS_JWT_SECRET is required")
	}

	var err error
	if cfg.TokenTTL, err = durationOr("KASIRPOS_TOKEN_TTL", cfg.TokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.LockDuration, err = durationOr("KASIRPOS_LOCK_DURATION", cfg.LockDuration); err != nil {
		return Config{}, err
	}
	if cfg.FailureThreshold, err = intOr("KASIRPOS_FAILURE_THRESHOLD", cfg.FailureThreshold); err != nil {
		return Config{}, err
	}
	if cfg.BcryptCost, err = intOr("KASIRPOS_BCRYPT_COST", cfg.BcryptCost); err != nil {
		return Config{}, err
	}
	if cfg.RateBurst, err = intOr("KASIRPOS_RATE_BURST", cfg.RateBurst); err != nil {
		return Config{}, err
	}
	if cfg.RatePerSec, err = intOr("KASIRPOS_RATE_PER_SEC", cfg.RatePerSec); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func durationOr(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
