// Package config resolves runtime configuration for the loomOS API from the
// environment, with an optional YAML file supplying per-plan feature defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr = ":8080"
	defaultAppDomain  = "loomos.com"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 14 * 24 * time.Hour
	defaultRateBurst  = 20
	defaultRatePerSec = 10
	defaultMaxBody    = 1 << 20

	envListenAddr   = "LOOMOS_LISTEN_ADDR"
	envPostgresDSN  = "LOOMOS_PG_DSN"
	envRedisURL     = "LOOMOS_REDIS_URL"
	envAppDomain    = "LOOMOS_APP_DOMAIN"
	envAuthSecret   = "LOOMOS_AUTH_SECRET"
	envIssuer       = "LOOMOS_TOKEN_ISSUER"
	envAccessTTL    = "LOOMOS_ACCESS_TTL"
	envRefreshTTL   = "LOOMOS_REFRESH_TTL"
	envRateBurst    = "LOOMOS_RATE_BURST"
	envRatePerSec   = "LOOMOS_RATE_PER_SECOND"
	envCookieSecure = "LOOMOS_COOKIE_SECURE"
	envPlanDefaults = "LOOMOS_PLAN_DEFAULTS_PATH"
)

// Config holds everything cmd/api needs to wire the service.
type Config struct {
	ListenAddr  string
	PostgresDSN string
	RedisURL    string

	// AppDomain is the apex domain tenant subdomains hang off
	// (e.g. montrecott.loomos.com).
	AppDomain string

	AuthSecret string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	RateBurst     int
	RatePerSecond int
	MaxBodyBytes  int64

	// CookieSecure marks session cookies Secure; disable for plain-HTTP dev.
	CookieSecure bool

	PlanDefaultsPath string
}

// Load reads configuration from the environment with sane defaults. The API
// server requires PostgresDSN at startup; RedisURL is optional and disables
// token revocation when empty.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:       envOr(envListenAddr, defaultListenAddr),
		PostgresDSN:      os.Getenv(envPostgresDSN),
		RedisURL:         os.Getenv(envRedisURL),
		AppDomain:        envOr(envAppDomain, defaultAppDomain),
		AuthSecret:       strings.TrimSpace(os.Getenv(envAuthSecret)),
		Issuer:           envOr(envIssuer, "loomos"),
		AccessTTL:        defaultAccessTTL,
		RefreshTTL:       defaultRefreshTTL,
		RateBurst:        defaultRateBurst,
		RatePerSecond:    defaultRatePerSec,
		MaxBodyBytes:     defaultMaxBody,
		CookieSecure:     envOr(envCookieSecure, "true") == "true",
		PlanDefaultsPath: os.Getenv(envPlanDefaults),
	}

	var err error
	if cfg.AccessTTL, err = durationOr(envAccessTTL, defaultAccessTTL); err != nil {
		return nil, err
	}
	if cfg.RefreshTTL, err = durationOr(envRefreshTTL, defaultRefreshTTL); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = intOr(envRateBurst, defaultRateBurst); err != nil {
		return nil, err
	}
	if cfg.RatePerSecond, err = intOr(envRatePerSec, defaultRatePerSec); err != nil {
		return nil, err
	}

	if cfg.AuthSecret == "" {
		return nil, errors.New("config: " + envAuthSecret + " is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("config: token TTLs must be positive")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	return d, nil
}

func intOr(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	return v, nil
}
