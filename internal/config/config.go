// Package config loads application configuration from environment
// variables, with an optional .env file for development setups. Persisted
// user preferences live in internal/settings; this covers only the knobs
// fixed at process start.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	defaultContentDir      = "~/Documents/dailywall"
	defaultLookbackDays    = 15
	defaultRetryAttempts   = 5
	defaultRetryDelay      = 60 * time.Second
	defaultDownloadTimeout = 10 * time.Minute
)

// AppConfig holds application configuration. It implements domain.Config.
type AppConfig struct {
	logger          *zap.Logger
	contentRoot     string
	lookbackDays    int
	retryAttempts   int
	retryDelay      time.Duration
	downloadTimeout time.Duration
	osuClientID     string
	osuClientSecret string
}

// NewAppConfig reads configuration from the environment. A .env file in the
// working directory is merged in first; absence is not an error.
func NewAppConfig(logger *zap.Logger) *AppConfig {
	if err := godotenv.Load(); err == nil {
		logger.Debug("Loaded .env file")
	}

	c := &AppConfig{
		logger:          logger,
		contentRoot:     expandPath(envOr("DAILYWALL_CONTENT_DIR", defaultContentDir)),
		lookbackDays:    envInt(logger, "DAILYWALL_LOOKBACK_DAYS", defaultLookbackDays),
		retryAttempts:   envInt(logger, "DAILYWALL_RETRY_ATTEMPTS", defaultRetryAttempts),
		retryDelay:      envDuration(logger, "DAILYWALL_RETRY_DELAY", defaultRetryDelay),
		downloadTimeout: envDuration(logger, "DAILYWALL_DOWNLOAD_TIMEOUT", defaultDownloadTimeout),
		osuClientID:     os.Getenv("DAILYWALL_OSU_CLIENT_ID"),
		osuClientSecret: os.Getenv("DAILYWALL_OSU_CLIENT_SECRET"),
	}

	logger.Info("Configuration loaded",
		zap.String("contentRoot", c.contentRoot),
		zap.Int("lookbackDays", c.lookbackDays),
		zap.Int("retryAttempts", c.retryAttempts),
		zap.Duration("retryDelay", c.retryDelay),
		zap.Duration("downloadTimeout", c.downloadTimeout),
		zap.Bool("osuConfigured", c.osuClientID != ""))
	return c
}

// ContentRoot returns the directory all provider content lives under
func (c *AppConfig) ContentRoot() string {
	return c.contentRoot
}

// LookbackDays returns how many calendar days back missing-date discovery
// searches
func (c *AppConfig) LookbackDays() int {
	return c.lookbackDays
}

// RetryAttempts returns the per-item fetch attempt cap
func (c *AppConfig) RetryAttempts() int {
	return c.retryAttempts
}

// RetryDelay returns the fixed wait between fetch attempts
func (c *AppConfig) RetryDelay() time.Duration {
	return c.retryDelay
}

// DownloadTimeout returns the absolute per-item download deadline
func (c *AppConfig) DownloadTimeout() time.Duration {
	return c.downloadTimeout
}

// OsuCredentials returns the OAuth client credentials for the osu! API.
// Empty when not configured; the osu tracker is then skipped at wiring time.
func (c *AppConfig) OsuCredentials() (id, secret string) {
	return c.osuClientID, c.osuClientSecret
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(logger *zap.Logger, key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		logger.Warn("Invalid integer in environment, using default",
			zap.String("key", key),
			zap.String("value", v))
		return fallback
	}
	return n
}

func envDuration(logger *zap.Logger, key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logger.Warn("Invalid duration in environment, using default",
			zap.String("key", key),
			zap.String("value", v))
		return fallback
	}
	return d
}

// expandPath resolves env vars and a leading ~ in the configured path
func expandPath(path string) string {
	path = os.ExpandEnv(path)
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return path
}
