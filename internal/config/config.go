// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment
// variables.
type Config struct {
	GitHubToken   string
	DBPath        string
	PollInterval  time.Duration
	InvokeTimeout time.Duration
	RetryDelay    time.Duration
	MaxAttempts   int
}

// Load reads configuration from environment variables and returns a
// validated Config. REVIEWSYNC_GITHUB_TOKEN is required. Optional variables
// with defaults: REVIEWSYNC_DB_PATH (reviewsync.db), REVIEWSYNC_POLL_INTERVAL
// (2s), REVIEWSYNC_INVOKE_TIMEOUT (30s), REVIEWSYNC_RETRY_DELAY (5s),
// REVIEWSYNC_MAX_ATTEMPTS (5).
func Load() (*Config, error) {
	token := os.Getenv("REVIEWSYNC_GITHUB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("REVIEWSYNC_GITHUB_TOKEN is required")
	}

	dbPath := "reviewsync.db"
	if v, ok := os.LookupEnv("REVIEWSYNC_DB_PATH"); ok {
		dbPath = v
	}

	pollInterval, err := durationEnv("REVIEWSYNC_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		return nil, err
	}

	invokeTimeout, err := durationEnv("REVIEWSYNC_INVOKE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	retryDelay, err := durationEnv("REVIEWSYNC_RETRY_DELAY", 5*time.Second)
	if err != nil {
		return nil, err
	}

	maxAttempts := 5
	if v, ok := os.LookupEnv("REVIEWSYNC_MAX_ATTEMPTS"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("REVIEWSYNC_MAX_ATTEMPTS has invalid value %q", v)
		}
		maxAttempts = parsed
	}

	return &Config{
		GitHubToken:   token,
		DBPath:        dbPath,
		PollInterval:  pollInterval,
		InvokeTimeout: invokeTimeout,
		RetryDelay:    retryDelay,
		MaxAttempts:   maxAttempts,
	}, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", key, v)
	}
	return parsed, nil
}
