// Package config loads the client-layer configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultAppName        = "nichepulse"
	DefaultBaseURL        = "https://api.nichepulse.io/v1"
	DefaultRequestTimeout = 30 * time.Second
	DefaultOAuthTimeout   = 15 * time.Second
	DefaultPageCacheTTL   = 5 * time.Minute
	DefaultLiveCacheTTL   = 15 * time.Second
	DefaultLiveInterval   = 30 * time.Second
	DefaultPageSize       = 20
)

// Config holds everything the client layer needs at construction time.
type Config struct {
	// AppName namespaces persisted state so co-hosted tools do not collide.
	AppName string
	// BaseURL is the remote service root, without a trailing slash.
	BaseURL string
	// StateDir is where durable identity state lives. Defaults to
	// $XDG_STATE_HOME/<AppName> or ~/.local/state/<AppName>.
	StateDir string
	// RequestTimeout bounds ordinary API calls.
	RequestTimeout time.Duration
	// OAuthTimeout bounds the third-party login redirect call, which is the
	// one call with a fixed short deadline.
	OAuthTimeout time.Duration
	// PageCacheTTL is the freshness window for paginated keyword pages.
	PageCacheTTL time.Duration
	// LiveCacheTTL is the freshness window for the live feed view.
	LiveCacheTTL time.Duration
	// LiveInterval is the background poll interval for the live feed.
	LiveInterval time.Duration
	// PageSize is the limit sent to the paginated list endpoint.
	PageSize int
	// LogLevel and LogFormat configure the logger (debug/info/warn/error,
	// text/json).
	LogLevel  string
	LogFormat string
}

// Load builds a Config from the environment. A .env file in the working
// directory is honored when present but never required.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppName:        envOr("NICHEPULSE_APP_NAME", DefaultAppName),
		BaseURL:        envOr("NICHEPULSE_API_URL", DefaultBaseURL),
		StateDir:       os.Getenv("NICHEPULSE_STATE_DIR"),
		RequestTimeout: DefaultRequestTimeout,
		OAuthTimeout:   DefaultOAuthTimeout,
		PageCacheTTL:   DefaultPageCacheTTL,
		LiveCacheTTL:   DefaultLiveCacheTTL,
		LiveInterval:   DefaultLiveInterval,
		PageSize:       DefaultPageSize,
		LogLevel:       envOr("NICHEPULSE_LOG_LEVEL", "info"),
		LogFormat:      envOr("NICHEPULSE_LOG_FORMAT", "text"),
	}

	var err error
	if cfg.RequestTimeout, err = envDuration("NICHEPULSE_REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return nil, err
	}
	if cfg.OAuthTimeout, err = envDuration("NICHEPULSE_OAUTH_TIMEOUT", cfg.OAuthTimeout); err != nil {
		return nil, err
	}
	if cfg.PageCacheTTL, err = envDuration("NICHEPULSE_PAGE_CACHE_TTL", cfg.PageCacheTTL); err != nil {
		return nil, err
	}
	if cfg.LiveCacheTTL, err = envDuration("NICHEPULSE_LIVE_CACHE_TTL", cfg.LiveCacheTTL); err != nil {
		return nil, err
	}
	if cfg.LiveInterval, err = envDuration("NICHEPULSE_LIVE_INTERVAL", cfg.LiveInterval); err != nil {
		return nil, err
	}
	if cfg.PageSize, err = envInt("NICHEPULSE_PAGE_SIZE", cfg.PageSize); err != nil {
		return nil, err
	}

	if cfg.StateDir == "" {
		cfg.StateDir = defaultStateDir(cfg.AppName)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func defaultStateDir(appName string) string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}
	return filepath.Join(home, ".local", "state", appName)
}
