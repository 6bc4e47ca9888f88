package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("NICHEPULSE_APP_NAME", "")
	t.Setenv("NICHEPULSE_API_URL", "")
	t.Setenv("NICHEPULSE_STATE_DIR", "")
	t.Setenv("XDG_STATE_HOME", "/tmp/xdg-state")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.AppName != DefaultAppName {
		t.Errorf("AppName = %q, want %q", cfg.AppName, DefaultAppName)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("RequestTimeout = %v, want %v", cfg.RequestTimeout, DefaultRequestTimeout)
	}
	if cfg.PageCacheTTL != DefaultPageCacheTTL {
		t.Errorf("PageCacheTTL = %v, want %v", cfg.PageCacheTTL, DefaultPageCacheTTL)
	}
	if cfg.LiveCacheTTL != DefaultLiveCacheTTL {
		t.Errorf("LiveCacheTTL = %v, want %v", cfg.LiveCacheTTL, DefaultLiveCacheTTL)
	}
	if cfg.PageSize != DefaultPageSize {
		t.Errorf("PageSize = %d, want %d", cfg.PageSize, DefaultPageSize)
	}
	if want := filepath.Join("/tmp/xdg-state", DefaultAppName); cfg.StateDir != want {
		t.Errorf("StateDir = %q, want %q", cfg.StateDir, want)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("NICHEPULSE_APP_NAME", "nptest")
	t.Setenv("NICHEPULSE_API_URL", "http://localhost:9999/v1")
	t.Setenv("NICHEPULSE_STATE_DIR", "/var/lib/nptest")
	t.Setenv("NICHEPULSE_REQUEST_TIMEOUT", "5s")
	t.Setenv("NICHEPULSE_PAGE_CACHE_TTL", "90s")
	t.Setenv("NICHEPULSE_PAGE_SIZE", "50")
	t.Setenv("NICHEPULSE_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.AppName != "nptest" {
		t.Errorf("AppName = %q, want nptest", cfg.AppName)
	}
	if cfg.BaseURL != "http://localhost:9999/v1" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.StateDir != "/var/lib/nptest" {
		t.Errorf("StateDir = %q", cfg.StateDir)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
	if cfg.PageCacheTTL != 90*time.Second {
		t.Errorf("PageCacheTTL = %v, want 90s", cfg.PageCacheTTL)
	}
	if cfg.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50", cfg.PageSize)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("NICHEPULSE_REQUEST_TIMEOUT", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Error("Load() accepted an unparsable duration")
	}
}

func TestLoad_BadInt(t *testing.T) {
	t.Setenv("NICHEPULSE_PAGE_SIZE", "many")
	if _, err := Load(); err == nil {
		t.Error("Load() accepted an unparsable page size")
	}
}
