package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStateConfigRateLimit(t *testing.T) {
	tests := []struct {
		name      string
		limit     *RateLimitConfig
		wantRPS   float64
		wantBurst int
	}{
		{"nil limit", nil, 20, 40},
		{"zero values", &RateLimitConfig{}, 20, 40},
		{"negative values", &RateLimitConfig{RequestsPerSecond: -1, Burst: -5}, 20, 40},
		{"custom", &RateLimitConfig{RequestsPerSecond: 2.5, Burst: 3}, 2.5, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := StateConfig{RateLimit: tt.limit}
			if got := cfg.GetRateLimitRPS(); got != tt.wantRPS {
				t.Errorf("GetRateLimitRPS() = %v, want %v", got, tt.wantRPS)
			}
			if got := cfg.GetRateLimitBurst(); got != tt.wantBurst {
				t.Errorf("GetRateLimitBurst() = %v, want %v", got, tt.wantBurst)
			}
		})
	}
}

func TestGetMaxTrackedIPs(t *testing.T) {
	if got := (StateConfig{}).GetMaxTrackedIPs(); got != 10000 {
		t.Errorf("nil RateLimit: expected 10000, got %d", got)
	}
	cfg := StateConfig{RateLimit: &RateLimitConfig{MaxTrackedIPs: 500}}
	if got := cfg.GetMaxTrackedIPs(); got != 500 {
		t.Errorf("explicit MaxTrackedIPs: expected 500, got %d", got)
	}
}

func TestCookieConfigGetMaxAge(t *testing.T) {
	tests := []struct {
		name     string
		maxAge   string
		expected time.Duration
	}{
		{"empty", "", 0},
		{"invalid", "soon", 0},
		{"negative", "-1h", 0},
		{"30 days", "720h", 720 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := CookieConfig{MaxAge: tt.maxAge}
			if got := cfg.GetMaxAge(); got != tt.expected {
				t.Errorf("GetMaxAge() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero port", func(c *Config) { c.Server.Port = 0 }, "out of range"},
		{"huge port", func(c *Config) { c.Server.Port = 70000 }, "out of range"},
		{"bad prefix", func(c *Config) { c.Cookie.Prefix = "my state" }, "cookie.prefix"},
		{"separator prefix", func(c *Config) { c.Cookie.Prefix = "a;b" }, "cookie.prefix"},
		{"bad max age", func(c *Config) { c.Cookie.MaxAge = "forever" }, "cookie.max_age"},
		{"negative max age", func(c *Config) { c.Cookie.MaxAge = "-5m" }, "cannot be negative"},
		{"good max age", func(c *Config) { c.Cookie.MaxAge = "24h" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantError == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantError)
			}
			if !strings.Contains(err.Error(), tt.wantError) {
				t.Errorf("Validate() error = %q, want containing %q", err.Error(), tt.wantError)
			}
		})
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Cookie.Prefix != "behaviour" || cfg.Cookie.Path != "/" {
		t.Errorf("Cookie = %+v, want default prefix and path", cfg.Cookie)
	}
	if cfg.Behaviour.KeyMap != "default" {
		t.Errorf("Behaviour.KeyMap = %q, want default", cfg.Behaviour.KeyMap)
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	content := `title: "Docs"
server:
  port: 9090
cookie:
  prefix: docs
  domain: example.com
  max_age: 48h
behaviour:
  editing: true
  use_code_mirror: true
  first_field: search
  messages:
    - "Saved"
`
	if err := os.WriteFile(filepath.Join(dir, "hyde.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir() error: %v", err)
	}
	if cfg.Title != "Docs" {
		t.Errorf("Title = %q, want Docs", cfg.Title)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("Server.Host = %q, want default localhost", cfg.Server.Host)
	}
	if cfg.Cookie.Path != "/" {
		t.Errorf("Cookie.Path = %q, want default /", cfg.Cookie.Path)
	}

	b := cfg.BehaviourOptions()
	if !b.Editing || !b.UseCodeMirror || b.FirstField != "search" || b.CookiePrefix != "docs" {
		t.Errorf("BehaviourOptions() = %+v", b)
	}
	if b.CookieDomain != "example.com" || b.CookieMaxAge != 48*time.Hour {
		t.Errorf("BehaviourOptions() cookie = %q %v", b.CookieDomain, b.CookieMaxAge)
	}
	if len(b.Messages) != 1 || b.Messages[0] != "Saved" {
		t.Errorf("BehaviourOptions().Messages = %v", b.Messages)
	}
}

func TestLoadFromDirLegacyName(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "behaviour.yaml"), []byte("title: Legacy\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir() error: %v", err)
	}
	if cfg.Title != "Legacy" {
		t.Errorf("Title = %q, want Legacy", cfg.Title)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hyde.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("Load() error = %v, want parse failure", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HYDE_PORT", "7070")
	t.Setenv("HYDE_COOKIE_PREFIX", "envpfx")
	t.Setenv("HYDE_DEBUG", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if !cfg.Server.Debug {
		t.Errorf("Server.Debug = false, want true")
	}
	if cfg.Cookie.Prefix != "envpfx" {
		t.Errorf("Cookie.Prefix = %q, want envpfx", cfg.Cookie.Prefix)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("Server.Host = %q, want default kept", cfg.Server.Host)
	}
}

func TestLoadEnvInvalid(t *testing.T) {
	t.Setenv("HYDE_PORT", "not-a-number")

	if _, err := Load(""); err == nil {
		t.Errorf("Load() expected error for invalid HYDE_PORT")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hyde.yaml")
	cfg := DefaultConfig()
	cfg.Title = "Saved"
	cfg.Cookie.Prefix = "saved"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Title != "Saved" || loaded.Cookie.Prefix != "saved" {
		t.Errorf("loaded = %+v", loaded)
	}
}
