package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/livetemplate/hyde/internal/behaviour"
	"github.com/livetemplate/hyde/internal/statecookie"
)

// Config represents the hyde configuration
type Config struct {
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Server      ServerConfig    `yaml:"server"`
	Cookie      CookieConfig    `yaml:"cookie"`
	Behaviour   BehaviourConfig `yaml:"behaviour"`
	Features    FeaturesConfig  `yaml:"features"`
	State       StateConfig     `yaml:"state"`
	Ignore      []string        `yaml:"ignore"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port  int    `yaml:"port" env:"HYDE_PORT"`
	Host  string `yaml:"host" env:"HYDE_HOST"`
	Debug bool   `yaml:"debug" env:"HYDE_DEBUG"`
}

// CookieConfig scopes the persisted page state cookie
type CookieConfig struct {
	Domain string `yaml:"domain" env:"HYDE_COOKIE_DOMAIN"`
	Path   string `yaml:"path" env:"HYDE_COOKIE_PATH"`
	Prefix string `yaml:"prefix" env:"HYDE_COOKIE_PREFIX"`
	MaxAge string `yaml:"max_age,omitempty" env:"HYDE_COOKIE_MAX_AGE"` // e.g. "720h"; empty for a session cookie
	Secure bool   `yaml:"secure" env:"HYDE_COOKIE_SECURE"`
}

// BehaviourConfig holds the options handed to the page behaviour controller
type BehaviourConfig struct {
	BaseURL       string   `yaml:"base_url"`
	Editing       bool     `yaml:"editing"`
	FirstField    string   `yaml:"first_field"`
	FormName      string   `yaml:"form_name"`
	KeyMap        string   `yaml:"key_map"`
	Target        string   `yaml:"target"`
	UseCodeMirror bool     `yaml:"use_code_mirror"`
	Messages      []string `yaml:"messages,omitempty"`
}

// FeaturesConfig holds feature flags
type FeaturesConfig struct {
	HotReload bool `yaml:"hot_reload"`
}

// StateConfig configures the state save endpoint
type StateConfig struct {
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// RateLimitConfig holds rate limiting configuration for state saves
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"` // default: 20
	Burst             int     `yaml:"burst,omitempty"`               // default: 40
	MaxTrackedIPs     int     `yaml:"max_tracked_ips,omitempty"`     // default: 10000
}

// GetRateLimitRPS returns the rate limit in requests per second (default: 20)
func (c StateConfig) GetRateLimitRPS() float64 {
	if c.RateLimit == nil || c.RateLimit.RequestsPerSecond <= 0 {
		return 20
	}
	return c.RateLimit.RequestsPerSecond
}

// GetRateLimitBurst returns the burst size (default: 40)
func (c StateConfig) GetRateLimitBurst() int {
	if c.RateLimit == nil || c.RateLimit.Burst <= 0 {
		return 40
	}
	return c.RateLimit.Burst
}

// GetMaxTrackedIPs returns how many client buckets are kept (default: 10000)
func (c StateConfig) GetMaxTrackedIPs() int {
	if c.RateLimit == nil || c.RateLimit.MaxTrackedIPs <= 0 {
		return 10000
	}
	return c.RateLimit.MaxTrackedIPs
}

// GetMaxAge returns the parsed cookie lifetime (0 for a session cookie)
func (c CookieConfig) GetMaxAge() time.Duration {
	if c.MaxAge == "" {
		return 0
	}
	d, err := time.ParseDuration(c.MaxAge)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// BehaviourOptions builds the controller options from the config
func (c *Config) BehaviourOptions() behaviour.Options {
	return behaviour.Options{
		BaseURL:       c.Behaviour.BaseURL,
		CookieDomain:  c.Cookie.Domain,
		CookiePath:    c.Cookie.Path,
		CookiePrefix:  c.Cookie.Prefix,
		CookieMaxAge:  c.Cookie.GetMaxAge(),
		CookieSecure:  c.Cookie.Secure,
		Debug:         c.Server.Debug,
		Editing:       c.Behaviour.Editing,
		FirstField:    c.Behaviour.FirstField,
		FormName:      c.Behaviour.FormName,
		KeyMap:        c.Behaviour.KeyMap,
		Messages:      c.Behaviour.Messages,
		Target:        c.Behaviour.Target,
		UseCodeMirror: c.Behaviour.UseCodeMirror,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Title:       "Hyde",
		Description: "Static pages with persisted page state",
		Server: ServerConfig{
			Port:  8080,
			Host:  "localhost",
			Debug: false,
		},
		Cookie: CookieConfig{
			Domain: "",
			Path:   "/",
			Prefix: statecookie.DefaultPrefix,
		},
		Behaviour: BehaviourConfig{
			KeyMap: "default",
		},
		Features: FeaturesConfig{
			HotReload: true,
		},
		Ignore: []string{
			"drafts/**",
			"_*.md",
		},
	}
}

// Validate checks the configuration for values the server cannot use
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if !isCookieToken(c.Cookie.Prefix) {
		return fmt.Errorf("cookie.prefix %q contains characters not allowed in a cookie name", c.Cookie.Prefix)
	}
	if c.Cookie.MaxAge != "" {
		d, err := time.ParseDuration(c.Cookie.MaxAge)
		if err != nil {
			return fmt.Errorf("cookie.max_age: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("cookie.max_age cannot be negative")
		}
	}
	return nil
}

// isCookieToken reports whether s is a valid RFC 6265 cookie-name token.
func isCookieToken(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= ' ' || c >= 0x7f {
			return false
		}
		switch c {
		case '(', ')', '<', '>', '@', ',', ';', ':', '\\', '"', '/', '[', ']', '?', '=', '{', '}':
			return false
		}
	}
	return true
}

// ApplyEnv overlays HYDE_* environment variables onto the server and cookie sections
func (c *Config) ApplyEnv() error {
	if err := env.Parse(&c.Server); err != nil {
		return fmt.Errorf("failed to parse server env: %w", err)
	}
	if err := env.Parse(&c.Cookie); err != nil {
		return fmt.Errorf("failed to parse cookie env: %w", err)
	}
	return nil
}

// Load loads configuration from a YAML file
// If the file doesn't exist, returns the default configuration
func Load(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadFromDir looks for hyde.yaml, then behaviour.yaml, in the given directory
// If neither is found, returns the default configuration
func LoadFromDir(dir string) (*Config, error) {
	hydePath := filepath.Join(dir, "hyde.yaml")
	if _, err := os.Stat(hydePath); err == nil {
		return Load(hydePath)
	}

	return Load(filepath.Join(dir, "behaviour.yaml"))
}

// Save writes the configuration to a YAML file
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
