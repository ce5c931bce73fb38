// Package config provides configuration management for the license client.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied before the config file and environment are read.
const (
	DefaultCacheKey    = "license-client-cache-key"
	DefaultLicensesTTL = time.Hour
	DefaultContentTTL  = 30 * time.Second
	DefaultTokenTTL    = 5 * time.Minute
	DefaultHTTPTimeout = 30 * time.Second

	DefaultBreakerFailureThreshold = 5
	DefaultBreakerOpenTimeout      = 30 * time.Second
)

// DefaultConfigDir returns the default config directory (~/.licensectl).
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".licensectl"), nil
}

// DefaultConfigPath returns the default config file path (~/.licensectl/config.yml).
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yml"), nil
}

// ClientConfig holds everything needed to talk to the license service.
type ClientConfig struct {
	Server         string        `yaml:"server"`
	Site           string        `yaml:"site"`
	DefaultLicense string        `yaml:"default_license,omitempty"`
	CacheKey       string        `yaml:"cache_key"`
	Cache          CacheConfig   `yaml:"cache"`
	Auth           AuthConfig    `yaml:"auth"`
	HTTP           HTTPConfig    `yaml:"http"`
	Breaker        BreakerConfig `yaml:"breaker"`
}

// CacheConfig sets per-endpoint cache lifetimes and the optional shared backend.
type CacheConfig struct {
	LicensesTTL time.Duration `yaml:"licenses_ttl"`
	ContentTTL  time.Duration `yaml:"content_ttl"`
	// RedisURL selects the redis backend when set, e.g. redis://localhost:6379/0.
	RedisURL string `yaml:"redis_url,omitempty"`
}

// AuthConfig selects and parameterizes the token acquisition strategy.
type AuthConfig struct {
	Client   string        `yaml:"client"`
	Key      string        `yaml:"key,omitempty"`
	Secret   string        `yaml:"secret,omitempty"`
	Token    string        `yaml:"token,omitempty"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// Strategy parses the configured auth client.
func (a AuthConfig) Strategy() (AuthStrategy, error) {
	return ParseAuthStrategy(a.Client)
}

// HTTPConfig configures the transport shared by all remote calls.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	// RequestsPerSecond limits outbound calls; 0 disables limiting.
	RequestsPerSecond float64     `yaml:"requests_per_second,omitempty"`
	Burst             int         `yaml:"burst,omitempty"`
	Proxy             ProxyConfig `yaml:"proxy,omitempty"`
}

// ProxyConfig holds outbound proxy settings.
type ProxyConfig struct {
	HTTPProxy   string `yaml:"http,omitempty"`
	HTTPSProxy  string `yaml:"https,omitempty"`
	SOCKS5Proxy string `yaml:"socks5,omitempty"`
	NoProxy     string `yaml:"no_proxy,omitempty"`
}

// HasProxy returns true if any proxy is configured.
func (p *ProxyConfig) HasProxy() bool {
	return p != nil && (p.HTTPProxy != "" || p.HTTPSProxy != "" || p.SOCKS5Proxy != "")
}

// BreakerConfig configures the circuit breaker around remote calls.
type BreakerConfig struct {
	Disabled         bool          `yaml:"disabled,omitempty"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
}

// Default returns a config with every optional field at its default.
func Default() *ClientConfig {
	return &ClientConfig{
		CacheKey: DefaultCacheKey,
		Cache: CacheConfig{
			LicensesTTL: DefaultLicensesTTL,
			ContentTTL:  DefaultContentTTL,
		},
		Auth: AuthConfig{
			Client:   string(AuthNone),
			TokenTTL: DefaultTokenTTL,
		},
		HTTP: HTTPConfig{
			Timeout: DefaultHTTPTimeout,
		},
		Breaker: BreakerConfig{
			FailureThreshold: DefaultBreakerFailureThreshold,
			OpenTimeout:      DefaultBreakerOpenTimeout,
		},
	}
}

// Validate checks the fields required to construct a client.
func (c *ClientConfig) Validate() error {
	if c.Server == "" {
		return errors.New("server is required")
	}
	u, err := url.Parse(c.Server)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("server URL must use http or https scheme")
	}
	if u.Host == "" {
		return errors.New("server URL must include a host")
	}
	if c.Site == "" {
		return errors.New("site is required")
	}

	strategy, err := c.Auth.Strategy()
	if err != nil {
		return err
	}
	switch strategy {
	case AuthOAuth2:
		if c.Auth.Key == "" || c.Auth.Secret == "" {
			return errors.New("auth.key and auth.secret are required for oauth2")
		}
		if c.Auth.TokenTTL <= 0 {
			return errors.New("auth.token_ttl must be positive for oauth2")
		}
	case AuthStatic:
		if c.Auth.Token == "" {
			return errors.New("auth.token is required for static auth")
		}
	}

	if c.Cache.LicensesTTL < 0 || c.Cache.ContentTTL < 0 || c.Auth.TokenTTL < 0 {
		return errors.New("cache and token TTLs must not be negative")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return errors.New("http.requests_per_second must not be negative")
	}
	return nil
}

// BaseURL returns the server URL without a trailing slash.
func (c *ClientConfig) BaseURL() string {
	return strings.TrimRight(c.Server, "/")
}

// Load reads the configuration from the given path and applies environment overrides.
// A missing file yields the defaults.
func Load(path string) (*ClientConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// LoadDefault loads the configuration from the default path.
func LoadDefault() (*ClientConfig, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Save writes the configuration to the given path, creating directories as needed.
func (c *ClientConfig) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// Secrets live in this file.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}
