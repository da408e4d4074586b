// ABOUTME: Configuration loading and parsing for mycastle-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete mycastle-gateway configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Completion CompletionConfig `yaml:"completion"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds server address configuration.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	// Stdio enables the line-oriented stdio transport instead of HTTP.
	Stdio bool `yaml:"stdio"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	// DefaultCredential, when set, authenticates envelopes that carry no
	// credential of their own. Meant for single-tenant local deployments.
	DefaultCredential string `yaml:"default_credential"`
}

// CompletionConfig tunes the upstream completion client.
type CompletionConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	Model       string `yaml:"model"`
	MaxAttempts int    `yaml:"max_attempts"`
	CacheSize   int    `yaml:"cache_size"`

	InitialDelay time.Duration `yaml:"-"`
	MaxDelay     time.Duration `yaml:"-"`
	CacheTTL     time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	InitialDelayRaw string `yaml:"initial_delay"`
	MaxDelayRaw     string `yaml:"max_delay"`
	CacheTTLRaw     string `yaml:"cache_ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" && !c.Server.Stdio {
		return fmt.Errorf("server.http_addr is required (or enable server.stdio)")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret must be at least 16 bytes")
	}

	if c.Completion.MaxAttempts < 0 {
		return fmt.Errorf("completion.max_attempts must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Completion.InitialDelayRaw != "" {
		cfg.Completion.InitialDelay, err = time.ParseDuration(cfg.Completion.InitialDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing initial_delay %q: %w", cfg.Completion.InitialDelayRaw, err)
		}
	}

	if cfg.Completion.MaxDelayRaw != "" {
		cfg.Completion.MaxDelay, err = time.ParseDuration(cfg.Completion.MaxDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing max_delay %q: %w", cfg.Completion.MaxDelayRaw, err)
		}
	}

	if cfg.Completion.CacheTTLRaw != "" {
		cfg.Completion.CacheTTL, err = time.ParseDuration(cfg.Completion.CacheTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing cache_ttl %q: %w", cfg.Completion.CacheTTLRaw, err)
		}
	}

	return nil
}
