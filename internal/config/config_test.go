// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"

database:
  path: "./test.db"

auth:
  jwt_secret: "test-secret-key-for-jwt-signing"

completion:
  base_url: "https://api.example.com/v1"
  model: "tutor-large"
  max_attempts: 5
  cache_size: 512
  initial_delay: "500ms"
  max_delay: "10s"
  cache_ttl: "30m"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Auth.JWTSecret != "test-secret-key-for-jwt-signing" {
		t.Errorf("Auth.JWTSecret = %q", cfg.Auth.JWTSecret)
	}

	if cfg.Completion.Model != "tutor-large" {
		t.Errorf("Completion.Model = %q, want %q", cfg.Completion.Model, "tutor-large")
	}
	if cfg.Completion.MaxAttempts != 5 {
		t.Errorf("Completion.MaxAttempts = %d, want 5", cfg.Completion.MaxAttempts)
	}
	if cfg.Completion.InitialDelay != 500*time.Millisecond {
		t.Errorf("Completion.InitialDelay = %v, want 500ms", cfg.Completion.InitialDelay)
	}
	if cfg.Completion.MaxDelay != 10*time.Second {
		t.Errorf("Completion.MaxDelay = %v, want 10s", cfg.Completion.MaxDelay)
	}
	if cfg.Completion.CacheTTL != 30*time.Minute {
		t.Errorf("Completion.CacheTTL = %v, want 30m", cfg.Completion.CacheTTL)
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("MYCASTLE_TEST_SECRET", "secret-from-environment")

	configPath := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8080"
database:
  path: "./test.db"
auth:
  jwt_secret: "${MYCASTLE_TEST_SECRET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != "secret-from-environment" {
		t.Errorf("Auth.JWTSecret = %q, want expanded env value", cfg.Auth.JWTSecret)
	}
}

func TestLoad_UnsetEnvVarBecomesEmpty(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8080"
database:
  path: "./test.db"
auth:
  jwt_secret: "prefix-${MYCASTLE_DOES_NOT_EXIST}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != "prefix-" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "prefix-")
	}
}

func TestLoad_StdioInsteadOfHTTP(t *testing.T) {
	configPath := writeConfig(t, `
server:
  stdio: true
database:
  path: "./test.db"
auth:
  jwt_secret: "test-secret-key-for-jwt-signing"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Server.Stdio {
		t.Error("Server.Stdio = false, want true")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	configPath := writeConfig(t, "server: [this is not\n  a mapping")

	_, err := Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "parsing config file") {
		t.Fatalf("Load() error = %v, want parse error", err)
	}
}

func TestLoad_BadDuration(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8080"
database:
  path: "./test.db"
auth:
  jwt_secret: "test-secret-key-for-jwt-signing"
completion:
  initial_delay: "soon"
`)

	_, err := Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "initial_delay") {
		t.Fatalf("Load() error = %v, want initial_delay parse error", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "no transport",
			mutate:  func(c *Config) { c.Server.HTTPAddr = ""; c.Server.Stdio = false },
			wantSub: "server.http_addr",
		},
		{
			name:    "no database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantSub: "database.path",
		},
		{
			name:    "no jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "" },
			wantSub: "jwt_secret",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "tiny" },
			wantSub: "at least 16 bytes",
		},
		{
			name:    "negative attempts",
			mutate:  func(c *Config) { c.Completion.MaxAttempts = -1 },
			wantSub: "max_attempts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Server:   ServerConfig{HTTPAddr: "127.0.0.1:8080"},
				Database: DatabaseConfig{Path: "./test.db"},
				Auth:     AuthConfig{JWTSecret: "test-secret-key-for-jwt-signing"},
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantSub)
			}
		})
	}
}
