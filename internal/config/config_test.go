// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, duration parsing, and defaults

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
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8080"

database:
  path: "./test.db"

provider:
  name: "anthropic"
  api_key: "sk-test"
  default_model: "claude-sonnet-4-20250514"
  max_tokens: 2048

sessions:
  idle_timeout: "45m"
  sweep_interval: "1m"
  max_history_messages: 20

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/metrics"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:8080")
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Provider.DefaultModel != "claude-sonnet-4-20250514" {
		t.Errorf("Provider.DefaultModel = %q", cfg.Provider.DefaultModel)
	}
	if cfg.Provider.MaxTokens != 2048 {
		t.Errorf("Provider.MaxTokens = %d, want 2048", cfg.Provider.MaxTokens)
	}
	if cfg.Sessions.IdleTimeout != 45*time.Minute {
		t.Errorf("Sessions.IdleTimeout = %s, want 45m", cfg.Sessions.IdleTimeout)
	}
	if cfg.Sessions.SweepInterval != time.Minute {
		t.Errorf("Sessions.SweepInterval = %s, want 1m", cfg.Sessions.SweepInterval)
	}
	if cfg.Sessions.MaxHistoryMessages != 20 {
		t.Errorf("Sessions.MaxHistoryMessages = %d, want 20", cfg.Sessions.MaxHistoryMessages)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8080"
database:
  path: "./test.db"
provider:
  default_model: "claude-sonnet-4-20250514"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Sessions.IdleTimeout != DefaultIdleTimeout {
		t.Errorf("IdleTimeout = %s, want default %s", cfg.Sessions.IdleTimeout, DefaultIdleTimeout)
	}
	if cfg.Sessions.SweepInterval != DefaultSweepInterval {
		t.Errorf("SweepInterval = %s, want default %s", cfg.Sessions.SweepInterval, DefaultSweepInterval)
	}
	if cfg.Sessions.MaxHistoryMessages != DefaultMaxHistoryMessages {
		t.Errorf("MaxHistoryMessages = %d, want default %d", cfg.Sessions.MaxHistoryMessages, DefaultMaxHistoryMessages)
	}
	if cfg.Provider.MaxTokens != DefaultMaxTokens {
		t.Errorf("MaxTokens = %d, want default %d", cfg.Provider.MaxTokens, DefaultMaxTokens)
	}
	if cfg.Provider.Name != "anthropic" {
		t.Errorf("Provider.Name = %q, want anthropic", cfg.Provider.Name)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want /metrics", cfg.Metrics.Path)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("PARLEY_TEST_API_KEY", "sk-from-env")

	configPath := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8080"
database:
  path: "./test.db"
provider:
  api_key: "${PARLEY_TEST_API_KEY}"
  default_model: "claude-sonnet-4-20250514"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Provider.APIKey != "sk-from-env" {
		t.Errorf("Provider.APIKey = %q, want %q", cfg.Provider.APIKey, "sk-from-env")
	}
}

func TestLoad_UnsetEnvVarExpandsEmpty(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8080"
database:
  path: "./test.db"
provider:
  api_key: "${PARLEY_TEST_DOES_NOT_EXIST}"
  default_model: "claude-sonnet-4-20250514"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Provider.APIKey != "" {
		t.Errorf("Provider.APIKey = %q, want empty", cfg.Provider.APIKey)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8080"
database:
  path: "./test.db"
provider:
  default_model: "claude-sonnet-4-20250514"
sessions:
  idle_timeout: "not-a-duration"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "idle_timeout") {
		t.Errorf("error %q should mention idle_timeout", err)
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name: "missing http_addr",
			content: `
database:
  path: "./test.db"
provider:
  default_model: "claude-sonnet-4-20250514"
`,
			want: "server.http_addr",
		},
		{
			name: "missing database path",
			content: `
server:
  http_addr: "127.0.0.1:8080"
provider:
  default_model: "claude-sonnet-4-20250514"
`,
			want: "database.path",
		},
		{
			name: "missing default model",
			content: `
server:
  http_addr: "127.0.0.1:8080"
database:
  path: "./test.db"
`,
			want: "provider.default_model",
		},
		{
			name: "unsupported provider",
			content: `
server:
  http_addr: "127.0.0.1:8080"
database:
  path: "./test.db"
provider:
  name: "acme"
  default_model: "acme-1"
`,
			want: "provider.name",
		},
		{
			name: "idle timeout below minimum",
			content: `
server:
  http_addr: "127.0.0.1:8080"
database:
  path: "./test.db"
provider:
  default_model: "claude-sonnet-4-20250514"
sessions:
  idle_timeout: "5s"
`,
			want: "idle_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, tt.content)
			_, err := Load(configPath)
			if err == nil {
				t.Fatal("Load() expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}
