package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEnv(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `
# Comment
KEY1=value1
KEY2="value 2"
KEY3='value 3'
KEY4=value 4 # inline comment
export KEY5=exported
EMPTY=
`
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create env file: %v", err)
	}

	env, err := LoadEnv(envFile)
	if err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}

	tests := []struct {
		key      string
		expected string
	}{
		{"KEY1", "value1"},
		{"KEY2", "value 2"},
		{"KEY3", "value 3"},
		{"KEY4", "value 4"},
		{"KEY5", "exported"},
		{"EMPTY", ""},
	}

	for _, tt := range tests {
		if got, ok := env[tt.key]; !ok || got != tt.expected {
			t.Errorf("expected %s=%q, got %q (exists=%v)", tt.key, tt.expected, got, ok)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	env := map[string]string{
		"DEFAULT_PROVIDER":        "anthropic",
		"DEFAULT_MODEL":           "claude-test",
		"PROVIDER_OPENAI_ENABLED": "false",
		"PROVIDER_GEMINI_API_KEY": "secret",
		"GENERATION_MAX_RETRIES":  "2",
		"GENERATION_BASE_DELAY":   "3",
		"SERVER_PORT":             "9090",
		"DB_PATH":                 "/tmp/agora-test.db",
	}

	ApplyEnvOverrides(cfg, env)

	if cfg.Generation.Provider != "anthropic" {
		t.Errorf("expected provider anthropic, got %s", cfg.Generation.Provider)
	}
	if cfg.Defaults.ModelName != "claude-test" {
		t.Errorf("expected model claude-test, got %s", cfg.Defaults.ModelName)
	}
	if cfg.Providers["openai"].Enabled {
		t.Errorf("expected openai disabled")
	}
	if cfg.Providers["gemini"].APIKey != "secret" {
		t.Errorf("expected gemini api key override, got %q", cfg.Providers["gemini"].APIKey)
	}
	if cfg.Generation.MaxRetries != 2 {
		t.Errorf("expected 2 retries, got %d", cfg.Generation.MaxRetries)
	}
	if cfg.Generation.BaseDelay != 3*time.Second {
		t.Errorf("expected base delay 3s, got %v", cfg.Generation.BaseDelay)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Path != "/tmp/agora-test.db" {
		t.Errorf("expected db path override, got %s", cfg.Storage.Path)
	}
}

func TestDatabaseURLSelectsPostgres(t *testing.T) {
	cfg := Default()

	ApplyEnvOverrides(cfg, map[string]string{"DATABASE_URL": "postgres://localhost/agora"})

	if cfg.Storage.Driver != DriverPostgres {
		t.Errorf("expected postgres driver, got %s", cfg.Storage.Driver)
	}
	if cfg.Storage.DSN != "postgres://localhost/agora" {
		t.Errorf("expected dsn override, got %s", cfg.Storage.DSN)
	}

	cfg = Default()
	ApplyEnvOverrides(cfg, map[string]string{"DATABASE_URL": "postgres://x", "STORAGE_DRIVER": "sqlite"})
	if cfg.Storage.Driver != DriverSQLite {
		t.Errorf("explicit driver should win, got %s", cfg.Storage.Driver)
	}
}
