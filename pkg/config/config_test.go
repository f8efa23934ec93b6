package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T, yamlContent string) {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	writeTestConfig(t, `
port: "8080"
env: "test"
database:
  host: "db.example.com"
  port: 5432
  user: "testuser"
  database: "testdb"
llm:
  provider: "openai"
  model: "gpt-4o"
`)

	os.Unsetenv("PGHOST")

	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("CREDENTIALS_KEY", "test-passphrase")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Env vars override YAML
	if cfg.Port != "9090" {
		t.Errorf("expected Port=9090 (from env), got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("expected Env=production (from env), got %s", cfg.Env)
	}

	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}

	// YAML value used for database host (proves YAML was read)
	if cfg.Database.Host != "db.example.com" {
		t.Errorf("expected Database.Host=db.example.com (from yaml), got %s", cfg.Database.Host)
	}
}

func TestLoad_RequiresCredentialsKey(t *testing.T) {
	writeTestConfig(t, `
port: "8080"
`)

	os.Unsetenv("CREDENTIALS_KEY")

	_, err := Load("dev")
	if err == nil {
		t.Fatal("expected error when CREDENTIALS_KEY is unset")
	}
	if !strings.Contains(err.Error(), "CREDENTIALS_KEY") {
		t.Errorf("expected CREDENTIALS_KEY error, got %v", err)
	}
}

func TestLoad_RejectsUnknownProvider(t *testing.T) {
	writeTestConfig(t, `
llm:
  provider: "mystery"
`)

	t.Setenv("CREDENTIALS_KEY", "test-passphrase")

	_, err := Load("dev")
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if !strings.Contains(err.Error(), "provider") {
		t.Errorf("expected provider error, got %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	writeTestConfig(t, "env: local\n")

	t.Setenv("CREDENTIALS_KEY", "test-passphrase")

	cfg, err := Load("dev")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Broker.MaxOpenConnections != 32 {
		t.Errorf("expected default MaxOpenConnections=32, got %d", cfg.Broker.MaxOpenConnections)
	}
	if cfg.Broker.SessionTTLSeconds != 300 {
		t.Errorf("expected default SessionTTLSeconds=300, got %d", cfg.Broker.SessionTTLSeconds)
	}
	if cfg.Executor.MaxAttempts != 3 {
		t.Errorf("expected default MaxAttempts=3, got %d", cfg.Executor.MaxAttempts)
	}
	if cfg.Executor.MaxRows != 500 {
		t.Errorf("expected default MaxRows=500, got %d", cfg.Executor.MaxRows)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected default provider=openai, got %s", cfg.LLM.Provider)
	}
}

func TestDatabaseConnectionString(t *testing.T) {
	dbCfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "askdb",
		Password: "secret",
		Database: "askdb_engine",
		SSLMode:  "disable",
	}

	got := dbCfg.ConnectionString()
	want := "host=localhost port=5432 user=askdb password=secret dbname=askdb_engine sslmode=disable"
	if got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}
