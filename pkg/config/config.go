// Package config loads server configuration from config.yaml with
// environment variable overrides.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for askdb-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Application database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// External database connection brokering
	Broker BrokerConfig `yaml:"broker"`

	// Model provider configuration
	LLM LLMConfig `yaml:"llm"`

	// Schema snapshot and turn execution limits
	Schema   SchemaConfig   `yaml:"schema"`
	Executor ExecutorConfig `yaml:"executor"`

	// Credential vault policy
	Vault VaultConfig `yaml:"vault"`

	// Statement guard policy
	Guard GuardConfig `yaml:"guard"`

	// Encryption key for stored connection credentials.
	// A 32-byte base64 key (openssl rand -base64 32) or any passphrase.
	// Server will fail to start if this is not set.
	CredentialsKey string `yaml:"-" env:"CREDENTIALS_KEY"` // Secret - not in YAML
}

// DatabaseConfig holds the application's own PostgreSQL configuration.
// This is the store for users, encrypted credentials, and chat history,
// not any of the databases users ask questions about.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"askdb"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"askdb_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// BrokerConfig holds limits for connections to users' external databases.
type BrokerConfig struct {
	// MaxOpenConnections caps concurrent external connections across all users.
	MaxOpenConnections int `yaml:"max_open_connections" env:"BROKER_MAX_OPEN_CONNECTIONS" env-default:"32"`
	// SessionTTLSeconds is how long a checked-out session stays usable.
	SessionTTLSeconds int `yaml:"session_ttl_seconds" env:"BROKER_SESSION_TTL_SECONDS" env-default:"300"`
	// ConnectTimeoutSeconds bounds both the wait for a free slot and the dial itself.
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds" env:"BROKER_CONNECT_TIMEOUT_SECONDS" env-default:"10"`
}

// SessionTTL returns the session lifetime as a duration.
func (c *BrokerConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// ConnectTimeout returns the connect timeout as a duration.
func (c *BrokerConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// LLMConfig holds model provider settings. One provider serves the whole
// deployment; the API key comes only from the environment.
type LLMConfig struct {
	// Provider selects the backing API: "openai" or "anthropic".
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	Model    string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o"`
	// BaseURL overrides the provider endpoint (for proxies or self-hosted gateways).
	BaseURL string `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	APIKey  string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	// TimeoutSeconds bounds a single generation call.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"60"`
}

// Timeout returns the per-call generation timeout as a duration.
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// VaultConfig holds credential vault policy.
type VaultConfig struct {
	// AllowOverwrite lets storing a credential replace an existing one for
	// the same service instead of failing with a conflict.
	AllowOverwrite bool `yaml:"allow_overwrite" env:"VAULT_ALLOW_OVERWRITE" env-default:"false"`
}

// GuardConfig selects the statement guard policy.
type GuardConfig struct {
	// PolicyFile points at a YAML policy file widening the read-only
	// default. Empty means read-only.
	PolicyFile string `yaml:"policy_file" env:"GUARD_POLICY_FILE" env-default:""`
}

// SchemaConfig bounds the schema snapshot fed into prompts.
type SchemaConfig struct {
	// MaxPromptChars caps the rendered schema text; widest tables are
	// truncated first when the snapshot exceeds it.
	MaxPromptChars int `yaml:"max_prompt_chars" env:"SCHEMA_MAX_PROMPT_CHARS" env-default:"12000"`
}

// ExecutorConfig bounds a single turn through the generate/execute loop.
type ExecutorConfig struct {
	// MaxAttempts is the number of generate-validate-execute passes per turn.
	MaxAttempts int `yaml:"max_attempts" env:"EXECUTOR_MAX_ATTEMPTS" env-default:"3"`
	// MaxRows caps result rows returned to the user.
	MaxRows int `yaml:"max_rows" env:"EXECUTOR_MAX_ROWS" env-default:"500"`
	// MaxResultBytes caps the serialized result payload.
	MaxResultBytes int `yaml:"max_result_bytes" env:"EXECUTOR_MAX_RESULT_BYTES" env-default:"1048576"`
	// QueryTimeoutSeconds bounds a single statement against the external database.
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" env:"EXECUTOR_QUERY_TIMEOUT_SECONDS" env-default:"30"`
}

// QueryTimeout returns the per-statement timeout as a duration.
func (c *ExecutorConfig) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Secrets (PGPASSWORD, CREDENTIALS_KEY, LLM_API_KEY) must come from environment
// variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.CredentialsKey == "" {
		return fmt.Errorf("CREDENTIALS_KEY must be set")
	}
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.Broker.MaxOpenConnections <= 0 {
		return fmt.Errorf("broker.max_open_connections must be positive")
	}
	if c.Executor.MaxAttempts <= 0 {
		return fmt.Errorf("executor.max_attempts must be positive")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string for the
// application database.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
