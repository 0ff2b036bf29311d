// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alienxp03/agora/internal/core"
	"github.com/alienxp03/agora/internal/generation"
	"github.com/alienxp03/agora/internal/storage"
)

// Provider kinds understood by CreateRegistry.
const (
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
	KindMock      = "mock"
	KindCommand   = "command"
)

// Storage drivers understood by OpenStorage.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config represents the application configuration.
type Config struct {
	Server     ServerConfig              `yaml:"server"`
	Storage    StorageConfig             `yaml:"storage"`
	Generation GenerationConfig          `yaml:"generation"`
	Defaults   DefaultsConfig            `yaml:"defaults"`
	Providers  map[string]ProviderConfig `yaml:"providers"`
}

// ServerConfig holds server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// StorageConfig selects and locates the store.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path,omitempty"` // SQLite database file
	DSN    string `yaml:"dsn,omitempty"`  // PostgreSQL connection string
}

// GenerationConfig holds the retry policy and default backend.
type GenerationConfig struct {
	Provider             string        `yaml:"provider"`
	MaxRetries           int           `yaml:"max_retries"`
	BaseDelay            time.Duration `yaml:"base_delay"`
	AttemptTimeout       time.Duration `yaml:"attempt_timeout"`
	ModeratorTemperature float64       `yaml:"moderator_temperature"`
}

// DefaultsConfig holds settings applied to new debates.
type DefaultsConfig struct {
	ModelName   string   `yaml:"model_name,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	Rounds      int      `yaml:"rounds"`
}

// ProviderConfig holds provider-specific settings.
type ProviderConfig struct {
	Kind         string `yaml:"kind"`
	BaseURL      string `yaml:"base_url,omitempty"`
	APIKey       string `yaml:"api_key,omitempty"`
	APIKeyEnv    string `yaml:"api_key_env,omitempty"`
	DefaultModel string `yaml:"default_model,omitempty"`
	MaxTokens    int64  `yaml:"max_tokens,omitempty"`
	Enabled      bool   `yaml:"enabled"`

	// Command, Args and ModelFlag apply to the command kind only.
	Command   string   `yaml:"command,omitempty"`
	Args      []string `yaml:"args,omitempty"`
	ModelFlag string   `yaml:"model_flag,omitempty"`
}

// ResolveAPIKey returns the configured key, falling back to APIKeyEnv.
func (p ProviderConfig) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return ""
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8182,
		},
		Storage: StorageConfig{
			Driver: DriverSQLite,
			Path:   storage.DefaultDBPath(),
		},
		Generation: GenerationConfig{
			Provider:             "gemini",
			MaxRetries:           generation.DefaultMaxRetries,
			BaseDelay:            generation.DefaultBaseDelay,
			AttemptTimeout:       generation.DefaultAttemptTimeout,
			ModeratorTemperature: 0.7,
		},
		Defaults: DefaultsConfig{
			Rounds: 3,
		},
		Providers: defaultProviders(),
	}
}

func defaultProviders() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		"openai": {
			Kind:         KindOpenAI,
			APIKeyEnv:    "OPENAI_API_KEY",
			DefaultModel: core.DefaultModelForProvider["openai"],
			Enabled:      true,
		},
		"anthropic": {
			Kind:         KindAnthropic,
			APIKeyEnv:    "ANTHROPIC_API_KEY",
			DefaultModel: core.DefaultModelForProvider["anthropic"],
			MaxTokens:    1024,
			Enabled:      true,
		},
		"gemini": {
			Kind:         KindOpenAI,
			BaseURL:      "https://generativelanguage.googleapis.com/v1beta/openai/",
			APIKeyEnv:    "GEMINI_API_KEY",
			DefaultModel: core.DefaultModelForProvider["gemini"],
			Enabled:      true,
		},
		"mock": {
			Kind:         KindMock,
			DefaultModel: core.DefaultModelForProvider["mock"],
			Enabled:      true,
		},
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom loads configuration from a specific path. Values from a .env
// file in the working directory override the file, and process environment
// variables override both.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file, proceed with defaults
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Merge with defaults for any missing providers
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	defaults := defaultProviders()
	for name, defaultProvider := range defaults {
		if _, exists := cfg.Providers[name]; !exists {
			cfg.Providers[name] = defaultProvider
		}
	}
	for name, p := range cfg.Providers {
		if p.Kind == "" {
			p.Kind = KindOpenAI
			if d, ok := defaults[name]; ok {
				p.Kind = d.Kind
			}
			cfg.Providers[name] = p
		}
	}

	// Apply .env overrides if file exists
	if env, err := LoadEnv(".env"); err == nil {
		ApplyEnvOverrides(cfg, env)
	}
	ApplyEnvOverrides(cfg, ProcessEnv())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration can be used to build the app.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("invalid config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == DriverPostgres && c.Storage.DSN == "" {
		return fmt.Errorf("invalid config: storage.dsn is required for postgres")
	}
	for name, p := range c.Providers {
		switch p.Kind {
		case KindOpenAI, KindAnthropic, KindMock:
		case KindCommand:
			if p.Command == "" {
				return fmt.Errorf("invalid config: provider %s needs a command", name)
			}
		default:
			return fmt.Errorf("invalid config: provider %s has unknown kind %q", name, p.Kind)
		}
	}
	if c.Generation.MaxRetries < 0 {
		return fmt.Errorf("invalid config: generation.max_retries must not be negative")
	}
	if c.Generation.MaxRetries > generation.MaxRetriesLimit {
		return fmt.Errorf("invalid config: generation.max_retries must be at most %d", generation.MaxRetriesLimit)
	}
	return nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigPath())
}

// SaveTo saves the configuration to a specific path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetProvider returns the configuration for a provider.
func (c *Config) GetProvider(name string) (ProviderConfig, bool) {
	p, ok := c.Providers[name]
	return p, ok
}

// EnabledProviders returns the names of enabled providers in lexical order.
func (c *Config) EnabledProviders() []string {
	var names []string
	for name, p := range c.Providers {
		if p.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// createBackend creates a backend instance based on the provider kind.
func createBackend(name string, p ProviderConfig) (generation.Backend, error) {
	cfg := generation.BackendConfig{
		Name:         name,
		APIKey:       p.ResolveAPIKey(),
		BaseURL:      p.BaseURL,
		DefaultModel: p.DefaultModel,
		MaxTokens:    p.MaxTokens,
	}
	switch p.Kind {
	case KindOpenAI:
		return generation.NewOpenAIBackend(cfg), nil
	case KindAnthropic:
		return generation.NewAnthropicBackend(cfg), nil
	case KindMock:
		return generation.NewMockBackend(name), nil
	case KindCommand:
		return generation.NewCommandBackend(generation.CommandConfig{
			Name:         name,
			Command:      p.Command,
			Args:         p.Args,
			ModelFlag:    p.ModelFlag,
			DefaultModel: p.DefaultModel,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", p.Kind)
	}
}

// CreateRegistry creates a backend registry from the enabled providers.
func (c *Config) CreateRegistry() (*generation.Registry, error) {
	registry := generation.NewRegistry()

	for _, name := range c.EnabledProviders() {
		b, err := createBackend(name, c.Providers[name])
		if err != nil {
			return nil, fmt.Errorf("failed to create provider %s: %w", name, err)
		}
		registry.Register(b)
	}

	return registry, nil
}

// Policy returns the generation retry policy.
func (c *Config) Policy() generation.Policy {
	return generation.Policy{
		MaxRetries:     c.Generation.MaxRetries,
		BaseDelay:      c.Generation.BaseDelay,
		AttemptTimeout: c.Generation.AttemptTimeout,
	}
}

// CreateClient builds a generation client over registry using the
// configured policy and default provider.
func (c *Config) CreateClient(registry *generation.Registry, opts ...generation.ClientOption) *generation.Client {
	opts = append([]generation.ClientOption{generation.WithDefaultProvider(c.Generation.Provider)}, opts...)
	return generation.NewClient(registry, c.Policy(), opts...)
}

// DebateDefaults returns the config keys applied to new debates.
func (c *Config) DebateDefaults() map[string]any {
	defaults := make(map[string]any)
	if c.Defaults.ModelName != "" {
		defaults[core.ConfigModelName] = c.Defaults.ModelName
	}
	if c.Defaults.Temperature != nil {
		defaults[core.ConfigTemperature] = *c.Defaults.Temperature
	}
	return defaults
}

// OpenStorage opens and initializes the configured store.
func (c *Config) OpenStorage() (storage.Storage, error) {
	var store storage.Storage
	switch c.Storage.Driver {
	case DriverPostgres:
		s, err := storage.NewPostgresStorage(c.Storage.DSN)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		path := expandHome(c.Storage.Path)
		if path == "" {
			path = storage.DefaultDBPath()
		}
		s, err := storage.NewSQLiteStorage(path)
		if err != nil {
			return nil, err
		}
		store = s
	}

	if err := store.Initialize(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "agora.yaml"
	}
	return filepath.Join(home, ".agora", "config.yaml")
}

// GenerateExample generates an example configuration file.
func GenerateExample() string {
	example := `# agora configuration file
# Place this file at ~/.agora/config.yaml

server:
  port: 8182

storage:
  driver: sqlite            # sqlite or postgres
  path: ~/.agora/agora.db   # SQLite file (driver: sqlite)
  # dsn: "host=localhost user=agora password=agora dbname=agora port=5432 sslmode=disable"

generation:
  provider: gemini          # Backend used when a debate does not name one
  max_retries: 5            # Extra attempts for rate-limit/unavailable failures
  base_delay: 5s            # Wait before the first retry, doubled each time
  attempt_timeout: 50s      # Upper bound for a single attempt
  moderator_temperature: 0.7

defaults:
  model_name: ""            # Empty = provider default
  # temperature: 0.7
  rounds: 3                 # Stored for display only

providers:
  gemini:
    kind: openai            # OpenAI-compatible endpoint
    base_url: https://generativelanguage.googleapis.com/v1beta/openai/
    api_key_env: GEMINI_API_KEY
    default_model: gemini-flash-latest
    enabled: true

  openai:
    kind: openai
    api_key_env: OPENAI_API_KEY
    default_model: gpt-4o-mini
    enabled: true

  anthropic:
    kind: anthropic
    api_key_env: ANTHROPIC_API_KEY
    default_model: claude-3-5-haiku-latest
    max_tokens: 1024
    enabled: true

  mock:
    kind: mock              # Simulated replies, no network
    enabled: true

  # ollama:
  #   kind: command         # Runs a local CLI per turn; prompt is the last argument
  #   command: ollama
  #   args: [run, llama3.2]
  #   model_flag: "-"       # model is positional, set in args
  #   enabled: false
`
	return example
}
